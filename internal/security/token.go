package security

import "github.com/google/uuid"

// NewSessionToken returns an opaque session token with 122 bits of entropy.
// It also serves as the generator for local device codes, which carry the
// same unguessability requirement. uuid.New panics if the system entropy
// source is exhausted, which is the required behavior: never fall back to a
// weaker source.
func NewSessionToken() string {
	return uuid.NewString()
}
