package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashToken computes the at-rest form of a session or device code. Tokens
// are high-entropy random values, so a keyed SHA-256 is sufficient; the
// pepper keeps a leaked database from being usable on its own.
func HashToken(token, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
