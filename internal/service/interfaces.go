package service

import (
	"context"
	"errors"
	"time"
)

// Protocol-level poll outcomes. Pending and SlowDown are normal polling
// states, not failures; Denied and Expired are terminal for the device code.
var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("slow down")
	ErrAccessDenied         = errors.New("access denied")
	ErrExpiredToken         = errors.New("device code expired")
)

type DeviceGrant struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Interval        time.Duration
	ExpiresAt       time.Time
}

type Profile struct {
	ExternalID int64
	Login      string
}

// IdentityProvider is the external identity service consumed as a black box.
// PollDeviceToken reports progress through the sentinel errors above and
// returns the provider access token once the user has approved.
type IdentityProvider interface {
	StartDeviceAuth(ctx context.Context) (*DeviceGrant, error)
	PollDeviceToken(ctx context.Context, deviceCode string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}
