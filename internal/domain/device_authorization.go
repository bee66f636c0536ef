package domain

import "time"

// DeviceAuthStatus is the state of a device-authorization record. Pending is
// the only non-terminal state; terminal records never transition again.
type DeviceAuthStatus string

const (
	DeviceAuthPending  DeviceAuthStatus = "pending"
	DeviceAuthApproved DeviceAuthStatus = "approved"
	DeviceAuthDenied   DeviceAuthStatus = "denied"
	DeviceAuthExpired  DeviceAuthStatus = "expired"
)

func (s DeviceAuthStatus) Terminal() bool { return s != DeviceAuthPending }

// DeviceAuthorization tracks one device-flow handshake. The device code
// handed to the client is stored hashed; the provider's own device code is
// kept server-side for upstream polling. The minted session token stays on
// the approved row only for the post-terminal retention window so duplicate
// polls can return the same token, then the sweeper purges the row.
type DeviceAuthorization struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	DeviceCodeHash     string           `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ProviderDeviceCode string           `gorm:"size:512;not null" json:"-"`
	UserCode           string           `gorm:"size:16;uniqueIndex;not null" json:"user_code"`
	VerificationURI    string           `gorm:"size:512;not null" json:"verification_uri"`
	Status             DeviceAuthStatus `gorm:"size:16;not null;default:pending" json:"status"`
	Interval           int              `gorm:"not null" json:"interval"`
	SessionToken       string           `gorm:"size:128" json:"-"`
	UserID             *uint            `json:"user_id,omitempty"`
	LastPolledAt       *time.Time       `json:"-"`
	ExpiresAt          time.Time        `gorm:"index;not null" json:"expires_at"`
	CompletedAt        *time.Time       `gorm:"index" json:"completed_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (d *DeviceAuthorization) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}
