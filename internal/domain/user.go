package domain

import "time"

// User is the internal record for an external identity. ExternalID is
// provider-scoped and unique; repeated logins resolve to the same row.
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ExternalID    int64     `gorm:"uniqueIndex;not null" json:"external_id"`
	ExternalLogin string    `gorm:"size:255;not null" json:"external_login"`
	CreatedAt     time.Time `json:"created_at"`
}
