package models

import "time"

// Membership is a staff or admin role grant. The super-admin identity is a
// configuration value and is never persisted here.
type Membership struct {
	UserID    string
	AddedBy   string
	CreatedAt time.Time
}
