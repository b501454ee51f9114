// Package models contains the persisted row types of the entitlement ledger.
package models

import "time"

// User is an enrolled platform identity together with the entitlement bundle
// granted by the key it redeemed. A User row exists only as the result of a
// successful redemption.
type User struct {
	ID                 string
	KeyUsed            string
	VIP                bool
	MaxDurationSeconds int
	ConcurrencyQuota   int
	ExpiresAt          *time.Time // nil means the entitlement never expires
	CreatedAt          time.Time
}

// Expired reports whether the entitlement has lapsed at the given instant.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}
