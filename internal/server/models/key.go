package models

import "time"

// Key is a single-use entitlement token. UsedBy transitions nil → set exactly
// once, on redemption; the row is never deleted in normal operation.
type Key struct {
	ID                 string
	CreatedBy          string
	MaxDurationSeconds int
	ConcurrencyQuota   int
	VIP                bool
	ExpiresAt          *time.Time // nil means the key never expires
	UsedBy             *string
	CreatedAt          time.Time
}

// Used reports whether the key has already been redeemed.
func (k *Key) Used() bool {
	return k.UsedBy != nil
}

// Expired reports whether the key has lapsed at the given instant. A used
// key stays used regardless of the passage of time.
func (k *Key) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
