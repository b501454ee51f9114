// Package common defines shared constants and sentinel errors used across
// Keygate layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Key lifecycle errors.
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrKeyAlreadyUsed  = errors.New("key already used")
	ErrKeyExpired      = errors.New("key expired")
	ErrAlreadyEnrolled = errors.New("user already enrolled")

	// Entitlement / authorization errors.
	ErrAccessExpired = errors.New("access expired")
	ErrUnauthorized  = errors.New("unauthorized")

	// Generic flow control.
	ErrValidation = errors.New("validation error")
	ErrInternal   = errors.New("internal error")

	// Auth errors (invalid or malformed service token).
	ErrInvalidToken = errors.New("invalid token")
)
