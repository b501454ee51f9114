// Package services contains the server-side business logic of the
// entitlement ledger: key lifecycle, role resolution, the authorization
// guard, service status, and user administration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keygate/internal/common"
	"keygate/internal/dbx"
	"keygate/internal/server/models"
	"keygate/internal/server/repositories/repomanager"
)

// keyTokenLength is the length of generated key tokens. Long enough that a
// collision is vanishingly unlikely; the primary-key constraint is the
// backstop and Generate retries on it.
const keyTokenLength = 24

// generateAttempts bounds collision retries before giving up.
const generateAttempts = 5

// defaultListLimit applies when a caller supplies no (or a non-positive)
// limit for list operations.
const defaultListLimit = 10

// GenerateParams are the entitlement attributes stamped onto a new key.
// ExpiresInDays == 0 means the key, and the entitlement it grants, never
// expire.
type GenerateParams struct {
	CreatedBy          string
	MaxDurationSeconds int
	ConcurrencyQuota   int
	VIP                bool
	ExpiresInDays      int
}

// KeyService implements the key lifecycle: Generate, Redeem, Extend, Revoke,
// and the list operations consumed by the transport collaborator.
type KeyService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

// NewKeyService constructs a KeyService over the pooled database handle.
func NewKeyService(db *sql.DB, m repomanager.RepositoryManager) *KeyService {
	return &KeyService{db: db, repos: m}
}

// Generate mints a new single-use key with a crypto-random token. The token
// uniqueness check-then-insert runs as one INSERT; a constraint collision
// triggers regeneration rather than trusting randomness alone.
func (s *KeyService) Generate(ctx context.Context, p GenerateParams) (*models.Key, error) {
	if p.MaxDurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: max duration must be positive", common.ErrValidation)
	}
	if p.ConcurrencyQuota <= 0 {
		return nil, fmt.Errorf("%w: concurrency quota must be positive", common.ErrValidation)
	}
	if p.ExpiresInDays < 0 {
		return nil, fmt.Errorf("%w: expiry days must not be negative", common.ErrValidation)
	}
	if p.CreatedBy == "" {
		return nil, fmt.Errorf("%w: issuer identity required", common.ErrValidation)
	}

	var expiresAt *time.Time
	if p.ExpiresInDays > 0 {
		t := time.Now().AddDate(0, 0, p.ExpiresInDays)
		expiresAt = &t
	}

	repo := s.repos.Keys(s.db)

	for attempt := 0; attempt < generateAttempts; attempt++ {
		token, err := common.MakeRandTokenString(keyTokenLength)
		if err != nil {
			return nil, fmt.Errorf("generating key token: %w", err)
		}

		key := &models.Key{
			ID:                 token,
			CreatedBy:          p.CreatedBy,
			MaxDurationSeconds: p.MaxDurationSeconds,
			ConcurrencyQuota:   p.ConcurrencyQuota,
			VIP:                p.VIP,
			ExpiresAt:          expiresAt,
		}

		err = repo.Create(ctx, key)
		if errors.Is(err, common.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return key, nil
	}

	return nil, fmt.Errorf("%w: could not generate a unique key", common.ErrInternal)
}

// Redeem consumes an unused, unexpired key for the requesting identity and
// creates the user's entitlement record with the key's attributes. The
// mark-used and user-insert writes run in a single transaction; concurrent
// redemptions of one key yield exactly one success.
func (s *KeyService) Redeem(ctx context.Context, keyID, userID string) (*models.User, error) {
	if keyID == "" {
		return nil, fmt.Errorf("%w: key required", common.ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user identity required", common.ErrValidation)
	}

	var user *models.User

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		keysRepo := s.repos.Keys(tx)
		usersRepo := s.repos.Users(tx)

		key, err := keysRepo.Get(ctx, keyID)
		if err != nil {
			return err
		}
		// Expiry is checked first so an expired key always reports as
		// expired even when it has also been spent.
		if key.Expired(time.Now()) {
			return common.ErrKeyExpired
		}
		if key.Used() {
			return common.ErrKeyAlreadyUsed
		}

		_, err = usersRepo.Get(ctx, userID)
		if err == nil {
			return common.ErrAlreadyEnrolled
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if err := keysRepo.MarkUsed(ctx, keyID, userID); err != nil {
			return err
		}

		user = &models.User{
			ID:                 userID,
			KeyUsed:            key.ID,
			VIP:                key.VIP,
			MaxDurationSeconds: key.MaxDurationSeconds,
			ConcurrencyQuota:   key.ConcurrencyQuota,
			ExpiresAt:          key.ExpiresAt,
		}

		return usersRepo.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Extend pushes a user's expiry forward by the given number of days: from
// the current expiry when one is set, from now otherwise.
func (s *KeyService) Extend(ctx context.Context, userID string, days int) (*models.User, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", common.ErrValidation)
	}

	var user *models.User

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repos.Users(tx)

		u, err := usersRepo.Get(ctx, userID)
		if err != nil {
			return err
		}

		base := time.Now()
		if u.ExpiresAt != nil {
			base = *u.ExpiresAt
		}
		newExpiry := base.AddDate(0, 0, days)

		if err := usersRepo.SetExpiry(ctx, userID, &newExpiry); err != nil {
			return err
		}

		u.ExpiresAt = &newExpiry
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Revoke deletes a user's entitlement record. Revoking an absent user fails
// with common.ErrNotFound rather than succeeding silently.
func (s *KeyService) Revoke(ctx context.Context, userID string) error {
	return s.repos.Users(s.db).Delete(ctx, userID)
}

// ListKeys returns the most recently created keys, newest first.
func (s *KeyService) ListKeys(ctx context.Context, limit int) ([]models.Key, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repos.Keys(s.db).List(ctx, limit)
}
