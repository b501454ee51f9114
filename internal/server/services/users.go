package services

import (
	"context"
	"database/sql"
	"fmt"

	"keygate/internal/common"
	"keygate/internal/server/models"
	"keygate/internal/server/repositories/repomanager"
)

// UserService covers the admin-side user operations: lookups, listings, and
// entitlement attribute edits. Users are only ever created through
// KeyService.Redeem.
type UserService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

// NewUserService constructs a UserService.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repos: m}
}

// Get returns the entitlement record for id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.repos.Users(s.db).Get(ctx, id)
}

// List returns the most recently enrolled users, newest first.
func (s *UserService) List(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repos.Users(s.db).List(ctx, limit)
}

// SetMaxDuration updates a user's maximum dispatch duration.
func (s *UserService) SetMaxDuration(ctx context.Context, id string, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: max duration must be positive", common.ErrValidation)
	}
	return s.repos.Users(s.db).SetMaxDuration(ctx, id, seconds)
}

// SetVIP updates a user's VIP tier flag.
func (s *UserService) SetVIP(ctx context.Context, id string, vip bool) error {
	return s.repos.Users(s.db).SetVIP(ctx, id, vip)
}

// SetConcurrency updates a user's concurrency quota. The quota is persisted
// per user but not checked against a live operation count.
func (s *UserService) SetConcurrency(ctx context.Context, id string, quota int) error {
	if quota <= 0 {
		return fmt.Errorf("%w: concurrency quota must be positive", common.ErrValidation)
	}
	return s.repos.Users(s.db).SetConcurrency(ctx, id, quota)
}

// Stats summarizes the ledger for the staff panels.
type Stats struct {
	TotalUsers    int
	VIPUsers      int
	TotalKeys     int
	UsedKeys      int
	AvailableKeys int
	StaffCount    int
	AdminCount    int
}

// Stats gathers ledger counters in one pass.
func (s *UserService) Stats(ctx context.Context) (*Stats, error) {
	usersRepo := s.repos.Users(s.db)
	keysRepo := s.repos.Keys(s.db)
	membersRepo := s.repos.Members(s.db)

	st := &Stats{}
	var err error

	if st.TotalUsers, err = usersRepo.Count(ctx); err != nil {
		return nil, err
	}
	if st.VIPUsers, err = usersRepo.CountVIP(ctx); err != nil {
		return nil, err
	}
	if st.TotalKeys, err = keysRepo.Count(ctx); err != nil {
		return nil, err
	}
	if st.UsedKeys, err = keysRepo.CountUsed(ctx); err != nil {
		return nil, err
	}
	st.AvailableKeys = st.TotalKeys - st.UsedKeys

	if st.StaffCount, err = membersRepo.CountStaff(ctx); err != nil {
		return nil, err
	}
	if st.AdminCount, err = membersRepo.CountAdmins(ctx); err != nil {
		return nil, err
	}

	return st, nil
}
