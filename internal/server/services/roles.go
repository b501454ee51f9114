package services

import (
	"context"
	"database/sql"
	"fmt"

	"keygate/internal/common"
	"keygate/internal/server/models"
	"keygate/internal/server/repositories/repomanager"
)

// Role tier names, ordered SuperAdmin > Admin > Staff > User.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
	RoleUser       = "user"
)

// RoleService resolves the three-tier permission hierarchy and manages the
// staff and admin membership sets. The super-admin identity is injected at
// construction and is never persisted, demoted, or removed.
type RoleService struct {
	db           *sql.DB
	repos        repomanager.RepositoryManager
	superAdminID string
}

// NewRoleService constructs a RoleService with the configured super-admin
// identity.
func NewRoleService(db *sql.DB, m repomanager.RepositoryManager, superAdminID string) *RoleService {
	return &RoleService{db: db, repos: m, superAdminID: superAdminID}
}

// IsSuperAdmin is a pure identity comparison against the configured value.
func (s *RoleService) IsSuperAdmin(id string) bool {
	return id != "" && id == s.superAdminID
}

// IsAdmin reports whether id is the super-admin or a stored admin.
func (s *RoleService) IsAdmin(ctx context.Context, id string) (bool, error) {
	if s.IsSuperAdmin(id) {
		return true, nil
	}
	return s.repos.Members(s.db).IsAdmin(ctx, id)
}

// IsStaff reports whether id holds admin-level access or is a stored staff
// member. The hierarchy is total: no tier grants staff capability outside it.
func (s *RoleService) IsStaff(ctx context.Context, id string) (bool, error) {
	ok, err := s.IsAdmin(ctx, id)
	if err != nil || ok {
		return ok, err
	}
	return s.repos.Members(s.db).IsStaff(ctx, id)
}

// Resolve returns the highest tier held by id.
func (s *RoleService) Resolve(ctx context.Context, id string) (string, error) {
	if s.IsSuperAdmin(id) {
		return RoleSuperAdmin, nil
	}
	if ok, err := s.repos.Members(s.db).IsAdmin(ctx, id); err != nil {
		return "", err
	} else if ok {
		return RoleAdmin, nil
	}
	if ok, err := s.repos.Members(s.db).IsStaff(ctx, id); err != nil {
		return "", err
	} else if ok {
		return RoleStaff, nil
	}
	return RoleUser, nil
}

// AddStaff grants staff membership to userID, attributed to addedBy.
func (s *RoleService) AddStaff(ctx context.Context, userID, addedBy string) error {
	if userID == "" {
		return fmt.Errorf("%w: user identity required", common.ErrValidation)
	}
	return s.repos.Members(s.db).AddStaff(ctx, userID, addedBy)
}

// RemoveStaff revokes staff membership; absent members yield ErrNotFound.
func (s *RoleService) RemoveStaff(ctx context.Context, userID string) error {
	return s.repos.Members(s.db).RemoveStaff(ctx, userID)
}

// AddAdmin grants admin membership. The super-admin identity cannot be added
// to the stored set, by anyone.
func (s *RoleService) AddAdmin(ctx context.Context, userID, addedBy string) error {
	if userID == "" {
		return fmt.Errorf("%w: user identity required", common.ErrValidation)
	}
	if s.IsSuperAdmin(userID) {
		return fmt.Errorf("%w: the super-admin identity is not a stored admin", common.ErrValidation)
	}
	return s.repos.Members(s.db).AddAdmin(ctx, userID, addedBy)
}

// RemoveAdmin revokes admin membership. Removing the super-admin identity is
// rejected unconditionally, whoever asks.
func (s *RoleService) RemoveAdmin(ctx context.Context, userID string) error {
	if s.IsSuperAdmin(userID) {
		return fmt.Errorf("%w: the super-admin cannot be removed", common.ErrValidation)
	}
	return s.repos.Members(s.db).RemoveAdmin(ctx, userID)
}

// ListStaff returns the stored staff memberships, newest first.
func (s *RoleService) ListStaff(ctx context.Context) ([]models.Membership, error) {
	return s.repos.Members(s.db).ListStaff(ctx)
}

// ListAdmins returns the stored admin memberships, newest first.
func (s *RoleService) ListAdmins(ctx context.Context) ([]models.Membership, error) {
	return s.repos.Members(s.db).ListAdmins(ctx)
}
