package members

import (
	"context"

	"keygate/internal/server/models"
)

// Repository manages the staff and admin membership sets. Both sets are small
// and share the same row shape; the super-admin identity is never stored in
// either.
type Repository interface {
	AddStaff(ctx context.Context, userID, addedBy string) error
	RemoveStaff(ctx context.Context, userID string) error
	IsStaff(ctx context.Context, userID string) (bool, error)
	ListStaff(ctx context.Context) ([]models.Membership, error)
	CountStaff(ctx context.Context) (int, error)

	AddAdmin(ctx context.Context, userID, addedBy string) error
	RemoveAdmin(ctx context.Context, userID string) error
	IsAdmin(ctx context.Context, userID string) (bool, error)
	ListAdmins(ctx context.Context) ([]models.Membership, error)
	CountAdmins(ctx context.Context) (int, error)
}
