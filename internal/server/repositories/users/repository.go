package users

import (
	"context"
	"time"

	"keygate/internal/server/models"
)

// Repository provides atomic primitives over enrolled users. Implementations
// are bound to a dbx.DBTX so the same code runs against a pooled handle or
// inside a transaction.
type Repository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]models.User, error)
	SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	SetVIP(ctx context.Context, id string, vip bool) error
	SetMaxDuration(ctx context.Context, id string, seconds int) error
	SetConcurrency(ctx context.Context, id string, quota int) error
	Count(ctx context.Context) (int, error)
	CountVIP(ctx context.Context) (int, error)
}
