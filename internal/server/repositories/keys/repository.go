package keys

import (
	"context"

	"keygate/internal/server/models"
)

// Repository provides atomic primitives over entitlement keys.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Key, error)
	Create(ctx context.Context, key *models.Key) error
	// MarkUsed sets used_by exactly once; a key whose used_by is already set
	// yields common.ErrKeyAlreadyUsed, never a silent overwrite.
	MarkUsed(ctx context.Context, keyID, userID string) error
	List(ctx context.Context, limit int) ([]models.Key, error)
	Count(ctx context.Context) (int, error)
	CountUsed(ctx context.Context) (int, error)
}
