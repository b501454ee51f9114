package statuses

import (
	"context"

	"keygate/internal/server/models"
)

// Repository manages the single logical "current" status row.
type Repository interface {
	// Set replaces the current status wholesale. Callers must run it inside a
	// transaction so readers never observe zero or two current rows.
	Set(ctx context.Context, rec *models.StatusRecord) error
	GetLatest(ctx context.Context) (*models.StatusRecord, error)
}
