package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"keygate/internal/common"
	"keygate/internal/dbx"
	"keygate/internal/server/models"
	"keygate/internal/server/repositories/repomanager"
)

// StatusService maintains the single current service-status record.
// Updates are last-write-wins; no history is kept and no ordering guarantee
// beyond the store's own atomicity is provided for racing updates.
type StatusService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

// NewStatusService constructs a StatusService.
func NewStatusService(db *sql.DB, m repomanager.RepositoryManager) *StatusService {
	return &StatusService{db: db, repos: m}
}

// Set replaces the current status record wholesale. The delete+insert pair
// runs in one transaction so readers never observe zero or two current rows.
func (s *StatusService) Set(ctx context.Context, status models.Status, message, eta, updatedBy string) (*models.StatusRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, status)
	}

	rec := &models.StatusRecord{
		Status:    status,
		Message:   message,
		ETA:       eta,
		UpdatedBy: updatedBy,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Statuses(tx).Set(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Get returns the current status record. Before any update has ever been
// stored the service reports online with no message.
func (s *StatusService) Get(ctx context.Context) (*models.StatusRecord, error) {
	rec, err := s.repos.Statuses(s.db).GetLatest(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &models.StatusRecord{Status: models.StatusOnline}, nil
		}
		return nil, err
	}
	return rec, nil
}
