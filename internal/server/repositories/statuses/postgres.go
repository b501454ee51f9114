package statuses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"keygate/internal/common"
	"keygate/internal/dbx"
	"keygate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Set deletes the previous status row and inserts the replacement. The two
// statements are not atomic on their own; run them on a transactional DBTX.
func (r *PostgresRepository) Set(ctx context.Context, rec *models.StatusRecord) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM status`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query :=
		`INSERT INTO status (status, message, eta, updated_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		string(rec.Status), rec.Message, rec.ETA, rec.UpdatedBy).Scan(&rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetLatest(ctx context.Context) (*models.StatusRecord, error) {
	query :=
		`SELECT status, message, eta, updated_by, updated_at
		 FROM status
		 ORDER BY updated_at DESC
		 LIMIT 1
		 `

	rec := &models.StatusRecord{}
	var status string
	err := r.db.QueryRowContext(ctx, query).Scan(
		&status, &rec.Message, &rec.ETA, &rec.UpdatedBy, &rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.Status = models.Status(status)
	return rec, nil
}
