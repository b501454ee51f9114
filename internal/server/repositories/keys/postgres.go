package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"keygate/internal/common"
	"keygate/internal/dbx"
	"keygate/internal/server/models"
)

// pgUniqueViolation is the SQLSTATE for unique-constraint failures.
const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Key, error) {
	query :=
		`SELECT key_id, created_by, max_time, concurrent_attacks, vip, expires_at, used_by, created_at
		 FROM keys
		 WHERE key_id = $1
		 `

	key := &models.Key{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&key.ID, &key.CreatedBy, &key.MaxDurationSeconds, &key.ConcurrencyQuota,
		&key.VIP, &key.ExpiresAt, &key.UsedBy, &key.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return key, nil
}

// Create inserts a freshly generated key. A primary-key collision surfaces as
// common.ErrDuplicateKey so the caller can regenerate the token and retry.
func (r *PostgresRepository) Create(ctx context.Context, key *models.Key) error {
	query :=
		`INSERT INTO keys (key_id, created_by, max_time, concurrent_attacks, vip, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		key.ID, key.CreatedBy, key.MaxDurationSeconds, key.ConcurrencyQuota,
		key.VIP, key.ExpiresAt).Scan(&key.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrDuplicateKey
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, keyID, userID string) error {
	query :=
		`UPDATE keys SET used_by = $2
		 WHERE key_id = $1 AND used_by IS NULL
		 `

	result, err := r.db.ExecContext(ctx, query, keyID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrKeyAlreadyUsed
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.Key, error) {
	query :=
		`SELECT key_id, created_by, max_time, concurrent_attacks, vip, expires_at, used_by, created_at
		 FROM keys
		 ORDER BY created_at DESC
		 LIMIT $1
		 `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Key
	for rows.Next() {
		var key models.Key
		if err := rows.Scan(&key.ID, &key.CreatedBy, &key.MaxDurationSeconds, &key.ConcurrencyQuota,
			&key.VIP, &key.ExpiresAt, &key.UsedBy, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM keys`)
}

func (r *PostgresRepository) CountUsed(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM keys WHERE used_by IS NOT NULL`)
}

func (r *PostgresRepository) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
