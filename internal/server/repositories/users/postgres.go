package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT user_id, key_used, vip, max_time, concurrent_attacks, expires_at, created_at
		 FROM users
		 WHERE user_id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.KeyUsed, &user.VIP, &user.MaxDurationSeconds,
		&user.ConcurrencyQuota, &user.ExpiresAt, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	query :=
		`INSERT INTO users (user_id, key_used, vip, max_time, concurrent_attacks, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.KeyUsed, user.VIP, user.MaxDurationSeconds,
		user.ConcurrencyQuota, user.ExpiresAt).Scan(&user.CreatedAt)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]models.User, error) {
	query :=
		`SELECT user_id, key_used, vip, max_time, concurrent_attacks, expires_at, created_at
		 FROM users
		 ORDER BY created_at DESC
		 LIMIT $1
		 `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.KeyUsed, &user.VIP, &user.MaxDurationSeconds,
			&user.ConcurrencyQuota, &user.ExpiresAt, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return r.update(ctx, `UPDATE users SET expires_at = $1 WHERE user_id = $2`, expiresAt, id)
}

func (r *PostgresRepository) SetVIP(ctx context.Context, id string, vip bool) error {
	return r.update(ctx, `UPDATE users SET vip = $1 WHERE user_id = $2`, vip, id)
}

func (r *PostgresRepository) SetMaxDuration(ctx context.Context, id string, seconds int) error {
	return r.update(ctx, `UPDATE users SET max_time = $1 WHERE user_id = $2`, seconds, id)
}

func (r *PostgresRepository) SetConcurrency(ctx context.Context, id string, quota int) error {
	return r.update(ctx, `UPDATE users SET concurrent_attacks = $1 WHERE user_id = $2`, quota, id)
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (r *PostgresRepository) CountVIP(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE vip`)
}

func (r *PostgresRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
