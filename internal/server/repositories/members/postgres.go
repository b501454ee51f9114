package members

import (
	"context"
	"fmt"

	"keygate/internal/common"
	"keygate/internal/dbx"
	"keygate/internal/server/models"
)

// Table names are compile-time constants; they are the only values ever
// interpolated into the queries below.
const (
	tableStaff  = "staff"
	tableAdmins = "admins"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) AddStaff(ctx context.Context, userID, addedBy string) error {
	return r.add(ctx, tableStaff, userID, addedBy)
}

func (r *PostgresRepository) RemoveStaff(ctx context.Context, userID string) error {
	return r.remove(ctx, tableStaff, userID)
}

func (r *PostgresRepository) IsStaff(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, tableStaff, userID)
}

func (r *PostgresRepository) ListStaff(ctx context.Context) ([]models.Membership, error) {
	return r.list(ctx, tableStaff)
}

func (r *PostgresRepository) CountStaff(ctx context.Context) (int, error) {
	return r.count(ctx, tableStaff)
}

func (r *PostgresRepository) AddAdmin(ctx context.Context, userID, addedBy string) error {
	return r.add(ctx, tableAdmins, userID, addedBy)
}

func (r *PostgresRepository) RemoveAdmin(ctx context.Context, userID string) error {
	return r.remove(ctx, tableAdmins, userID)
}

func (r *PostgresRepository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, tableAdmins, userID)
}

func (r *PostgresRepository) ListAdmins(ctx context.Context) ([]models.Membership, error) {
	return r.list(ctx, tableAdmins)
}

func (r *PostgresRepository) CountAdmins(ctx context.Context) (int, error) {
	return r.count(ctx, tableAdmins)
}

// add upserts a membership row; re-adding an existing member refreshes the
// added_by attribution instead of failing.
func (r *PostgresRepository) add(ctx context.Context, table, userID, addedBy string) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, added_by) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET added_by = EXCLUDED.added_by`, table)

	if _, err := r.db.ExecContext(ctx, query, userID, addedBy); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) remove(ctx context.Context, table, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table)

	result, err := r.db.ExecContext(ctx, query, userID)
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

func (r *PostgresRepository) exists(ctx context.Context, table, userID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE user_id = $1)`, table)

	var found bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&found); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return found, nil
}

func (r *PostgresRepository) list(ctx context.Context, table string) ([]models.Membership, error) {
	query := fmt.Sprintf(
		`SELECT user_id, added_by, created_at FROM %s ORDER BY created_at DESC`, table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.AddedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) count(ctx context.Context, table string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)

	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
