// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"keygate/internal/dbx"
	"keygate/internal/server/migrations"
	"keygate/internal/server/repositories/keys"
	"keygate/internal/server/repositories/members"
	"keygate/internal/server/repositories/statuses"
	"keygate/internal/server/repositories/users"
)

// expectedRelations are the tables VerifySchema checks for after migrations
// have run. goose_db_version is the persisted schema-version ledger.
var expectedRelations = []string{
	"users", "keys", "staff", "admins", "status", "goose_db_version",
}

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes the schema migration hooks.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed
// RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Keys returns a keys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Keys(db dbx.DBTX) keys.Repository {
	return keys.NewPostgresRepository(db)
}

// Members returns a members.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Members(db dbx.DBTX) members.Repository {
	return members.NewPostgresRepository(db)
}

// Statuses returns a statuses.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Statuses(db dbx.DBTX) statuses.Repository {
	return statuses.NewPostgresRepository(db)
}

// Seams for testing the goose entry points.
var (
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
	gooseUpToContext = func(ctx context.Context, db *sql.DB, dir string, version int64, opts ...goose.OptionsFunc) error {
		return goose.UpToContext(ctx, db, dir, version, opts...)
	}
	gooseGetDBVersionContext = func(ctx context.Context, db *sql.DB) (int64, error) {
		return goose.GetDBVersionContext(ctx, db)
	}
)

// RunMigrations sets up goose with the embedded migrations and applies every
// pending step against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return gooseUpContext(ctx, db, ".")
}

// MigrateTo applies migrations up to and including the target version.
func (m *PostgresRepositoryManager) MigrateTo(ctx context.Context, db *sql.DB, version int64) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return gooseUpToContext(ctx, db, ".", version)
}

// Version returns the latest persisted schema version, or 0 if no migration
// has ever been applied.
func (m *PostgresRepositoryManager) Version(ctx context.Context, db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return 0, err
	}

	return gooseGetDBVersionContext(ctx, db)
}

// VerifySchema checks each expected relation through to_regclass and returns
// the list of missing ones.
func (m *PostgresRepositoryManager) VerifySchema(ctx context.Context, db *sql.DB) ([]string, error) {
	var missing []string

	for _, name := range expectedRelations {
		var oid sql.NullString
		err := db.QueryRowContext(ctx, `SELECT to_regclass($1)`, name).Scan(&oid)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if !oid.Valid {
			missing = append(missing, name)
		}
	}

	return missing, nil
}
