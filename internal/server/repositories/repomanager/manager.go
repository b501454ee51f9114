package repomanager

import (
	"context"
	"database/sql"

	"keygate/internal/dbx"
	"keygate/internal/server/repositories/keys"
	"keygate/internal/server/repositories/members"
	"keygate/internal/server/repositories/statuses"
	"keygate/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// owns schema migration and verification.
type RepositoryManager interface {
	// RunMigrations applies every pending migration in order. The persisted
	// schema version never advances past a failed step.
	RunMigrations(ctx context.Context, db *sql.DB) error
	// MigrateTo applies migrations up to and including the target version.
	MigrateTo(ctx context.Context, db *sql.DB, version int64) error
	// Version returns the latest persisted schema version, 0 if none.
	Version(ctx context.Context, db *sql.DB) (int64, error)
	// VerifySchema returns the names of expected relations missing from the
	// database. It is a startup health check, not a repair action.
	VerifySchema(ctx context.Context, db *sql.DB) ([]string, error)

	Users(db dbx.DBTX) users.Repository
	Keys(db dbx.DBTX) keys.Repository
	Members(db dbx.DBTX) members.Repository
	Statuses(db dbx.DBTX) statuses.Repository
}
