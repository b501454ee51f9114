// Package migrations embeds the goose SQL migrations for the entitlement
// schema. Every step uses IF-NOT-EXISTS forms so re-applying against an
// already-migrated database is a no-op.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
