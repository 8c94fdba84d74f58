// Package migrations contains embedded goose migrations, one directory per dialect.
package migrations

import "embed"

// Directory names inside FS.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
