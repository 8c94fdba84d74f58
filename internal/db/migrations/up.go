package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

// Goose dialect names understood by Up.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Dir returns the migration directory inside FS for a goose dialect.
func Dir(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres:
		return PostgresDir, nil
	case DialectSQLite:
		return SQLiteDir, nil
	default:
		return "", fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

// Up applies every pending migration for dialect to sqlDB.
func Up(ctx context.Context, sqlDB *sql.DB, dialect string) error {
	dir, err := Dir(dialect)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("running %s migrations: %w", dialect, err)
	}
	return nil
}
