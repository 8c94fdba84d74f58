// Package sqlite is the single-file storage backend built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/udisondev/idlemine/internal/db/migrations"
	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/model"
)

var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Store implements skill.Store over one SQLite file.
// The pool holds a single connection, so transactions run one at a time.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ skill.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	sqlDB, err := sql.Open("sqlite", dsn(filepath.Clean(path)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: sqlDB, now: time.Now}, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	return migrations.Up(ctx, sqlDB, migrations.DialectSQLite)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside BEGIN IMMEDIATE; commit on nil, rollback otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx skill.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertAccount creates the account or refreshes its profile and last_active.
func (s *Store) UpsertAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	now := toMillis(s.now())
	var (
		out                 model.Account
		created, lastActive int64
	)
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (user_id, username, first_name, created_at, last_active)
		 VALUES (?1, ?2, ?3, ?4, ?4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     username = excluded.username,
		     first_name = excluded.first_name,
		     last_active = excluded.last_active
		 RETURNING user_id, username, first_name, created_at, last_active`,
		acc.UserID, acc.Username, acc.FirstName, now,
	).Scan(&out.UserID, &out.Username, &out.FirstName, &created, &lastActive)
	if err != nil {
		return nil, fmt.Errorf("upserting account %d: %w", acc.UserID, err)
	}
	out.CreatedAt = fromMillis(created)
	out.LastActive = fromMillis(lastActive)
	return &out, nil
}

// GetAccount returns the account or nil if it does not exist.
func (s *Store) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	var (
		out                 model.Account
		created, lastActive int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, created_at, last_active FROM accounts WHERE user_id = ?1`,
		userID,
	).Scan(&out.UserID, &out.Username, &out.FirstName, &created, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account %d: %w", userID, err)
	}
	out.CreatedAt = fromMillis(created)
	out.LastActive = fromMillis(lastActive)
	return &out, nil
}
