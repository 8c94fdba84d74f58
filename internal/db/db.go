// Package db is the PostgreSQL storage backend.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a pgx connection pool and implements skill.Store.
type DB struct {
	pool     *pgxpool.Pool
	skills   *SkillRepository
	items    *ItemRepository
	accounts *AccountRepository
}

var _ skill.Store = (*DB)(nil)

// New connects to PostgreSQL and returns a DB handle.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return NewFromPool(pool), nil
}

// NewFromPool wraps an existing pool. The caller keeps ownership of the pool.
func NewFromPool(pool *pgxpool.Pool) *DB {
	return &DB{
		pool:     pool,
		skills:   NewSkillRepository(),
		items:    NewItemRepository(),
		accounts: NewAccountRepository(pool),
	}
}

// Close closes the database connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pgx pool.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// InTx runs fn in a read-committed transaction.
// Skill rows are fetched with SELECT ... FOR UPDATE, so concurrent
// transactions for the same user queue on the row lock.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx skill.Tx) error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{q: tx, skills: d.skills, items: d.items}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertAccount creates the account or refreshes its profile and last_active.
func (d *DB) UpsertAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	return d.accounts.Upsert(ctx, acc)
}

// GetAccount returns the account or nil if it does not exist.
func (d *DB) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	return d.accounts.Get(ctx, userID)
}

// pgTx binds repositories to one pgx transaction.
type pgTx struct {
	q      querier
	skills *SkillRepository
	items  *ItemRepository
}

func (t *pgTx) GetOrCreateSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error) {
	return t.skills.GetOrCreate(ctx, t.q, userID, skillType)
}

func (t *pgTx) FindSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error) {
	return t.skills.Find(ctx, t.q, userID, skillType)
}

func (t *pgTx) SaveSkill(ctx context.Context, sk *model.SkillState) error {
	return t.skills.Save(ctx, t.q, sk)
}

func (t *pgTx) GetOrCreateInventoryItem(ctx context.Context, userID int64, itemType string) (*model.InventoryItem, error) {
	return t.items.GetOrCreate(ctx, t.q, userID, itemType)
}

func (t *pgTx) SaveInventoryItem(ctx context.Context, it *model.InventoryItem) error {
	return t.items.Save(ctx, t.q, it)
}

func (t *pgTx) ListInventory(ctx context.Context, userID int64) ([]*model.InventoryItem, error) {
	return t.items.List(ctx, t.q, userID)
}
