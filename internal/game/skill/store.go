package skill

import (
	"context"
	"time"

	"github.com/udisondev/idlemine/internal/data"
	"github.com/udisondev/idlemine/internal/model"
)

// Store opens transactions against durable storage.
// InTx commits when fn returns nil and rolls back otherwise.
// Two InTx calls touching the same user's skill row never interleave their
// read-modify-write: the implementation serialises them (row lock or equivalent).
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the per-transaction view of storage the processor works with.
type Tx interface {
	// GetOrCreateSkill returns the skill row, inserting a fresh one (xp=0, level=1, idle)
	// when absent. The row stays locked for the rest of the transaction.
	GetOrCreateSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error)

	// FindSkill returns the skill row or nil. Never inserts.
	FindSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error)

	SaveSkill(ctx context.Context, skill *model.SkillState) error

	GetOrCreateInventoryItem(ctx context.Context, userID int64, itemType string) (*model.InventoryItem, error)
	SaveInventoryItem(ctx context.Context, item *model.InventoryItem) error

	// ListInventory returns all inventory rows of the user. Never inserts.
	ListInventory(ctx context.Context, userID int64) ([]*model.InventoryItem, error)
}

// Catalog is the read-only action table.
type Catalog interface {
	Lookup(id string) (data.Ore, bool)
	List() []data.Ore
}

// Clock provides the current time. Injected so tests control elapsed time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads wall-clock time.
var SystemClock Clock = ClockFunc(time.Now)
