// Package memory is a process-local storage backend.
// Used by tests and by `serve --storage memory` for local runs; data is lost on exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/model"
)

type skillKey struct {
	userID    int64
	skillType string
}

type itemKey struct {
	userID   int64
	itemType string
}

// Store keeps accounts, skills and inventory in maps.
// One transaction runs at a time; writes become visible on commit only.
type Store struct {
	mu       sync.Mutex
	skills   map[skillKey]*model.SkillState
	items    map[itemKey]*model.InventoryItem
	accounts map[int64]*model.Account
}

// New creates an empty store.
func New() *Store {
	return &Store{
		skills:   make(map[skillKey]*model.SkillState),
		items:    make(map[itemKey]*model.InventoryItem),
		accounts: make(map[int64]*model.Account),
	}
}

var _ skill.Store = (*Store)(nil)

// InTx runs fn under the store lock. Changes are applied only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx skill.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:  s,
		skills: make(map[skillKey]*model.SkillState),
		items:  make(map[itemKey]*model.InventoryItem),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for k, v := range tx.skills {
		s.skills[k] = v
	}
	for k, v := range tx.items {
		s.items[k] = v
	}
	return nil
}

// UpsertAccount creates the account or refreshes its profile and LastActive.
func (s *Store) UpsertAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.accounts[acc.UserID]
	if !ok {
		stored := *acc
		stored.CreatedAt = now
		stored.LastActive = now
		s.accounts[acc.UserID] = &stored
		out := stored
		return &out, nil
	}

	existing.Username = acc.Username
	existing.FirstName = acc.FirstName
	existing.LastActive = now
	out := *existing
	return &out, nil
}

// GetAccount returns the account or nil.
func (s *Store) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, nil
	}
	out := *acc
	return &out, nil
}

// memTx stages writes made inside one InTx call.
type memTx struct {
	store  *Store
	skills map[skillKey]*model.SkillState
	items  map[itemKey]*model.InventoryItem
}

func (t *memTx) GetOrCreateSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error) {
	sk, err := t.FindSkill(ctx, userID, skillType)
	if err != nil || sk != nil {
		return sk, err
	}
	sk = model.NewSkillState(userID, skillType)
	t.skills[skillKey{userID, skillType}] = sk.Clone()
	return sk, nil
}

func (t *memTx) FindSkill(_ context.Context, userID int64, skillType string) (*model.SkillState, error) {
	k := skillKey{userID, skillType}
	if sk, ok := t.skills[k]; ok {
		return sk.Clone(), nil
	}
	if sk, ok := t.store.skills[k]; ok {
		return sk.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) SaveSkill(_ context.Context, sk *model.SkillState) error {
	t.skills[skillKey{sk.UserID, sk.SkillType}] = sk.Clone()
	return nil
}

func (t *memTx) GetOrCreateInventoryItem(_ context.Context, userID int64, itemType string) (*model.InventoryItem, error) {
	k := itemKey{userID, itemType}
	if it, ok := t.items[k]; ok {
		out := *it
		return &out, nil
	}
	if it, ok := t.store.items[k]; ok {
		out := *it
		return &out, nil
	}
	it := &model.InventoryItem{UserID: userID, ItemType: itemType}
	staged := *it
	t.items[k] = &staged
	return it, nil
}

func (t *memTx) SaveInventoryItem(_ context.Context, it *model.InventoryItem) error {
	staged := *it
	t.items[itemKey{it.UserID, it.ItemType}] = &staged
	return nil
}

func (t *memTx) ListInventory(_ context.Context, userID int64) ([]*model.InventoryItem, error) {
	merged := make(map[string]*model.InventoryItem)
	for k, it := range t.store.items {
		if k.userID == userID {
			merged[k.itemType] = it
		}
	}
	for k, it := range t.items {
		if k.userID == userID {
			merged[k.itemType] = it
		}
	}

	out := make([]*model.InventoryItem, 0, len(merged))
	for _, it := range merged {
		c := *it
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemType < out[j].ItemType })
	return out, nil
}
