package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/model"
	"github.com/udisondev/idlemine/internal/testutil"
)

func TestStore_CommitMakesWritesVisible(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(ctx context.Context, tx skill.Tx) error {
		sk, err := tx.GetOrCreateSkill(ctx, 1, model.SkillMining)
		require.NoError(t, err)
		sk.XP = 50
		if err := tx.SaveSkill(ctx, sk); err != nil {
			return err
		}
		item, err := tx.GetOrCreateInventoryItem(ctx, 1, "copper_ore")
		require.NoError(t, err)
		item.Quantity = 3
		return tx.SaveInventoryItem(ctx, item)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(ctx context.Context, tx skill.Tx) error {
		sk, err := tx.FindSkill(ctx, 1, model.SkillMining)
		require.NoError(t, err)
		require.NotNil(t, sk)
		assert.Equal(t, int64(50), sk.XP)

		items, err := tx.ListInventory(ctx, 1)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(3), items[0].Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(ctx context.Context, tx skill.Tx) error {
		sk, err := tx.GetOrCreateSkill(ctx, 1, model.SkillMining)
		require.NoError(t, err)
		sk.XP = 999
		require.NoError(t, tx.SaveSkill(ctx, sk))
		return testutil.ErrSimulated
	})
	require.True(t, errors.Is(err, testutil.ErrSimulated))

	err = s.InTx(ctx, func(ctx context.Context, tx skill.Tx) error {
		sk, err := tx.FindSkill(ctx, 1, model.SkillMining)
		assert.Nil(t, sk)
		return err
	})
	require.NoError(t, err)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(ctx context.Context, tx skill.Tx) error {
		sk, err := tx.GetOrCreateSkill(ctx, 1, model.SkillMining)
		require.NoError(t, err)
		sk.XP = 10 // not saved
		again, err := tx.FindSkill(ctx, 1, model.SkillMining)
		require.NoError(t, err)
		assert.Equal(t, int64(0), again.XP)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().InTx(ctx, func(context.Context, skill.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_UpsertAccount(t *testing.T) {
	ctx := context.Background()
	s := New()

	acc, err := s.UpsertAccount(ctx, &model.Account{UserID: 5, Username: "old", FirstName: "Ann"})
	require.NoError(t, err)
	assert.False(t, acc.CreatedAt.IsZero())
	created := acc.CreatedAt

	acc, err = s.UpsertAccount(ctx, &model.Account{UserID: 5, Username: "new", FirstName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "new", acc.Username)
	assert.Equal(t, created, acc.CreatedAt)

	got, err := s.GetAccount(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Username)

	missing, err := s.GetAccount(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
