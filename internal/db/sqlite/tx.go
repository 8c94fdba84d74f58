package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/udisondev/idlemine/internal/model"
)

// sqlTx implements skill.Tx on a *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetOrCreateSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error) {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO skills (user_id, skill_type) VALUES (?1, ?2)
		 ON CONFLICT (user_id, skill_type) DO NOTHING`,
		userID, skillType,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting skill %s for user %d: %w", skillType, userID, err)
	}

	sk, err := t.FindSkill(ctx, userID, skillType)
	if err != nil {
		return nil, err
	}
	if sk == nil {
		return nil, fmt.Errorf("skill %s for user %d vanished after insert", skillType, userID)
	}
	return sk, nil
}

func (t *sqlTx) FindSkill(ctx context.Context, userID int64, skillType string) (*model.SkillState, error) {
	var (
		sk      model.SkillState
		action  sql.NullString
		started sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT user_id, skill_type, xp, level, current_action, action_started_at
		 FROM skills WHERE user_id = ?1 AND skill_type = ?2`,
		userID, skillType,
	).Scan(&sk.UserID, &sk.SkillType, &sk.XP, &sk.Level, &action, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying skill %s for user %d: %w", skillType, userID, err)
	}
	if action.Valid && started.Valid {
		sk.StartAction(action.String, fromMillis(started.Int64))
	}
	return &sk, nil
}

func (t *sqlTx) SaveSkill(ctx context.Context, sk *model.SkillState) error {
	var (
		action  sql.NullString
		started sql.NullInt64
	)
	if sk.IsActing() {
		action = sql.NullString{String: sk.CurrentAction, Valid: true}
		started = sql.NullInt64{Int64: toMillis(*sk.ActionStartedAt), Valid: true}
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO skills (user_id, skill_type, xp, level, current_action, action_started_at)
		 VALUES (?1, ?2, ?3, ?4, ?5, ?6)
		 ON CONFLICT (user_id, skill_type) DO UPDATE SET
		     xp = excluded.xp,
		     level = excluded.level,
		     current_action = excluded.current_action,
		     action_started_at = excluded.action_started_at`,
		sk.UserID, sk.SkillType, sk.XP, sk.Level, action, started,
	)
	if err != nil {
		return fmt.Errorf("saving skill %s for user %d: %w", sk.SkillType, sk.UserID, err)
	}
	return nil
}

func (t *sqlTx) GetOrCreateInventoryItem(ctx context.Context, userID int64, itemType string) (*model.InventoryItem, error) {
	it := &model.InventoryItem{UserID: userID, ItemType: itemType}
	err := t.tx.QueryRowContext(ctx,
		`SELECT quantity FROM inventory_items WHERE user_id = ?1 AND item_type = ?2`,
		userID, itemType,
	).Scan(&it.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return it, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying item %s for user %d: %w", itemType, userID, err)
	}
	return it, nil
}

func (t *sqlTx) SaveInventoryItem(ctx context.Context, it *model.InventoryItem) error {
	if it.Quantity < 0 {
		return fmt.Errorf("saving item %s for user %d: negative quantity %d", it.ItemType, it.UserID, it.Quantity)
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO inventory_items (user_id, item_type, quantity) VALUES (?1, ?2, ?3)
		 ON CONFLICT (user_id, item_type) DO UPDATE SET quantity = excluded.quantity`,
		it.UserID, it.ItemType, it.Quantity,
	)
	if err != nil {
		return fmt.Errorf("saving item %s for user %d: %w", it.ItemType, it.UserID, err)
	}
	return nil
}

func (t *sqlTx) ListInventory(ctx context.Context, userID int64) ([]*model.InventoryItem, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT item_type, quantity FROM inventory_items WHERE user_id = ?1 ORDER BY item_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying inventory for user %d: %w", userID, err)
	}
	defer rows.Close()

	var items []*model.InventoryItem
	for rows.Next() {
		it := &model.InventoryItem{UserID: userID}
		if err := rows.Scan(&it.ItemType, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inventory rows: %w", err)
	}
	return items, nil
}
