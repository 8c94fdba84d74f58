package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/idlemine/internal/model"
)

// ItemRepository управляет счётчиками инвентаря в БД.
type ItemRepository struct{}

// NewItemRepository создаёт новый ItemRepository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{}
}

// GetOrCreate returns the counter row locked FOR UPDATE, inserting a zero row if absent.
func (r *ItemRepository) GetOrCreate(ctx context.Context, q querier, userID int64, itemType string) (*model.InventoryItem, error) {
	_, err := q.Exec(ctx,
		`INSERT INTO inventory_items (user_id, item_type) VALUES ($1, $2)
		 ON CONFLICT (user_id, item_type) DO NOTHING`,
		userID, itemType,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting item %s for user %d: %w", itemType, userID, err)
	}

	it := &model.InventoryItem{UserID: userID, ItemType: itemType}
	err = q.QueryRow(ctx,
		`SELECT quantity FROM inventory_items
		 WHERE user_id = $1 AND item_type = $2
		 FOR UPDATE`,
		userID, itemType,
	).Scan(&it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return it, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking item %s for user %d: %w", itemType, userID, err)
	}
	return it, nil
}

// Save upserts the counter.
func (r *ItemRepository) Save(ctx context.Context, q querier, it *model.InventoryItem) error {
	if it.Quantity < 0 {
		return fmt.Errorf("saving item %s for user %d: negative quantity %d", it.ItemType, it.UserID, it.Quantity)
	}
	_, err := q.Exec(ctx,
		`INSERT INTO inventory_items (user_id, item_type, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, item_type) DO UPDATE SET quantity = EXCLUDED.quantity`,
		it.UserID, it.ItemType, it.Quantity,
	)
	if err != nil {
		return fmt.Errorf("saving item %s for user %d: %w", it.ItemType, it.UserID, err)
	}
	return nil
}

// List загружает все счётчики пользователя, отсортированные по item_type.
func (r *ItemRepository) List(ctx context.Context, q querier, userID int64) ([]*model.InventoryItem, error) {
	rows, err := q.Query(ctx,
		`SELECT item_type, quantity FROM inventory_items
		 WHERE user_id = $1
		 ORDER BY item_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying inventory for user %d: %w", userID, err)
	}
	defer rows.Close()

	items := make([]*model.InventoryItem, 0, 8)
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
