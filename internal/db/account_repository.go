package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/idlemine/internal/model"
)

// AccountRepository manages the accounts table.
type AccountRepository struct {
	q   querier
	now func() time.Time
}

// NewAccountRepository создаёт новый AccountRepository.
func NewAccountRepository(q querier) *AccountRepository {
	return &AccountRepository{q: q, now: time.Now}
}

// Upsert creates the account on first login and refreshes username, first name
// and last_active afterwards. created_at is never overwritten.
func (r *AccountRepository) Upsert(ctx context.Context, acc *model.Account) (*model.Account, error) {
	now := r.now().UTC()
	row := r.q.QueryRow(ctx,
		`INSERT INTO accounts (user_id, username, first_name, created_at, last_active)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     username = EXCLUDED.username,
		     first_name = EXCLUDED.first_name,
		     last_active = EXCLUDED.last_active
		 RETURNING user_id, username, first_name, created_at, last_active`,
		acc.UserID, acc.Username, acc.FirstName, now,
	)
	out, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("upserting account %d: %w", acc.UserID, err)
	}
	return out, nil
}

// Get returns the account or nil, nil if not found.
func (r *AccountRepository) Get(ctx context.Context, userID int64) (*model.Account, error) {
	row := r.q.QueryRow(ctx,
		`SELECT user_id, username, first_name, created_at, last_active
		 FROM accounts WHERE user_id = $1`,
		userID,
	)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying account %d: %w", userID, err)
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var acc model.Account
	if err := row.Scan(&acc.UserID, &acc.Username, &acc.FirstName, &acc.CreatedAt, &acc.LastActive); err != nil {
		return nil, err
	}
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.LastActive = acc.LastActive.UTC()
	return &acc, nil
}
