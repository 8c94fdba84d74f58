package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/idlemine/internal/model"
)

// SkillRepository reads and writes rows of the skills table.
// It holds no connection: every call takes the querier of the current transaction.
type SkillRepository struct{}

// NewSkillRepository создаёт новый SkillRepository.
func NewSkillRepository() *SkillRepository {
	return &SkillRepository{}
}

const skillColumns = `user_id, skill_type, xp, level, current_action, action_started_at`

// GetOrCreate returns the skill row locked FOR UPDATE, inserting a fresh one first if absent.
func (r *SkillRepository) GetOrCreate(ctx context.Context, q querier, userID int64, skillType string) (*model.SkillState, error) {
	_, err := q.Exec(ctx,
		`INSERT INTO skills (user_id, skill_type) VALUES ($1, $2)
		 ON CONFLICT (user_id, skill_type) DO NOTHING`,
		userID, skillType,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting skill %s for user %d: %w", skillType, userID, err)
	}

	row := q.QueryRow(ctx,
		`SELECT `+skillColumns+` FROM skills
		 WHERE user_id = $1 AND skill_type = $2
		 FOR UPDATE`,
		userID, skillType,
	)
	sk, err := scanSkill(row)
	if err != nil {
		return nil, fmt.Errorf("locking skill %s for user %d: %w", skillType, userID, err)
	}
	return sk, nil
}

// Find returns the skill row or nil if it does not exist.
func (r *SkillRepository) Find(ctx context.Context, q querier, userID int64, skillType string) (*model.SkillState, error) {
	row := q.QueryRow(ctx,
		`SELECT `+skillColumns+` FROM skills WHERE user_id = $1 AND skill_type = $2`,
		userID, skillType,
	)
	sk, err := scanSkill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying skill %s for user %d: %w", skillType, userID, err)
	}
	return sk, nil
}

// Save writes the whole row.
func (r *SkillRepository) Save(ctx context.Context, q querier, sk *model.SkillState) error {
	var action *string
	if sk.CurrentAction != "" {
		a := sk.CurrentAction
		action = &a
	}

	_, err := q.Exec(ctx,
		`INSERT INTO skills (user_id, skill_type, xp, level, current_action, action_started_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id, skill_type) DO UPDATE SET
		     xp = EXCLUDED.xp,
		     level = EXCLUDED.level,
		     current_action = EXCLUDED.current_action,
		     action_started_at = EXCLUDED.action_started_at,
		     updated_at = EXCLUDED.updated_at`,
		sk.UserID, sk.SkillType, sk.XP, sk.Level, action, sk.ActionStartedAt,
	)
	if err != nil {
		return fmt.Errorf("saving skill %s for user %d: %w", sk.SkillType, sk.UserID, err)
	}
	return nil
}

func scanSkill(row pgx.Row) (*model.SkillState, error) {
	var (
		sk      model.SkillState
		action  *string
		started *time.Time
	)
	if err := row.Scan(&sk.UserID, &sk.SkillType, &sk.XP, &sk.Level, &action, &started); err != nil {
		return nil, err
	}
	if action != nil && started != nil {
		sk.CurrentAction = *action
		t := started.UTC()
		sk.ActionStartedAt = &t
	}
	return &sk, nil
}
