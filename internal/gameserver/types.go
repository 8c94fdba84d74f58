package gameserver

import (
	"context"
	"time"

	"github.com/udisondev/idlemine/internal/auth"
	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/model"
)

// ActionProcessor is what the handlers need from skill.Processor.
type ActionProcessor interface {
	Advancer
	Start(ctx context.Context, userID int64, actionID string) (skill.ActionResult, error)
	Stop(ctx context.Context, userID int64) (skill.ActionResult, error)
	Status(ctx context.Context, userID int64) (skill.Status, error)
	Catalog() skill.Catalog
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	Issue(userID int64) (string, time.Time, error)
	Verify(token string) (int64, error)
}

// LoginValidator turns Telegram initData into a user.
type LoginValidator interface {
	Validate(initData string) (auth.TelegramUser, error)
}

// AccountStore persists player profiles on login.
type AccountStore interface {
	UpsertAccount(ctx context.Context, acc *model.Account) (*model.Account, error)
}
