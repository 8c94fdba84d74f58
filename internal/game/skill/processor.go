package skill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/udisondev/idlemine/internal/data"
	"github.com/udisondev/idlemine/internal/model"
)

// Processor applies timed-action rules to one skill type.
// It is the only writer of SkillState and InventoryItem rows; every call
// runs inside exactly one Store transaction.
type Processor struct {
	store     Store
	catalog   Catalog
	clock     Clock
	skillType string
}

// NewProcessor creates a processor for the mining skill.
// A nil clock means SystemClock.
func NewProcessor(store Store, catalog Catalog, clock Clock) *Processor {
	if clock == nil {
		clock = SystemClock
	}
	return &Processor{
		store:     store,
		catalog:   catalog,
		clock:     clock,
		skillType: model.SkillMining,
	}
}

// SkillType returns the skill this processor drives.
func (p *Processor) SkillType() string {
	return p.skillType
}

// Clock returns the processor's time source.
func (p *Processor) Clock() Clock {
	return p.clock
}

// Catalog returns the action table.
func (p *Processor) Catalog() Catalog {
	return p.catalog
}

// Start begins (or restarts) an action. Starting grants no XP or progress.
// Returns a *DomainError wrapping ErrUnknownAction or ErrInsufficientLevel on rejection;
// in that case nothing is persisted.
func (p *Processor) Start(ctx context.Context, userID int64, actionID string) (ActionResult, error) {
	var res ActionResult
	err := p.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sk, err := p.loadSkill(ctx, tx, userID)
		if err != nil {
			return err
		}

		ore, ok := p.catalog.Lookup(actionID)
		if !ok {
			return &DomainError{
				Kind:    ErrUnknownAction,
				Message: fmt.Sprintf("Unknown ore: %s", actionID),
			}
		}
		if sk.Level < ore.LevelRequired {
			return &DomainError{
				Kind: ErrInsufficientLevel,
				Message: fmt.Sprintf("You need %s level %d to mine %s.",
					displaySkill(p.skillType), ore.LevelRequired, ore.Name),
			}
		}

		sk.StartAction(ore.ID, p.clock.Now())
		if err := tx.SaveSkill(ctx, sk); err != nil {
			return fmt.Errorf("saving skill for user %d: %w", userID, err)
		}

		res = newActionResult(sk)
		res.ActionID = ore.ID
		res.ActionName = ore.Name
		res.Message = fmt.Sprintf("Started mining %s...", ore.Name)
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}

	slog.Debug("action started", "userID", userID, "action", res.ActionID)
	return res, nil
}

// Stop clears the current action. Stopping an idle skill succeeds as a no-op.
func (p *Processor) Stop(ctx context.Context, userID int64) (ActionResult, error) {
	var res ActionResult
	err := p.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sk, err := p.loadSkill(ctx, tx, userID)
		if err != nil {
			return err
		}

		sk.ClearAction()
		if err := tx.SaveSkill(ctx, sk); err != nil {
			return fmt.Errorf("saving skill for user %d: %w", userID, err)
		}

		res = newActionResult(sk)
		res.Message = "Mining stopped."
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	return res, nil
}

// Advance applies one elapsed-time step at the given instant.
//
// At most one completion happens per call. On completion the timer restarts at now;
// time elapsed past the threshold is discarded.
// TickResult.Acting == false tells the caller to stop scheduling.
func (p *Processor) Advance(ctx context.Context, userID int64, now time.Time) (TickResult, error) {
	var res TickResult
	err := p.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sk, err := p.loadSkill(ctx, tx, userID)
		if err != nil {
			return err
		}

		if !sk.IsActing() {
			res = TickResult{TotalXP: sk.XP, Level: sk.Level}
			return nil
		}

		ore, ok := p.catalog.Lookup(sk.CurrentAction)
		if !ok {
			// Action vanished from the catalog: drop it so the skill is idle again.
			slog.Warn("clearing unknown stored action",
				"userID", userID,
				"action", sk.CurrentAction)
			sk.ClearAction()
			if err := tx.SaveSkill(ctx, sk); err != nil {
				return fmt.Errorf("saving skill for user %d: %w", userID, err)
			}
			res = TickResult{TotalXP: sk.XP, Level: sk.Level}
			return nil
		}

		elapsed := now.Sub(*sk.ActionStartedAt)
		if elapsed < ore.Duration {
			res = p.inProgress(sk, ore, progressOf(elapsed, ore.Duration))
			return nil
		}

		res, err = p.complete(ctx, tx, sk, ore, now)
		return err
	})
	if err != nil {
		return TickResult{}, err
	}
	return res, nil
}

// complete awards one item and the action's XP, recomputes level and restarts the timer.
func (p *Processor) complete(ctx context.Context, tx Tx, sk *model.SkillState, ore data.Ore, now time.Time) (TickResult, error) {
	item, err := tx.GetOrCreateInventoryItem(ctx, sk.UserID, ore.ItemType())
	if err != nil {
		return TickResult{}, fmt.Errorf("loading inventory %s for user %d: %w", ore.ItemType(), sk.UserID, err)
	}
	item.Quantity++

	oldLevel := sk.Level
	sk.XP += ore.XP
	sk.Level = data.LevelForXP(sk.XP)
	sk.StartAction(ore.ID, now)

	if err := tx.SaveInventoryItem(ctx, item); err != nil {
		return TickResult{}, fmt.Errorf("saving inventory %s for user %d: %w", ore.ItemType(), sk.UserID, err)
	}
	if err := tx.SaveSkill(ctx, sk); err != nil {
		return TickResult{}, fmt.Errorf("saving skill for user %d: %w", sk.UserID, err)
	}

	xpIn, xpNeeded := data.XPProgressInLevel(sk.XP, sk.Level)
	res := TickResult{
		Acting:     true,
		Completed:  true,
		ActionID:   ore.ID,
		ActionName: ore.Name,
		Progress:   0,
		XPGained:   ore.XP,
		TotalXP:    sk.XP,
		Level:      sk.Level,
		Quantity:   item.Quantity,
		XPInLevel:  xpIn,
		XPNeeded:   xpNeeded,
		Message:    fmt.Sprintf("+1 %s! +%d XP", ore.Name, ore.XP),
	}
	if sk.Level > oldLevel {
		res.LeveledUp = true
		res.NewLevel = sk.Level
		slog.Info("level up",
			"userID", sk.UserID,
			"skill", sk.SkillType,
			"level", sk.Level,
			"xp", sk.XP)
	}
	return res, nil
}

func (p *Processor) inProgress(sk *model.SkillState, ore data.Ore, progress float64) TickResult {
	xpIn, xpNeeded := data.XPProgressInLevel(sk.XP, sk.Level)
	return TickResult{
		Acting:     true,
		ActionID:   ore.ID,
		ActionName: ore.Name,
		Progress:   progress,
		TotalXP:    sk.XP,
		Level:      sk.Level,
		XPInLevel:  xpIn,
		XPNeeded:   xpNeeded,
		Message:    fmt.Sprintf("Mining %s...", ore.Name),
	}
}

// Status returns a read-only projection of the user's skill and inventory.
// Nothing is created or written, missing rows read as defaults.
func (p *Processor) Status(ctx context.Context, userID int64) (Status, error) {
	var st Status
	err := p.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sk, err := tx.FindSkill(ctx, userID, p.skillType)
		if err != nil {
			return fmt.Errorf("finding skill for user %d: %w", userID, err)
		}
		if sk == nil {
			sk = model.NewSkillState(userID, p.skillType)
		}
		sk.Level = data.LevelForXP(sk.XP)

		items, err := tx.ListInventory(ctx, userID)
		if err != nil {
			return fmt.Errorf("listing inventory for user %d: %w", userID, err)
		}
		owned := make(map[string]int64, len(items))
		for _, it := range items {
			owned[it.ItemType] = it.Quantity
		}

		st = p.buildStatus(sk, owned)
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

func (p *Processor) buildStatus(sk *model.SkillState, owned map[string]int64) Status {
	xpIn, xpNeeded := data.XPProgressInLevel(sk.XP, sk.Level)
	ores := p.catalog.List()

	st := Status{
		SkillType: sk.SkillType,
		Level:     sk.Level,
		XP:        sk.XP,
		XPInLevel: xpIn,
		XPNeeded:  xpNeeded,
		Actions:   make([]ActionStatus, 0, len(ores)),
		Inventory: make(map[string]int64, len(ores)),
	}

	if sk.IsActing() {
		st.CurrentAction = sk.CurrentAction
		started := *sk.ActionStartedAt
		st.ActionStartedAt = &started
		if ore, ok := p.catalog.Lookup(sk.CurrentAction); ok {
			st.Progress = progressOf(p.clock.Now().Sub(started), ore.Duration)
		}
	}

	for _, ore := range ores {
		qty := owned[ore.ItemType()]
		st.Actions = append(st.Actions, ActionStatus{
			Ore:      ore,
			Quantity: qty,
			Unlocked: sk.Level >= ore.LevelRequired,
		})
		st.Inventory[ore.ID] = qty
	}
	return st
}

// loadSkill fetches-or-creates the skill and re-derives its level from XP.
func (p *Processor) loadSkill(ctx context.Context, tx Tx, userID int64) (*model.SkillState, error) {
	sk, err := tx.GetOrCreateSkill(ctx, userID, p.skillType)
	if err != nil {
		return nil, fmt.Errorf("loading skill for user %d: %w", userID, err)
	}
	sk.Level = data.LevelForXP(sk.XP)
	return sk, nil
}

// progressOf returns elapsed/duration clamped to [0, 1].
func progressOf(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return min(float64(elapsed)/float64(duration), 1)
}

func displaySkill(skillType string) string {
	if skillType == "" {
		return skillType
	}
	return strings.ToUpper(skillType[:1]) + skillType[1:]
}
