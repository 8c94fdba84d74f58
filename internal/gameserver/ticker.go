package gameserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/udisondev/idlemine/internal/protocol"
)

// tickTask is one user's repeating advance loop.
type tickTask struct {
	userID   int64
	actionID string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newTickTask(userID int64, actionID string) *tickTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &tickTask{
		userID:   userID,
		actionID: actionID,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Stop requests cancellation. The loop observes it at its next suspension point;
// an advance already inside its transaction still commits.
func (t *tickTask) Stop() {
	t.cancel()
}

// Done is closed when the loop has fully exited.
func (t *tickTask) Done() <-chan struct{} {
	return t.done
}

// Stopped reports whether the loop has exited.
func (t *tickTask) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// runTask drives t until the skill goes idle, a failure occurs or t is cancelled.
func (cm *ClientManager) runTask(t *tickTask, prev *tickTask) {
	// done closes first: removeTask must see a finished task.
	defer cm.removeTask(t.userID, t)
	defer close(t.done)

	// Ticks for one user never overlap: wait for the superseded loop first.
	if prev != nil {
		select {
		case <-prev.Done():
		case <-t.ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	skillType := cm.advancer.SkillType()
	for {
		if t.ctx.Err() != nil {
			return
		}

		// Storage work is not interrupted by cancellation.
		res, err := cm.advancer.Advance(context.WithoutCancel(t.ctx), t.userID, cm.clock.Now())
		if err != nil {
			slog.Error("tick failed, stopping scheduler",
				"userID", t.userID,
				"action", t.actionID,
				"error", err)
			_ = cm.sendFromTask(t, protocol.NewError("Mining interrupted, please start again."))
			return
		}
		// Cancelled while advancing: the commit stands, the events are dropped.
		if t.ctx.Err() != nil {
			return
		}
		if !res.Acting {
			slog.Debug("scheduler idle, exiting", "userID", t.userID)
			return
		}

		for _, ev := range protocol.TickEvents(skillType, res) {
			// A failed send has already detached the transport and cancelled us
			// unless it hit a replaced connection.
			err := cm.sendFromTask(t, ev)
			if errors.Is(err, ErrNotConnected) || errors.Is(err, errTaskRetired) {
				return
			}
		}

		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
