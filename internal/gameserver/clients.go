package gameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/protocol"
)

// ErrNotConnected: no transport is registered for the user.
var ErrNotConnected = errors.New("user not connected")

// errTaskRetired: the sending tick task is no longer the user's scheduler.
var errTaskRetired = errors.New("tick task retired")

// Advancer is the part of the action processor the scheduler drives.
type Advancer interface {
	Advance(ctx context.Context, userID int64, now time.Time) (skill.TickResult, error)
	SkillType() string
}

// userEntry is the per-user slot. mu guards client, task and last;
// dead marks an entry already removed from the map (callers must retry).
//
// task is the installed scheduler. last is the most recently started one and
// survives Detach/StopScheduler until its loop exits, so the next scheduler
// can wait for it even after the user reconnects.
type userEntry struct {
	mu     sync.Mutex
	client Transport
	task   *tickTask
	last   *tickTask
	dead   bool
}

// ClientManager keeps at most one transport and one tick task per user.
// Every mutation takes the user's entry lock, so two code paths can never
// install two transports or two schedulers for the same user.
type ClientManager struct {
	mu    sync.Mutex
	users map[int64]*userEntry

	advancer Advancer
	clock    skill.Clock
	interval time.Duration

	tasks sync.WaitGroup
}

// NewClientManager creates a registry whose tick tasks call advancer every interval.
func NewClientManager(advancer Advancer, clock skill.Clock, interval time.Duration) *ClientManager {
	if clock == nil {
		clock = skill.SystemClock
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &ClientManager{
		users:    make(map[int64]*userEntry, 1000), // pre-allocate for 1K players
		advancer: advancer,
		clock:    clock,
		interval: interval,
	}
}

// lockEntry returns the user's entry locked. With create=false a missing entry yields nil.
func (cm *ClientManager) lockEntry(userID int64, create bool) *userEntry {
	for {
		cm.mu.Lock()
		e, ok := cm.users[userID]
		if !ok {
			if !create {
				cm.mu.Unlock()
				return nil
			}
			e = &userEntry{}
			cm.users[userID] = e
		}
		cm.mu.Unlock()

		e.mu.Lock()
		if !e.dead {
			return e
		}
		e.mu.Unlock()
	}
}

// unlockEntry drops an empty entry from the map before releasing it.
func (cm *ClientManager) unlockEntry(userID int64, e *userEntry) {
	if e.client == nil && e.task == nil && e.last == nil {
		e.dead = true
		cm.mu.Lock()
		if cm.users[userID] == e {
			delete(cm.users, userID)
		}
		cm.mu.Unlock()
	}
	e.mu.Unlock()
}

// Register installs client as the user's transport.
// A previously registered transport is closed (best effort). The scheduler is not touched.
func (cm *ClientManager) Register(userID int64, client Transport) {
	e := cm.lockEntry(userID, true)
	old := e.client
	e.client = client
	cm.unlockEntry(userID, e)

	if old != nil && old != client {
		slog.Info("replacing stale connection", "userID", userID, "old", old.ID(), "new", client.ID())
		if err := old.Close(); err != nil {
			slog.Debug("closing stale connection", "userID", userID, "error", err)
		}
	}
}

// Unregister removes the user's transport and cancels their tick task.
func (cm *ClientManager) Unregister(userID int64) {
	cm.detach(userID, nil)
}

// Detach is Unregister guarded by identity: it does nothing unless client
// is still the user's current transport. Read loops of replaced connections
// call this so they cannot tear down their successor.
func (cm *ClientManager) Detach(userID int64, client Transport) bool {
	return cm.detach(userID, client)
}

func (cm *ClientManager) detach(userID int64, client Transport) bool {
	e := cm.lockEntry(userID, false)
	if e == nil {
		return false
	}
	if client != nil && e.client != client {
		e.mu.Unlock()
		return false
	}

	e.client = nil
	task := e.task
	e.task = nil
	cm.unlockEntry(userID, e)

	if task != nil {
		task.Stop()
	}
	slog.Debug("client unregistered", "userID", userID)
	return true
}

// Send encodes ev and delivers it to the user's transport.
// A delivery failure detaches and closes the transport.
func (cm *ClientManager) Send(userID int64, ev protocol.Event) error {
	return cm.deliver(userID, nil, ev)
}

// sendFromTask is Send for scheduler output: it delivers only while task is
// still the user's installed scheduler, so a superseded or detached loop can
// never write into a newer session.
func (cm *ClientManager) sendFromTask(task *tickTask, ev protocol.Event) error {
	return cm.deliver(task.userID, task, ev)
}

func (cm *ClientManager) deliver(userID int64, task *tickTask, ev protocol.Event) error {
	msg, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	e := cm.lockEntry(userID, false)
	if e == nil {
		return ErrNotConnected
	}
	if task != nil && e.task != task {
		e.mu.Unlock()
		return errTaskRetired
	}
	client := e.client
	e.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}

	if err := client.Send(msg); err != nil {
		slog.Warn("send failed, dropping connection",
			"userID", userID,
			"conn", client.ID(),
			"event", ev.EventType(),
			"error", err)
		cm.Detach(userID, client)
		_ = client.Close()
		return fmt.Errorf("sending %s to user %d: %w", ev.EventType(), userID, err)
	}
	return nil
}

// StartScheduler installs a new tick task for the user, cancelling any previous one.
// The new task does not tick until the previous one has fully stopped, including
// a task already detached by a disconnect whose Advance is still running.
func (cm *ClientManager) StartScheduler(userID int64, actionID string) {
	e := cm.lockEntry(userID, true)
	prev := e.last
	task := newTickTask(userID, actionID)
	e.task = task
	e.last = task
	cm.unlockEntry(userID, e)

	if prev != nil {
		prev.Stop()
	}

	cm.tasks.Go(func() {
		cm.runTask(task, prev)
	})
	slog.Debug("scheduler started", "userID", userID, "action", actionID)
}

// StopScheduler cancels the user's tick task, if any, and waits until it has stopped
// or ctx is done. Idempotent.
func (cm *ClientManager) StopScheduler(ctx context.Context, userID int64) error {
	e := cm.lockEntry(userID, false)
	if e == nil {
		return nil
	}
	task := e.task
	e.task = nil
	cm.unlockEntry(userID, e)

	if task == nil {
		return nil
	}
	task.Stop()

	select {
	case <-task.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// removeTask runs after task's loop has exited and clears whichever slots still point to it.
func (cm *ClientManager) removeTask(userID int64, task *tickTask) {
	e := cm.lockEntry(userID, false)
	if e == nil {
		return
	}
	if e.task == task {
		e.task = nil
	}
	if e.last == task {
		e.last = nil
	}
	cm.unlockEntry(userID, e)
}

// IsConnected reports whether a transport is registered for the user.
func (cm *ClientManager) IsConnected(userID int64) bool {
	e := cm.lockEntry(userID, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()
	return e.client != nil
}

// SchedulerRunning reports whether a tick task is installed for the user.
func (cm *ClientManager) SchedulerRunning(userID int64) bool {
	e := cm.lockEntry(userID, false)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()
	return e.task != nil
}

// Count returns number of connected clients.
func (cm *ClientManager) Count() int {
	n := 0
	cm.forEachEntry(func(e *userEntry) {
		if e.client != nil {
			n++
		}
	})
	return n
}

// TaskCount returns number of installed tick tasks.
func (cm *ClientManager) TaskCount() int {
	n := 0
	cm.forEachEntry(func(e *userEntry) {
		if e.task != nil {
			n++
		}
	})
	return n
}

func (cm *ClientManager) forEachEntry(fn func(e *userEntry)) {
	cm.mu.Lock()
	entries := make([]*userEntry, 0, len(cm.users))
	for _, e := range cm.users {
		entries = append(entries, e)
	}
	cm.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.dead {
			fn(e)
		}
		e.mu.Unlock()
	}
}

// Shutdown cancels every tick task, closes every transport and waits for
// task goroutines to exit or ctx to be done.
func (cm *ClientManager) Shutdown(ctx context.Context) error {
	cm.mu.Lock()
	ids := make([]int64, 0, len(cm.users))
	for id := range cm.users {
		ids = append(ids, id)
	}
	cm.mu.Unlock()

	for _, id := range ids {
		e := cm.lockEntry(id, false)
		if e == nil {
			continue
		}
		client, task := e.client, e.task
		e.client, e.task = nil, nil
		cm.unlockEntry(id, e)

		if task != nil {
			task.Stop()
		}
		if client != nil {
			_ = client.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		cm.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("client manager stopped", "users", len(ids))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tick tasks: %w", ctx.Err())
	}
}
