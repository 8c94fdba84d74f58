package gameserver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/protocol"
	"github.com/udisondev/idlemine/internal/testutil"
)

const testTick = 5 * time.Millisecond

// scriptedAdvancer returns canned tick results and records call concurrency.
type scriptedAdvancer struct {
	mu      sync.Mutex
	calls   int
	acting  bool
	failErr error
	delay   time.Duration
	// actingCalls > 0 makes every call after the first actingCalls report idle.
	actingCalls int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newScriptedAdvancer() *scriptedAdvancer {
	return &scriptedAdvancer{acting: true}
}

func (a *scriptedAdvancer) Advance(ctx context.Context, userID int64, now time.Time) (skill.TickResult, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		m := a.maxInFlight.Load()
		if n <= m || a.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failErr != nil {
		return skill.TickResult{}, a.failErr
	}
	if !a.acting || (a.actingCalls > 0 && a.calls > a.actingCalls) {
		return skill.TickResult{}, nil
	}
	return skill.TickResult{Acting: true, ActionID: "copper", ActionName: "Copper Ore", Progress: 0.25}, nil
}

func (a *scriptedAdvancer) SkillType() string { return "mining" }

func (a *scriptedAdvancer) setActing(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acting = v
}

func (a *scriptedAdvancer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestManager(adv Advancer) *ClientManager {
	return NewClientManager(adv, nil, testTick)
}

func TestNewClientManager(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	if cm.Count() != 0 {
		t.Errorf("Initial Count() = %d, want 0", cm.Count())
	}
	if cm.TaskCount() != 0 {
		t.Errorf("Initial TaskCount() = %d, want 0", cm.TaskCount())
	}
}

func TestClientManager_Register_Unregister(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())

	cm.Register(1, testutil.NewMockTransport())
	cm.Register(2, testutil.NewMockTransport())
	if cm.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", cm.Count())
	}

	cm.Unregister(1)
	if cm.IsConnected(1) {
		t.Error("user 1 still connected after Unregister")
	}
	if !cm.IsConnected(2) {
		t.Error("user 2 should stay connected")
	}
	if cm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", cm.Count())
	}

	// Unknown user is a no-op.
	cm.Unregister(99)
}

func TestClientManager_RegisterReplacesAndClosesOld(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())

	first := testutil.NewMockTransport()
	second := testutil.NewMockTransport()
	third := testutil.NewMockTransport()

	cm.Register(1, first)
	cm.Register(1, second)
	cm.Register(1, third)

	if !first.Closed() || !second.Closed() {
		t.Error("replaced transports must be closed")
	}
	if third.Closed() {
		t.Error("current transport must stay open")
	}
	if cm.Count() != 1 {
		t.Errorf("Count() = %d, want exactly 1 live transport", cm.Count())
	}

	if err := cm.Send(1, protocol.NewError("hi")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(third.Messages()) != 1 || len(first.Messages()) != 0 {
		t.Error("message must go to the newest transport only")
	}
}

func TestClientManager_RegisterDoesNotTouchScheduler(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	defer cm.Shutdown(context.Background())

	cm.Register(1, testutil.NewMockTransport())
	cm.StartScheduler(1, "copper")
	cm.Register(1, testutil.NewMockTransport())

	if !cm.SchedulerRunning(1) {
		t.Error("re-register must not cancel the scheduler")
	}
}

func TestClientManager_DetachIgnoresStaleTransport(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	defer cm.Shutdown(context.Background())

	old := testutil.NewMockTransport()
	cur := testutil.NewMockTransport()
	cm.Register(1, old)
	cm.Register(1, cur)
	cm.StartScheduler(1, "copper")

	if cm.Detach(1, old) {
		t.Error("Detach with stale transport must report false")
	}
	if !cm.IsConnected(1) || !cm.SchedulerRunning(1) {
		t.Error("stale detach must not affect current connection or scheduler")
	}

	if !cm.Detach(1, cur) {
		t.Error("Detach with current transport must report true")
	}
	if cm.IsConnected(1) || cm.SchedulerRunning(1) {
		t.Error("detach must remove transport and cancel scheduler")
	}
}

func TestClientManager_SendNotConnected(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	if err := cm.Send(5, protocol.NewError("x")); err != ErrNotConnected {
		t.Errorf("Send() = %v, want ErrNotConnected", err)
	}
}

func TestClientManager_SendFailureUnregisters(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	defer cm.Shutdown(context.Background())

	tr := testutil.NewMockTransport()
	cm.Register(1, tr)
	cm.StartScheduler(1, "copper")
	tr.FailSend()

	if err := cm.Send(1, protocol.NewError("x")); err == nil {
		t.Fatal("Send must fail")
	}
	if cm.IsConnected(1) {
		t.Error("failed send must unregister the transport")
	}
	if !tr.Closed() {
		t.Error("failed transport must be closed")
	}
	if cm.SchedulerRunning(1) {
		t.Error("failed send must cancel the scheduler")
	}
}

func TestClientManager_UnregisterCancelsScheduler(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	defer cm.Shutdown(context.Background())

	cm.Register(1, testutil.NewMockTransport())
	cm.StartScheduler(1, "copper")

	cm.mu.Lock()
	task := cm.users[1].task
	cm.mu.Unlock()

	cm.Unregister(1)

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after Unregister")
	}
	if !task.Stopped() {
		t.Error("Stopped() must be true after Done")
	}
}

func TestClientManager_StartSchedulerSupersedes(t *testing.T) {
	adv := newScriptedAdvancer()
	adv.delay = 2 * time.Millisecond
	cm := newTestManager(adv)
	defer cm.Shutdown(context.Background())

	tr := testutil.NewMockTransport()
	cm.Register(1, tr)

	for range 20 {
		cm.StartScheduler(1, "copper")
	}

	if cm.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1", cm.TaskCount())
	}

	testutil.WaitFor(t, time.Second, func() bool { return adv.Calls() >= 5 }, "ticks did not run")
	if got := adv.maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent Advance calls = %d, want 1", got)
	}
}

func TestClientManager_ReconnectWaitsForDetachedTick(t *testing.T) {
	adv := newScriptedAdvancer()
	adv.delay = 80 * time.Millisecond
	cm := newTestManager(adv)
	defer cm.Shutdown(context.Background())

	cm.Register(1, testutil.NewMockTransport())
	cm.StartScheduler(1, "copper")
	testutil.WaitFor(t, time.Second, func() bool { return adv.inFlight.Load() == 1 }, "first tick never started")

	// Disconnect and reconnect while the first Advance is still running.
	cm.Unregister(1)
	cm.Register(1, testutil.NewMockTransport())
	cm.StartScheduler(1, "copper")

	testutil.WaitFor(t, 2*time.Second, func() bool { return adv.Calls() >= 3 }, "resumed scheduler did not tick")
	if got := adv.maxInFlight.Load(); got != 1 {
		t.Errorf("concurrent Advance calls for one user = %d, want 1", got)
	}
	if cm.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1", cm.TaskCount())
	}
}

func TestClientManager_RetiredTaskDoesNotWriteToNewSession(t *testing.T) {
	adv := newScriptedAdvancer()
	adv.delay = 80 * time.Millisecond
	adv.actingCalls = 1 // the in-flight tick is the only one with events
	cm := newTestManager(adv)
	defer cm.Shutdown(context.Background())

	first := testutil.NewMockTransport()
	cm.Register(1, first)
	cm.StartScheduler(1, "copper")
	testutil.WaitFor(t, time.Second, func() bool { return adv.inFlight.Load() == 1 }, "first tick never started")

	second := testutil.NewMockTransport()
	cm.Unregister(1)
	cm.Register(1, second)
	cm.StartScheduler(1, "copper")

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return adv.Calls() >= 2 && !cm.SchedulerRunning(1)
	}, "resumed scheduler did not finish")

	if types := second.EventTypes(); len(types) != 0 {
		t.Errorf("new session got events from the retired task: %v", types)
	}
	if types := first.EventTypes(); len(types) != 0 {
		t.Errorf("detached transport got events: %v", types)
	}
}

func TestClientManager_SupersededTaskDropsInFlightEvents(t *testing.T) {
	adv := newScriptedAdvancer()
	adv.delay = 80 * time.Millisecond
	adv.actingCalls = 1
	cm := newTestManager(adv)
	defer cm.Shutdown(context.Background())

	tr := testutil.NewMockTransport()
	cm.Register(1, tr)
	cm.StartScheduler(1, "copper")
	testutil.WaitFor(t, time.Second, func() bool { return adv.inFlight.Load() == 1 }, "first tick never started")

	cm.StartScheduler(1, "iron")

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return adv.Calls() >= 2 && !cm.SchedulerRunning(1)
	}, "replacement scheduler did not finish")

	if types := tr.EventTypes(); len(types) != 0 {
		t.Errorf("events after supersede = %v, want none", types)
	}
	if got := adv.maxInFlight.Load(); got != 1 {
		t.Errorf("concurrent Advance calls = %d, want 1", got)
	}
}

func TestClientManager_StopScheduler(t *testing.T) {
	adv := newScriptedAdvancer()
	cm := newTestManager(adv)
	defer cm.Shutdown(context.Background())

	cm.Register(1, testutil.NewMockTransport())
	cm.StartScheduler(1, "copper")
	testutil.WaitFor(t, time.Second, func() bool { return adv.Calls() > 0 }, "no tick")

	ctx := testutil.ContextWithTimeout(t, time.Second)
	if err := cm.StopScheduler(ctx, 1); err != nil {
		t.Fatalf("StopScheduler: %v", err)
	}
	if cm.SchedulerRunning(1) {
		t.Error("scheduler still installed")
	}

	calls := adv.Calls()
	time.Sleep(5 * testTick)
	if adv.Calls() != calls {
		t.Error("Advance called after StopScheduler returned")
	}

	// Idempotent.
	if err := cm.StopScheduler(ctx, 1); err != nil {
		t.Errorf("second StopScheduler: %v", err)
	}
	if err := cm.StopScheduler(ctx, 42); err != nil {
		t.Errorf("StopScheduler for unknown user: %v", err)
	}
}

func TestClientManager_SchedulerExitsWhenIdle(t *testing.T) {
	adv := newScriptedAdvancer()
	cm := newTestManager(adv)

	tr := testutil.NewMockTransport()
	cm.Register(1, tr)
	cm.StartScheduler(1, "copper")

	testutil.WaitFor(t, time.Second, func() bool { return adv.Calls() >= 2 }, "no ticks")
	adv.setActing(false)
	testutil.WaitFor(t, time.Second, func() bool { return !cm.SchedulerRunning(1) }, "scheduler did not remove itself")

	if cm.TaskCount() != 0 {
		t.Errorf("TaskCount() = %d, want 0", cm.TaskCount())
	}
	for _, typ := range tr.EventTypes() {
		if typ != protocol.TypeMiningTick {
			t.Errorf("unexpected event %q", typ)
		}
	}
	if !cm.IsConnected(1) {
		t.Error("idle scheduler must not disconnect the user")
	}
}

func TestClientManager_SchedulerErrorSendsOneErrorAndStops(t *testing.T) {
	adv := newScriptedAdvancer()
	adv.failErr = testutil.ErrSimulated
	cm := newTestManager(adv)

	tr := testutil.NewMockTransport()
	cm.Register(1, tr)
	cm.StartScheduler(1, "copper")

	testutil.WaitFor(t, time.Second, func() bool { return !cm.SchedulerRunning(1) }, "scheduler did not stop on error")
	time.Sleep(5 * testTick)

	if adv.Calls() != 1 {
		t.Errorf("Advance calls = %d, want 1 (no retry)", adv.Calls())
	}
	types := tr.EventTypes()
	if len(types) != 1 || types[0] != protocol.TypeError {
		t.Errorf("events = %v, want single error", types)
	}
}

func TestClientManager_SchedulerStopsWhenTransportGone(t *testing.T) {
	adv := newScriptedAdvancer()
	cm := newTestManager(adv)

	cm.StartScheduler(1, "copper")
	testutil.WaitFor(t, time.Second, func() bool { return !cm.SchedulerRunning(1) }, "scheduler kept running without transport")
}

func TestClientManager_Shutdown(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())

	transports := make([]*testutil.MockTransport, 0, 3)
	for id := int64(1); id <= 3; id++ {
		tr := testutil.NewMockTransport()
		transports = append(transports, tr)
		cm.Register(id, tr)
		cm.StartScheduler(id, "copper")
	}

	if err := cm.Shutdown(testutil.ContextWithTimeout(t, time.Second)); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if cm.Count() != 0 || cm.TaskCount() != 0 {
		t.Errorf("after Shutdown: Count=%d TaskCount=%d", cm.Count(), cm.TaskCount())
	}
	for i, tr := range transports {
		if !tr.Closed() {
			t.Errorf("transport %d not closed", i)
		}
	}
}

func TestClientManager_ConcurrentRegisterAndSchedule(t *testing.T) {
	adv := newScriptedAdvancer()
	cm := newTestManager(adv)
	defer cm.Shutdown(context.Background())

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			cm.Register(7, testutil.NewMockTransport())
			cm.StartScheduler(7, "copper")
		})
	}
	wg.Wait()

	if cm.Count() != 1 {
		t.Errorf("Count() = %d, want 1", cm.Count())
	}
	if cm.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1", cm.TaskCount())
	}
}

func TestClientManager_RunStatsLoopStopsOnCancel(t *testing.T) {
	cm := newTestManager(newScriptedAdvancer())
	ctx, cancel := testutil.ContextWithCancel(t)

	done := make(chan error, 1)
	go func() { done <- cm.RunStatsLoop(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunStatsLoop() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunStatsLoop did not return after cancel")
	}
}
