package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"lockpilot/internal/clock"
	"lockpilot/internal/eventbus"
	"lockpilot/internal/services/prompt"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type execCall struct {
	Action  timer.Action
	Message string
	At      time.Time
}

type recordingExec struct {
	clk   clock.Clock
	calls chan execCall
}

func (r *recordingExec) Execute(_ context.Context, action timer.Action, message string) error {
	r.calls <- execCall{Action: action, Message: message, At: r.clk.Now()}
	return nil
}

type memStore struct {
	mu     sync.Mutex
	timers []timer.Timer
	saves  int
	fail   error
}

func (m *memStore) SaveTimers(_ context.Context, ts []timer.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.timers = append([]timer.Timer(nil), ts...)
	m.saves++
	return nil
}

func (m *memStore) LoadTimers(context.Context) ([]timer.Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]timer.Timer{}, m.timers...), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot() ([]timer.Timer, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]timer.Timer{}, m.timers...), m.saves
}

func (m *memStore) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

type harness struct {
	svc    *Service
	clk    *clock.Fake
	store  *memStore
	exec   *recordingExec
	events <-chan eventbus.Event
}

func newHarness(t *testing.T, store *memStore) *harness {
	t.Helper()
	if store == nil {
		store = &memStore{}
	}
	clk := clock.NewFake(t0)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	t.Cleanup(unsub)

	exec := &recordingExec{clk: clk, calls: make(chan execCall, 16)}
	svc, err := New(Config{}, Deps{
		Store:    store,
		Prompts:  prompt.New(bus, clk, logx.Nop()),
		Executor: exec,
		Clock:    clk,
		Log:      logx.Nop(),
	})
	require.NoError(t, err)
	return &harness{svc: svc, clk: clk, store: store, exec: exec, events: events}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.svc.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.svc.Stop(ctx)
	})
}

func (h *harness) create(t *testing.T, req timer.Request) timer.Timer {
	t.Helper()
	tm, err := h.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return tm
}

// park waits until n goroutines sit on a clock timer.
func (h *harness) park(t *testing.T, n int) {
	t.Helper()
	require.True(t, h.clk.BlockUntil(n, 2*time.Second), "tasks did not park")
}

func (h *harness) nextExec(t *testing.T) execCall {
	t.Helper()
	select {
	case c := <-h.exec.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("action was not executed")
	}
	return execCall{}
}

func (h *harness) noExec(t *testing.T) {
	t.Helper()
	select {
	case c := <-h.exec.calls:
		t.Fatalf("unexpected execution: %+v", c)
	case <-time.After(20 * time.Millisecond):
	}
}

func (h *harness) nextEvent(t *testing.T, typ string) eventbus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Type == typ {
				return e
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
		}
	}
}

func (h *harness) nextWarning(t *testing.T) prompt.Warning {
	t.Helper()
	w, ok := h.nextEvent(t, prompt.EventWarning).Data.(prompt.Warning)
	require.True(t, ok)
	return w
}

func at(d time.Duration) string { return t0.Add(d).Format(time.RFC3339) }

func strp(s string) *string { return &s }

func (h *harness) nextClose(t *testing.T, timerID string) {
	t.Helper()
	c, ok := h.nextEvent(t, prompt.EventClose).Data.(prompt.Close)
	require.True(t, ok)
	require.Equal(t, timerID, c.TimerID)
}

func (h *harness) storedIDs() []string {
	stored, _ := h.store.snapshot()
	ids := make([]string, 0, len(stored))
	for _, s := range stored {
		ids = append(ids, s.ID)
	}
	return ids
}
