package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"lockpilot/internal/eventbus"
	"lockpilot/internal/services/prompt"
	"lockpilot/internal/services/scheduler"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	created  timer.Request
	createFn func(timer.Request) (timer.Timer, error)
	timers   []timer.Timer
	cancel   map[string]bool
	cancelEr error
	resolved map[string]prompt.Decision
}

func (f *fakeBackend) Create(_ context.Context, req timer.Request) (timer.Timer, error) {
	f.created = req
	return f.createFn(req)
}
func (f *fakeBackend) List() []timer.Timer { return f.timers }
func (f *fakeBackend) Cancel(_ context.Context, id string) (bool, error) {
	return f.cancel[id], f.cancelEr
}
func (f *fakeBackend) ResolveDecision(id string, d prompt.Decision) bool {
	if id != "p1" {
		return false
	}
	f.resolved[id] = d
	return true
}
func (f *fakeBackend) Stats() scheduler.Stats { return scheduler.Stats{Running: true, ActiveTimers: len(f.timers)} }

func newFake() *fakeBackend {
	return &fakeBackend{
		createFn: func(r timer.Request) (timer.Timer, error) {
			return timer.Timer{ID: "t1", Action: r.Action, TargetTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, nil
		},
		cancel:   map[string]bool{"t1": true},
		resolved: map[string]prompt.Decision{},
	}
}

func TestCreateTimer(t *testing.T) {
	f := newFake()
	h := NewHandler(f, logx.Nop())

	out, derr := h.CreateTimer(`{"action":"lock","targetTime":"2026-01-02T03:04:05Z","preWarningMinutes":[5]}`)
	require.Nil(t, derr)
	assert.Equal(t, timer.ActionLock, f.created.Action)
	assert.Equal(t, []int{5}, f.created.PreWarningMinutes)

	var got timer.Timer
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "t1", got.ID)
}

func TestCreateTimerErrors(t *testing.T) {
	f := newFake()
	h := NewHandler(f, logx.Nop())

	_, derr := h.CreateTimer(`{"action":"explode","targetTime":"2026-01-02T03:04:05Z"}`)
	require.NotNil(t, derr)
	assert.Equal(t, ErrNameValidation, derr.Name)

	_, derr = h.CreateTimer(`not json`)
	require.NotNil(t, derr)
	assert.Equal(t, ErrNameValidation, derr.Name)

	f.createFn = func(timer.Request) (timer.Timer, error) {
		return timer.Timer{}, fmt.Errorf("%w: disk full", scheduler.ErrStorage)
	}
	_, derr = h.CreateTimer(`{"action":"lock","targetTime":"2026-01-02T03:04:05Z"}`)
	require.NotNil(t, derr)
	assert.Equal(t, ErrNameStorage, derr.Name)

	f.createFn = func(timer.Request) (timer.Timer, error) { return timer.Timer{}, scheduler.ErrStopped }
	_, derr = h.CreateTimer(`{"action":"lock","targetTime":"2026-01-02T03:04:05Z"}`)
	require.NotNil(t, derr)
	assert.Equal(t, ErrNameUnavailable, derr.Name)
}

func TestCreateTimerNotSavedStillReturnsTimer(t *testing.T) {
	f := newFake()
	f.createFn = func(r timer.Request) (timer.Timer, error) {
		return timer.Timer{ID: "t2", Action: r.Action}, fmt.Errorf("%w: disk full", scheduler.ErrStorage)
	}
	h := NewHandler(f, logx.Nop())

	out, derr := h.CreateTimer(`{"action":"lock","targetTime":"2026-01-02T03:04:05Z"}`)
	require.Nil(t, derr)

	var reply createReply
	require.NoError(t, json.Unmarshal([]byte(out), &reply))
	assert.Equal(t, "t2", reply.ID)
	assert.Equal(t, timer.ActionLock, reply.Action)
	assert.Contains(t, reply.StorageWarning, "disk full")
}

func TestListCancelResolveStatus(t *testing.T) {
	f := newFake()
	f.timers = []timer.Timer{{ID: "t1", Action: timer.ActionPopup}}
	h := NewHandler(f, logx.Nop(), WithVersion("1.2.3"), WithDryRunProbe(func() bool { return true }))

	out, derr := h.ListTimers()
	require.Nil(t, derr)
	assert.JSONEq(t, `{"timers":[{"id":"t1","action":"popup","targetTime":"0001-01-01T00:00:00Z","createdAt":"0001-01-01T00:00:00Z"}]}`, out)

	found, derr := h.CancelTimer("t1")
	require.Nil(t, derr)
	assert.True(t, found)
	found, _ = h.CancelTimer("nope")
	assert.False(t, found)

	f.cancelEr = fmt.Errorf("%w: read-only", scheduler.ErrStorage)
	found, derr = h.CancelTimer("t1")
	assert.True(t, found)
	require.NotNil(t, derr)
	assert.Equal(t, ErrNameStorage, derr.Name)

	ok, derr := h.ResolveDecision("p1", "snooze10")
	require.Nil(t, derr)
	assert.True(t, ok)
	assert.Equal(t, prompt.Snooze10, f.resolved["p1"])
	ok, _ = h.ResolveDecision("p2", "run_now")
	assert.False(t, ok)
	_, derr = h.ResolveDecision("p1", "maybe")
	require.NotNil(t, derr)
	assert.Equal(t, ErrNameValidation, derr.Name)

	out, derr = h.Status()
	require.Nil(t, derr)
	var st StatusReply
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "1.2.3", st.Version)
	assert.True(t, st.DryRun)
	assert.Equal(t, 1, st.Scheduler.ActiveTimers)
}

type emitted struct {
	name string
	body any
}

type fakeEmitter struct {
	mu  sync.Mutex
	out []emitted
}

func (f *fakeEmitter) Emit(path dbus.ObjectPath, name string, values ...any) error {
	if path != ObjectPath {
		return errors.New("wrong path")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, emitted{name: name, body: values[0]})
	return nil
}

func (f *fakeEmitter) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.out)
}

func TestBridgeEmitsSignals(t *testing.T) {
	bus := eventbus.New()
	out := &fakeEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge(ctx, bus, out, logx.Nop()) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, time.Millisecond)

	w := prompt.Warning{PromptID: "p", TimerID: "t", Action: timer.ActionLock, WarningMinutes: 1, CountdownSeconds: 60, SnoozeMinutes: 10}
	bus.Publish(eventbus.Event{Type: prompt.EventWarning, Data: w})
	bus.Publish(eventbus.Event{Type: "other", Data: 1})
	bus.Publish(eventbus.Event{Type: prompt.EventClose, Data: prompt.Close{TimerID: "t"}})
	require.Eventually(t, func() bool { return out.len() == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, InterfaceName+".PreActionWarning", out.out[0].name)
	sig, ok := decodeSignal(&dbus.Signal{Name: out.out[0].name, Body: []any{out.out[0].body}})
	require.True(t, ok)
	assert.Equal(t, &w, sig.Warning)

	assert.Equal(t, InterfaceName+".ClosePrompt", out.out[1].name)
	sig, ok = decodeSignal(&dbus.Signal{Name: out.out[1].name, Body: []any{out.out[1].body}})
	require.True(t, ok)
	assert.Equal(t, Signal{Name: SignalClosePrompt, TimerID: "t"}, sig)
}

func TestParseBus(t *testing.T) {
	assert.Equal(t, SystemBus, ParseBus(" System "))
	assert.Equal(t, SessionBus, ParseBus(""))
	assert.Equal(t, SessionBus, ParseBus("session"))
}
