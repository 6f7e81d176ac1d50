package prompt

import (
	"context"
	"testing"
	"time"

	"lockpilot/internal/clock"
	"lockpilot/internal/eventbus"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *clock.Fake, <-chan eventbus.Event) {
	t.Helper()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	t.Cleanup(unsub)
	clk := clock.NewFake(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	return New(bus, clk, logx.Nop()), clk, events
}

func nextWarning(t *testing.T, events <-chan eventbus.Event) Warning {
	t.Helper()
	select {
	case e := <-events:
		require.Equal(t, EventWarning, e.Type)
		w, ok := e.Data.(Warning)
		require.True(t, ok)
		return w
	case <-time.After(time.Second):
		t.Fatal("no warning published")
	}
	return Warning{}
}

func TestRequestResolved(t *testing.T) {
	s, _, events := newTestService(t)
	got := make(chan Decision, 1)
	go func() { got <- s.Request(context.Background(), "t1", timer.ActionLock, 5) }()

	w := nextWarning(t, events)
	assert.Equal(t, "t1", w.TimerID)
	assert.Equal(t, timer.ActionLock, w.Action)
	assert.Equal(t, 5, w.WarningMinutes)
	assert.Equal(t, 300, w.CountdownSeconds)
	assert.Equal(t, 10, w.SnoozeMinutes)
	assert.NotEmpty(t, w.PromptID)
	assert.Equal(t, 1, s.Pending())

	assert.True(t, s.Resolve(w.PromptID, Snooze10))
	assert.False(t, s.Resolve(w.PromptID, RunNow))
	assert.Equal(t, Snooze10, <-got)
	assert.Equal(t, 0, s.Pending())
}

func TestRequestTimesOut(t *testing.T) {
	s, clk, events := newTestService(t)
	got := make(chan Decision, 1)
	go func() { got <- s.Request(context.Background(), "t1", timer.ActionReboot, 1) }()

	w := nextWarning(t, events)
	require.True(t, clk.BlockUntil(1, time.Second))
	clk.Advance(time.Minute)
	assert.Equal(t, ContinueScheduled, <-got)
	assert.False(t, s.Resolve(w.PromptID, RunNow))
	assert.Equal(t, 0, s.Pending())
}

func TestRequestCancelled(t *testing.T) {
	s, _, events := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Decision, 1)
	go func() { got <- s.Request(ctx, "t1", timer.ActionPopup, 10) }()

	nextWarning(t, events)
	cancel()
	assert.Equal(t, ContinueScheduled, <-got)
	assert.Equal(t, 0, s.Pending())
}

func TestResolveUnknown(t *testing.T) {
	s, _, _ := newTestService(t)
	assert.False(t, s.Resolve("nope", RunNow))
}

func TestClosePublishes(t *testing.T) {
	s, _, events := newTestService(t)
	s.Close("t9")
	e := <-events
	assert.Equal(t, EventClose, e.Type)
	assert.Equal(t, Close{TimerID: "t9"}, e.Data)
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]Decision{
		"run_now":            RunNow,
		" Snooze10 ":         Snooze10,
		"cancel_action":      CancelAction,
		"CONTINUE_SCHEDULED": ContinueScheduled,
	} {
		d, err := ParseDecision(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d)
	}
	_, err := ParseDecision("later")
	assert.ErrorIs(t, err, timer.ErrValidation)
}

func TestCountdownFloor(t *testing.T) {
	assert.Equal(t, 1, countdownSeconds(0))
	assert.Equal(t, 600, countdownSeconds(10))
}
