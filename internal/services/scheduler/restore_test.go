package scheduler

import (
	"context"
	"testing"
	"time"

	"lockpilot/internal/timer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreFastForwardsDailyAfterOutage(t *testing.T) {
	created := t0.Add(-10 * 24 * time.Hour)
	store := &memStore{timers: []timer.Timer{
		{ // daily at 09:00, last due three days ago
			ID:         "daily",
			Action:     timer.ActionLock,
			TargetTime: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
			Recurrence: timer.Daily(),
			CreatedAt:  created,
		},
		{
			ID:         "stale-once",
			Action:     timer.ActionPopup,
			TargetTime: t0.Add(-time.Hour),
			CreatedAt:  created,
		},
		{
			ID:         "future-once",
			Action:     timer.ActionReboot,
			TargetTime: t0.Add(2 * time.Hour),
			CreatedAt:  created,
		},
		{ // Mondays at 08:00, last due three weeks ago
			ID:         "mondays",
			Action:     timer.ActionShutdown,
			TargetTime: time.Date(2026, 4, 13, 8, 0, 0, 0, time.UTC),
			Recurrence: timer.SpecificDays("monday"),
			CreatedAt:  created,
		},
	}}
	h := newHarness(t, store)
	h.start(t)

	res, err := h.svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Loaded: 4, Restored: 3, FastForwarded: 2, Dropped: 1}, res)

	daily, ok := h.svc.Get("daily")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC), daily.TargetTime)

	// 2026-05-04 is a Monday; 08:00 has already passed.
	mondays, ok := h.svc.Get("mondays")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC), mondays.TargetTime)

	_, ok = h.svc.Get("stale-once")
	assert.False(t, ok)

	stored, _ := store.snapshot()
	require.Len(t, stored, 3)
	assert.Equal(t, "future-once", stored[0].ID)
	assert.Equal(t, "daily", stored[1].ID)
	assert.Equal(t, "mondays", stored[2].ID)

	// Restored timers run.
	h.park(t, 3)
	h.clk.Advance(2 * time.Hour)
	call := h.nextExec(t)
	assert.Equal(t, timer.ActionReboot, call.Action)
}

func TestRestoreSkipsRegisteredIDs(t *testing.T) {
	store := &memStore{}
	h := newHarness(t, store)
	h.start(t)
	tm := h.create(t, timer.Request{Action: timer.ActionLock, TargetTime: at(time.Hour)})

	res, err := h.svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Restored)
	assert.Len(t, h.svc.List(), 1)
	got, _ := h.svc.Get(tm.ID)
	assert.Equal(t, tm, got)
}

func TestRestoreEmptyStore(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	res, err := h.svc.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{}, res)
	assert.Empty(t, h.svc.List())
}

func TestRestoreBeforeStartSpawnsOnStart(t *testing.T) {
	store := &memStore{timers: []timer.Timer{{
		ID:         "later",
		Action:     timer.ActionPopup,
		TargetTime: t0.Add(time.Minute),
		CreatedAt:  t0,
	}}}
	h := newHarness(t, store)
	_, err := h.svc.Restore(context.Background())
	require.NoError(t, err)
	h.noExec(t)

	h.start(t)
	h.park(t, 1)
	h.clk.Advance(time.Minute)
	call := h.nextExec(t)
	assert.Equal(t, timer.ActionPopup, call.Action)
}
