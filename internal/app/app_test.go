package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockpilot/internal/clock"
	"lockpilot/internal/config"
	"lockpilot/internal/timer"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, dir string, clk clock.Clock) *App {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("logging:\n  console: false\nstorage:\n  driver: file\n  path: %s\nipc:\n  enabled: false\n",
		filepath.Join(dir, "timers.json"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	a, err := New(path, WithClock(clk), WithoutDesktop())
	require.NoError(t, err)
	return a
}

func TestTimersSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewFake(t0)
	ctx := context.Background()

	a := newTestApp(t, dir, clk)
	require.NoError(t, a.Start(ctx))
	assert.True(t, a.exec.DryRun())

	created, err := a.Scheduler().Create(ctx, timer.Request{
		Action:     timer.ActionPopup,
		TargetTime: t0.Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.NoError(t, a.Stop(ctx, StopSIGTERM))

	b := newTestApp(t, dir, clk)
	require.NoError(t, b.Start(ctx))
	defer b.Stop(ctx, StopSIGTERM)

	got, ok := b.Scheduler().Get(created.ID)
	require.True(t, ok)
	assert.True(t, got.TargetTime.Equal(created.TargetTime))
}

func TestApplyConfigUpdatesComponents(t *testing.T) {
	a := newTestApp(t, t.TempDir(), clock.NewFake(t0))
	prev := a.Config()
	next := *prev
	next.Scheduler.Timezone = "Europe/Berlin"
	next.Actions.DryRun = false

	a.applyConfig(prev, &next)
	assert.Equal(t, "Europe/Berlin", a.Scheduler().Stats().Timezone)
	// no live executor: stays dry
	assert.True(t, a.exec.DryRun())
}

func TestStopBeforeStart(t *testing.T) {
	a := newTestApp(t, t.TempDir(), clock.NewFake(t0))
	assert.NoError(t, a.Stop(context.Background(), StopUnknown))
	assert.Nil(t, a.Done())
}

func TestMapStorageConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "none"}
	_, enabled, err := mapStorageConfig(&cfg)
	require.NoError(t, err)
	assert.False(t, enabled)

	cfg.Storage = config.StorageConfig{Driver: "SQLite", Path: "/tmp/x.db"}
	sc, enabled, err := mapStorageConfig(&cfg)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 5*time.Second, sc.BusyTimeout)

	cfg.Storage = config.StorageConfig{Driver: "json", Path: "~/t.json"}
	sc, _, err = mapStorageConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "file", sc.Driver)
	assert.True(t, filepath.IsAbs(sc.Path))

	cfg.Storage = config.StorageConfig{Driver: "redis", Path: "x"}
	_, _, err = mapStorageConfig(&cfg)
	assert.Error(t, err)
}
