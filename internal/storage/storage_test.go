package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTimers() []timer.Timer {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return []timer.Timer{
		{
			ID:         "a",
			Action:     timer.ActionPopup,
			TargetTime: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
			Message:    "stretch",
			CreatedAt:  created,
		},
		{
			ID:                "b",
			Action:            timer.ActionLock,
			TargetTime:        time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
			Recurrence:        timer.SpecificDays("mon", "fri"),
			PreWarningMinutes: []int{1, 10},
			CreatedAt:         created,
		},
		{
			ID:         "c",
			Action:     timer.ActionShutdown,
			TargetTime: time.Date(2026, 3, 3, 23, 0, 0, 0, time.UTC),
			Recurrence: timer.EveryNHours(6),
			CreatedAt:  created,
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", "timers."+driver)
			st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			got, err := st.LoadTimers(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			want := sampleTimers()
			require.NoError(t, st.SaveTimers(ctx, want))
			got, err = st.LoadTimers(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// Full replacement, not merge.
			require.NoError(t, st.SaveTimers(ctx, want[1:2]))
			got, err = st.LoadTimers(ctx)
			require.NoError(t, err)
			assert.Equal(t, want[1:2], got)

			require.NoError(t, st.SaveTimers(ctx, nil))
			got, err = st.LoadTimers(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestFileDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timers.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.SaveTimers(context.Background(), sampleTimers()[:1]))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.HasPrefix(s, "{\n  \"timers\": ["))
	assert.Contains(t, s, `"targetTime": "2026-03-02T09:30:00Z"`)
	assert.Contains(t, s, `"createdAt"`)
	assert.NotContains(t, s, `"recurrence"`)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileMalformedIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = st.LoadTimers(context.Background())
	assert.Error(t, err)
}

func TestOpenDrivers(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	assert.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "etcd", Path: "x"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
}
