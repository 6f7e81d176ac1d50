package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lockpilot/internal/clock"
	"lockpilot/internal/runtime/supervisor"
	"lockpilot/internal/services/prompt"
	"lockpilot/internal/storage"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

var (
	// ErrStorage wraps durable-write failures. The in-memory change it
	// accompanies has already taken effect.
	ErrStorage = errors.New("timer storage failed")
	// ErrStopped is returned by mutations issued while the service is not
	// running.
	ErrStopped = errors.New("scheduler not running")
)

// Executor performs a timer's action. Errors are logged, never retried.
type Executor interface {
	Execute(ctx context.Context, action timer.Action, message string) error
}

// Config is the hot-reloadable part of the scheduler.
type Config struct {
	// Timezone is an IANA name used for weekday recurrence; empty means UTC.
	Timezone string
	// FlushEvery is a cron spec or duration for the dirty-state flush job.
	FlushEvery string
}

const defaultFlushEvery = "@every 1m"

// Validate reports whether Apply would accept cfg.
func (c Config) Validate() error {
	if _, err := c.location(); err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	if _, err := flushSpec(c.FlushEvery); err != nil {
		return err
	}
	return nil
}

func (c Config) location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "utc") {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// Deps are the collaborators a Service needs. Store may be nil, which
// disables persistence.
type Deps struct {
	Store    storage.Store
	Prompts  *prompt.Service
	Executor Executor
	Clock    clock.Clock
	Log      logx.Logger
}

// Stats is a point-in-time view for status output.
type Stats struct {
	Running        bool                `json:"running"`
	ActiveTimers   int                 `json:"activeTimers"`
	PendingPrompts int                 `json:"pendingPrompts"`
	Dirty          bool                `json:"dirty"`
	Timezone       string              `json:"timezone"`
	Tasks          supervisor.Counters `json:"tasks"`
}

// RestoreResult summarizes a Restore pass.
type RestoreResult struct {
	Loaded        int `json:"loaded"`
	Restored      int `json:"restored"`
	FastForwarded int `json:"fastForwarded"`
	Dropped       int `json:"dropped"`
	Skipped       int `json:"skipped"`
}

type entry struct {
	info   timer.Timer
	cancel context.CancelFunc
}
