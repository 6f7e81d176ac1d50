package storage

import (
	"context"
	"errors"
	"time"

	"lockpilot/internal/timer"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON document at Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the scheduler.
type Store interface {
	// SaveTimers atomically replaces the stored set with timers.
	SaveTimers(ctx context.Context, timers []timer.Timer) error
	// LoadTimers returns the stored set. A store that was never written
	// yields an empty slice and no error.
	LoadTimers(ctx context.Context) ([]timer.Timer, error)
	Close() error
}
