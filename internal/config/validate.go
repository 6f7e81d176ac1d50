package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks values the JSON decoder cannot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "json", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path: required for driver "+cfg.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.IPC.Bus)) {
	case "", "session", "system":
	default:
		errs = append(errs, fmt.Errorf("ipc.bus: must be session or system, got %q", cfg.IPC.Bus))
	}
	return errors.Join(errs...)
}
