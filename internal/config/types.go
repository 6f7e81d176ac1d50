package config

import (
	"os"
	"path/filepath"
)

// Config is the daemon configuration. Fields omitted from the file keep the
// values from Default().
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Actions   ActionsConfig   `json:"actions"`
	IPC       IPCConfig       `json:"ipc"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls where timers are persisted.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "~/.local/state/lockpilot/timers.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | none
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type SchedulerConfig struct {
	// Timezone is the IANA zone weekday recurrences are evaluated in.
	Timezone string `json:"timezone,omitempty"`
	// FlushEvery is a cron spec or Go duration for retrying failed writes.
	FlushEvery string `json:"flush_every,omitempty"`
}

type ActionsConfig struct {
	// DryRun logs actions instead of performing them.
	DryRun bool `json:"dry_run"`
	// AskForAuth lets logind ask for polkit authentication on power actions.
	AskForAuth bool `json:"ask_for_auth"`
}

type IPCConfig struct {
	Enabled bool   `json:"enabled"`
	Bus     string `json:"bus"` // session | system
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Path: filepath.Join(StateDir(), "timers.json")},
		Scheduler: SchedulerConfig{
			Timezone:   "UTC",
			FlushEvery: "@every 1m",
		},
		IPC: IPCConfig{Enabled: true, Bus: "session"},
	}
}

// DefaultPath is the config file location when LOCKPILOT_CONFIG is unset.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "lockpilot", "config.yaml")
}

// StateDir follows XDG_STATE_HOME, falling back to ~/.local/state.
func StateDir() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return filepath.Join(d, "lockpilot")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "lockpilot")
	}
	return "lockpilot-state"
}
