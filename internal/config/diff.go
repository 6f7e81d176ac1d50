package config

import (
	"strings"

	logx "lockpilot/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and structured attrs
// describing their new values. restart lists sections that only take
// effect after the daemon restarts.
func SummarizeConfigChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !sameTrimmed(oldCfg.Storage.Driver, newCfg.Storage.Driver) ||
		!sameTrimmed(oldCfg.Storage.Path, newCfg.Storage.Path) ||
		!sameTrimmed(oldCfg.Storage.BusyTimeout, newCfg.Storage.BusyTimeout) {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.String("storage.path", strings.TrimSpace(newCfg.Storage.Path)),
		)
	}

	if !sameTrimmed(oldCfg.Scheduler.Timezone, newCfg.Scheduler.Timezone) ||
		!sameTrimmed(oldCfg.Scheduler.FlushEvery, newCfg.Scheduler.FlushEvery) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.flush_every", strings.TrimSpace(newCfg.Scheduler.FlushEvery)),
		)
	}

	if oldCfg.Actions != newCfg.Actions {
		changed = append(changed, "actions")
		attrs = append(attrs,
			logx.Bool("actions.dry_run", newCfg.Actions.DryRun),
			logx.Bool("actions.ask_for_auth", newCfg.Actions.AskForAuth),
		)
	}

	if oldCfg.IPC.Enabled != newCfg.IPC.Enabled || !sameTrimmed(oldCfg.IPC.Bus, newCfg.IPC.Bus) {
		changed = append(changed, "ipc")
		restart = append(restart, "ipc")
		attrs = append(attrs,
			logx.Bool("ipc.enabled", newCfg.IPC.Enabled),
			logx.String("ipc.bus", strings.TrimSpace(newCfg.IPC.Bus)),
		)
	}
	return changed, attrs, restart
}

func sameTrimmed(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }

// LogConfig converts the logging section into the logx service config.
func (c LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}
