package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lockpilot/internal/config"
	"lockpilot/internal/services/scheduler"
	"lockpilot/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := expandHome(strings.TrimSpace(sc.Path))
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=%s", driver)
	}

	switch driver {
	case "file", "json":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
		if err != nil {
			return storage.Config{}, false, err
		}
		if busy == 0 {
			busy = 5 * time.Second
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Timezone:   strings.TrimSpace(cfg.Scheduler.Timezone),
		FlushEvery: strings.TrimSpace(cfg.Scheduler.FlushEvery),
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
