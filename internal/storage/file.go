package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

// fileStore keeps the timer set in one JSON document:
//
//	{
//	  "timers": [ {...}, {...} ]
//	}
//
// Writes go to <path>.tmp and are renamed over the target so a crash never
// leaves a half-written file behind.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

type fileDocument struct {
	Timers []timer.Timer `json:"timers"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) SaveTimers(ctx context.Context, timers []timer.Timer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timers == nil {
		timers = []timer.Timer{}
	}
	b, err := json.MarshalIndent(fileDocument{Timers: timers}, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	s.log.Trace("timers saved", logx.Int("count", len(timers)))
	return nil
}

func (s *fileStore) LoadTimers(ctx context.Context) ([]timer.Timer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	b, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return []timer.Timer{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []timer.Timer{}, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Timers == nil {
		doc.Timers = []timer.Timer{}
	}
	return doc.Timers, nil
}
