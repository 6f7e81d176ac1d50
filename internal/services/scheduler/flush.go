package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "lockpilot/pkg/logx"
)

// cronParser accepts 5- or 6-field specs and descriptors like "@every 1m".
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// flushSpec normalizes a flush schedule. Besides cron syntax it accepts a
// bare Go duration ("90s") or an "every:" prefix.
func flushSpec(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return defaultFlushEvery, nil
	}
	if v, ok := strings.CutPrefix(strings.ToLower(s), "every:"); ok {
		s = strings.TrimSpace(v)
	}
	if !strings.ContainsAny(s, " \t") && !strings.HasPrefix(s, "@") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return "", fmt.Errorf("invalid flush schedule %q (use cron like '*/5 * * * *' or duration like '1m')", raw)
		}
		if d <= 0 {
			return "", fmt.Errorf("flush interval must be > 0")
		}
		s = "@every " + d.String()
	}
	if _, err := cronParser.Parse(s); err != nil {
		return "", fmt.Errorf("invalid flush schedule %q: %w", raw, err)
	}
	return s, nil
}

func (s *Service) newFlushCronLocked() (*cron.Cron, error) {
	spec, err := flushSpec(s.cfg.FlushEvery)
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.flushIfDirty); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) flushIfDirty() {
	if !s.dirty.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.log.Warn("flush failed", logx.Err(err))
		return
	}
	s.log.Info("pending timer state flushed")
}

// Flush rewrites the stored snapshot unconditionally.
func (s *Service) Flush(ctx context.Context) error {
	return s.persist(ctx)
}

// Dirty reports whether the stored snapshot may lag the in-memory set.
func (s *Service) Dirty() bool { return s.dirty.Load() }
