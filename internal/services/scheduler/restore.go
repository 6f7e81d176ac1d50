package scheduler

import (
	"context"
	"fmt"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

// Restore loads the stored timers and re-registers the ones that still have
// a future occurrence. Overdue recurring timers are fast-forwarded past now;
// overdue one-shots and exhausted series are dropped. Ids that are already
// registered are left alone. The corrected set is persisted once.
func (s *Service) Restore(ctx context.Context) (RestoreResult, error) {
	var res RestoreResult
	if s.store == nil {
		return res, nil
	}
	loaded, err := s.store.LoadTimers(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: load: %w", ErrStorage, err)
	}
	res.Loaded = len(loaded)

	now := s.clock.Now()
	loc := s.location()
	keep := make([]timer.Timer, 0, len(loaded))
	for _, t := range loaded {
		log := s.log.With(logx.String("timer_id", t.ID))
		if t.ID == "" || !t.Action.Valid() {
			log.Warn("stored timer is malformed; dropped")
			res.Dropped++
			continue
		}
		if err := timer.ValidateRecurrence(t.Recurrence); err != nil {
			log.Warn("stored recurrence is invalid; dropped", logx.Err(err))
			res.Dropped++
			continue
		}
		t.TargetTime = t.TargetTime.UTC()
		t.CreatedAt = t.CreatedAt.UTC()
		if t.TargetTime.After(now) {
			keep = append(keep, t)
			continue
		}
		if t.Recurrence == nil {
			log.Info("overdue one-shot timer dropped", logx.Time("target", t.TargetTime))
			res.Dropped++
			continue
		}
		next, ok := timer.FastForward(t.TargetTime, t.Recurrence, now, loc)
		if !ok {
			log.Info("recurrence exhausted during outage; dropped", logx.Time("target", t.TargetTime))
			res.Dropped++
			continue
		}
		log.Info("overdue timer fast-forwarded", logx.Time("from", t.TargetTime), logx.Time("to", next))
		t.TargetTime = next
		res.FastForwarded++
		keep = append(keep, t)
	}

	s.mu.Lock()
	for _, t := range keep {
		if _, exists := s.entries[t.ID]; exists {
			res.Skipped++
			continue
		}
		e := &entry{info: t}
		s.entries[t.ID] = e
		if s.running {
			s.spawnLocked(e)
		}
		res.Restored++
	}
	s.mu.Unlock()

	s.log.Info("timers restored",
		logx.Int("loaded", res.Loaded),
		logx.Int("restored", res.Restored),
		logx.Int("fast_forwarded", res.FastForwarded),
		logx.Int("dropped", res.Dropped),
		logx.Int("skipped", res.Skipped),
	)
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}
