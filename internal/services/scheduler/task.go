package scheduler

import (
	"context"
	"time"

	"lockpilot/internal/services/prompt"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

// runTask drives one timer until it is cancelled, retired or the service
// stops.
func (s *Service) runTask(ctx context.Context, e *entry) {
	log := s.log.With(logx.String("timer_id", e.info.ID))
	log.Debug("task started")
	defer log.Debug("task stopped")

	// snoozedAt is the instant of the last snooze within the current
	// occurrence; zero otherwise.
	var snoozedAt time.Time

	for {
		info, ok := s.current(e)
		if !ok {
			return
		}

		decision := prompt.ContinueScheduled
		if mins := info.MaxWarningMinutes(); mins > 0 && info.Action.WarningEligible() {
			warnAt := info.TargetTime.Add(-time.Duration(mins) * time.Minute)
			ref := s.clock.Now()
			if !snoozedAt.IsZero() {
				ref = snoozedAt
			}
			if !warnAt.Before(ref) {
				if !s.sleepUntil(ctx, warnAt) {
					s.prompts.Close(info.ID)
					return
				}
				decision = s.prompts.Request(ctx, info.ID, info.Action, mins)
				if ctx.Err() != nil {
					s.prompts.Close(info.ID)
					return
				}
				log.Info("decision received", logx.String("decision", decision.String()))
				if decision == prompt.ContinueScheduled {
					s.prompts.Close(info.ID)
				}
			}
		}

		switch decision {
		case prompt.RunNow:
			s.prompts.Close(info.ID)
			s.execute(ctx, log, info)
			if !s.advance(ctx, log, e, info) {
				return
			}
		case prompt.CancelAction:
			s.prompts.Close(info.ID)
			log.Info("occurrence skipped")
			if !s.advance(ctx, log, e, info) {
				return
			}
		case prompt.Snooze10:
			s.prompts.Close(info.ID)
			now := s.clock.Now()
			target := now.Add(prompt.SnoozeMinutes * time.Minute)
			if !s.updateTarget(e, target) {
				return
			}
			s.persistLogged(ctx, info.ID)
			snoozedAt = now
			log.Info("occurrence snoozed", logx.Time("target", target))
			continue
		default:
			if !s.sleepUntil(ctx, info.TargetTime) {
				s.prompts.Close(info.ID)
				return
			}
			// Cancelled while the action was due.
			if _, ok := s.current(e); !ok {
				s.prompts.Close(info.ID)
				return
			}
			s.prompts.Close(info.ID)
			s.execute(ctx, log, info)
			if !s.advance(ctx, log, e, info) {
				return
			}
		}
		snoozedAt = time.Time{}
	}
}

func (s *Service) execute(ctx context.Context, log logx.Logger, info timer.Timer) {
	log.Info("executing action", logx.String("action", info.Action.String()))
	if err := s.exec.Execute(ctx, info.Action, info.Message); err != nil {
		log.Error("action failed", logx.String("action", info.Action.String()), logx.Err(err))
	}
}

// advance moves e to the occurrence following the one that just fired (or
// was decided on), or retires it. It reports whether the task should keep
// running.
func (s *Service) advance(ctx context.Context, log logx.Logger, e *entry, info timer.Timer) bool {
	if info.Recurrence == nil {
		s.retire(ctx, e)
		log.Info("timer completed")
		return false
	}
	next, ok := timer.NextOccurrenceIn(info.TargetTime, info.Recurrence, s.clock.Now(), s.location())
	if !ok {
		s.retire(ctx, e)
		log.Warn("recurrence exhausted; timer removed")
		return false
	}
	if !s.updateTarget(e, next) {
		return false
	}
	s.persistLogged(ctx, info.ID)
	log.Info("timer rescheduled", logx.Time("target", next))
	return true
}

// sleepUntil waits for the clock to reach at. It returns false if ctx ends
// first.
func (s *Service) sleepUntil(ctx context.Context, at time.Time) bool {
	d := at.Sub(s.clock.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return ctx.Err() == nil
	}
}
