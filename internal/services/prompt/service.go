// Package prompt tracks outstanding pre-action decisions.
//
// A timer task calls Request, which announces a warning on the event bus and
// parks until a front end answers through Resolve, the countdown lapses, or
// the task is cancelled. Each prompt id can be resolved at most once.
package prompt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lockpilot/internal/clock"
	"lockpilot/internal/eventbus"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

type Service struct {
	log   logx.Logger
	bus   eventbus.Bus
	clock clock.Clock

	mu      sync.Mutex
	pending map[string]chan Decision
}

func New(bus eventbus.Bus, clk clock.Clock, log logx.Logger) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	return &Service{
		log:     log.With(logx.String("comp", "prompt")),
		bus:     bus,
		clock:   clk,
		pending: map[string]chan Decision{},
	}
}

// Request publishes a warning for timerID and waits for a decision.
// Timeout and ctx cancellation both yield ContinueScheduled; callers that
// care about cancellation check ctx themselves.
func (s *Service) Request(ctx context.Context, timerID string, action timer.Action, warningMinutes int) Decision {
	id := uuid.NewString()
	ch := make(chan Decision, 1)

	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	w := Warning{
		PromptID:         id,
		TimerID:          timerID,
		Action:           action,
		WarningMinutes:   warningMinutes,
		CountdownSeconds: countdownSeconds(warningMinutes),
		SnoozeMinutes:    SnoozeMinutes,
	}
	s.bus.Publish(eventbus.Event{Type: EventWarning, Time: s.clock.Now(), Data: w})
	s.log.Debug("decision requested",
		logx.String("prompt_id", id),
		logx.String("timer_id", timerID),
		logx.String("action", action.String()),
		logx.Int("countdown_s", w.CountdownSeconds),
	)

	t := s.clock.NewTimer(time.Duration(w.CountdownSeconds) * time.Second)
	defer t.Stop()

	select {
	case d := <-ch:
		return d
	case <-t.C():
		return s.abandon(id, ch, "timeout")
	case <-ctx.Done():
		return s.abandon(id, ch, "cancelled")
	}
}

// abandon drops the registration. If a Resolve raced in first the entry is
// already gone and its decision sits in the buffer; that decision wins.
func (s *Service) abandon(id string, ch chan Decision, reason string) Decision {
	s.mu.Lock()
	_, still := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	if !still {
		select {
		case d := <-ch:
			return d
		default:
		}
	}
	s.log.Debug("decision abandoned", logx.String("prompt_id", id), logx.String("reason", reason))
	return ContinueScheduled
}

// Resolve delivers d to the prompt. It reports false for unknown or already
// resolved ids.
func (s *Service) Resolve(promptID string, d Decision) bool {
	s.mu.Lock()
	ch, ok := s.pending[promptID]
	if ok {
		delete(s.pending, promptID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- d
	s.log.Debug("decision resolved", logx.String("prompt_id", promptID), logx.String("decision", d.String()))
	return true
}

// Close tells front ends to dismiss any prompt shown for timerID.
func (s *Service) Close(timerID string) {
	s.bus.Publish(eventbus.Event{Type: EventClose, Time: s.clock.Now(), Data: Close{TimerID: timerID}})
}

// Pending reports the number of unanswered prompts.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Bus exposes the bus warnings are published on.
func (s *Service) Bus() eventbus.Bus { return s.bus }
