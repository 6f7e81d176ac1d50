package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"lockpilot/internal/clock"
	"lockpilot/internal/runtime/supervisor"
	"lockpilot/internal/services/prompt"
	"lockpilot/internal/storage"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

type Service struct {
	log     logx.Logger
	clock   clock.Clock
	store   storage.Store
	prompts *prompt.Service
	exec    Executor

	// warnLimit throttles repeated persistence-failure warnings from tasks.
	warnLimit *rate.Limiter

	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	loc     *time.Location
	running bool
	sup     *supervisor.Supervisor
	cron    *cron.Cron

	persistMu sync.Mutex
	dirty     atomic.Bool
}

func New(cfg Config, deps Deps) (*Service, error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Prompts == nil {
		deps.Prompts = prompt.New(nil, deps.Clock, deps.Log)
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("scheduler: executor required")
	}
	return &Service{
		log:       deps.Log.With(logx.String("comp", "scheduler")),
		clock:     deps.Clock,
		store:     deps.Store,
		prompts:   deps.Prompts,
		exec:      deps.Executor,
		warnLimit: rate.NewLimiter(rate.Every(time.Minute), 3),
		entries:   map[string]*entry{},
		cfg:       cfg,
		loc:       loc,
	}, nil
}

// Start launches the flush job and a task for every registered timer.
// Calling Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	c, err := s.newFlushCronLocked()
	if err != nil {
		return err
	}
	s.cron = c
	s.cron.Start()
	s.running = true

	for _, e := range s.entries {
		s.spawnLocked(e)
	}
	s.log.Info("service started",
		logx.Int("timers", len(s.entries)),
		logx.String("tz", s.loc.String()),
		logx.Bool("persistence", s.store != nil),
	)
	return nil
}

// Stop cancels every task and waits for them to return. The timer set and
// its stored copy are left untouched so a later Restore picks them up.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	sup, c := s.sup, s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if err := sup.Stop(ctx); err != nil && ctx.Err() != nil {
		return fmt.Errorf("scheduler stop: %w", err)
	}
	if s.dirty.Load() {
		if err := s.persist(ctx); err != nil {
			s.log.Warn("final flush failed", logx.Err(err))
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	return nil
}

// Apply swaps in a new timezone and flush schedule. Running tasks pick the
// timezone up at their next reschedule.
func (s *Service) Apply(cfg Config) error {
	loc, err := cfg.location()
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	s.loc = loc
	if s.running && old.FlushEvery != cfg.FlushEvery {
		c, err := s.newFlushCronLocked()
		if err != nil {
			s.cfg.FlushEvery = old.FlushEvery
			return err
		}
		if s.cron != nil {
			s.cron.Stop()
		}
		s.cron = c
		s.cron.Start()
	}
	s.log.Debug("config applied", logx.String("tz", loc.String()), logx.String("flush_every", cfg.FlushEvery))
	return nil
}

// Create validates req, registers the timer, persists the new set and starts
// its task. A persistence failure is reported as ErrStorage together with
// the registered timer.
func (s *Service) Create(ctx context.Context, req timer.Request) (timer.Timer, error) {
	t, err := timer.New(req, uuid.NewString(), s.clock.Now())
	if err != nil {
		return timer.Timer{}, err
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return timer.Timer{}, ErrStopped
	}
	e := &entry{info: t}
	s.entries[t.ID] = e
	s.mu.Unlock()

	perr := s.persist(ctx)

	s.mu.Lock()
	// A racing Cancel or Stop may already have handled the entry.
	if s.running && s.entries[t.ID] == e {
		s.spawnLocked(e)
	}
	s.mu.Unlock()

	s.log.Info("timer created",
		logx.String("timer_id", t.ID),
		logx.String("action", t.Action.String()),
		logx.Time("target", t.TargetTime),
		logx.Bool("recurring", t.Recurring()),
	)
	return t.Clone(), perr
}

// List returns every active timer ordered by target time.
func (s *Service) List() []timer.Timer {
	s.mu.Lock()
	out := make([]timer.Timer, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.info.Clone())
	}
	s.mu.Unlock()
	sortTimers(out)
	return out
}

func (s *Service) Get(id string) (timer.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return timer.Timer{}, false
	}
	return e.info.Clone(), true
}

// Cancel removes the timer and stops its task. It reports whether the id was
// registered; a storage failure comes back as ErrStorage alongside true.
func (s *Service) Cancel(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	s.log.Info("timer cancelled", logx.String("timer_id", id))
	return true, s.persist(ctx)
}

// ResolveDecision forwards a front end's answer to a pending prompt.
func (s *Service) ResolveDecision(promptID string, d prompt.Decision) bool {
	return s.prompts.Resolve(promptID, d)
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Running:      s.running,
		ActiveTimers: len(s.entries),
		Timezone:     s.loc.String(),
	}
	sup := s.sup
	s.mu.Unlock()
	st.PendingPrompts = s.prompts.Pending()
	st.Dirty = s.dirty.Load()
	if sup != nil {
		st.Tasks = sup.Counters()
	}
	return st
}

func (s *Service) location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// spawnLocked gives e a fresh task context and starts its goroutine.
func (s *Service) spawnLocked(e *entry) {
	ctx, cancel := context.WithCancel(s.sup.Context())
	e.cancel = cancel
	id := e.info.ID
	s.sup.Go0("timer:"+id, func(context.Context) {
		defer cancel()
		s.runTask(ctx, e)
	})
}

// current returns e's timer if e is still the registered entry for its id.
func (s *Service) current(e *entry) (timer.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[e.info.ID] != e {
		return timer.Timer{}, false
	}
	return e.info.Clone(), true
}

// updateTarget moves e to t. It is a no-op returning false once e has been
// cancelled or replaced.
func (s *Service) updateTarget(e *entry, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[e.info.ID] != e {
		return false
	}
	e.info.TargetTime = t.UTC()
	return true
}

// retire drops e after its final occurrence.
func (s *Service) retire(ctx context.Context, e *entry) {
	s.mu.Lock()
	removed := false
	if s.entries[e.info.ID] == e {
		delete(s.entries, e.info.ID)
		removed = true
	}
	s.mu.Unlock()
	if removed {
		s.persistLogged(ctx, e.info.ID)
	}
}

// persist writes the current snapshot. The snapshot is taken under
// persistMu so concurrent writers can never leave an older set on disk.
func (s *Service) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	snap := s.List()
	if err := s.store.SaveTimers(ctx, snap); err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.dirty.Store(false)
	return nil
}

// persistLogged is used by tasks, which have no caller to report to.
func (s *Service) persistLogged(ctx context.Context, timerID string) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.persist(wctx); err != nil {
		if s.warnLimit.Allow() {
			s.log.Warn("persist failed; will retry on flush", logx.String("timer_id", timerID), logx.Err(err))
		} else {
			s.log.Debug("persist failed", logx.String("timer_id", timerID), logx.Err(err))
		}
	}
}

func sortTimers(ts []timer.Timer) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].TargetTime.Equal(ts[j].TargetTime) {
			return ts[i].TargetTime.Before(ts[j].TargetTime)
		}
		return ts[i].ID < ts[j].ID
	})
}
