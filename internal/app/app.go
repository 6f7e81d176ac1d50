package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lockpilot/internal/actions"
	"lockpilot/internal/clock"
	"lockpilot/internal/config"
	"lockpilot/internal/eventbus"
	"lockpilot/internal/ipc"
	"lockpilot/internal/runtime/supervisor"
	"lockpilot/internal/services/prompt"
	"lockpilot/internal/services/scheduler"
	"lockpilot/internal/storage"
	logx "lockpilot/pkg/logx"
)

// Version is stamped at build time with -ldflags "-X lockpilot/internal/app.Version=...".
var Version = "dev"

// App owns every long-lived component of the daemon.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	clk   clock.Clock

	prompts *prompt.Service
	desktop *actions.Desktop
	exec    *actions.Switch
	sched   *scheduler.Service
	ipc     *ipc.Server
}

// Option customizes New; used by tests.
type Option func(*options)

type options struct {
	clock clock.Clock
	live  bool
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithoutDesktop skips the live executor; every action is dry-run.
func WithoutDesktop() Option { return func(o *options) { o.live = false } }

func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{clock: clock.Real(), live: true}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(cfg.Logging.LogConfig())
	log = log.With(logx.String("comp", "app"))

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	} else {
		log.Warn("storage disabled; timers will not survive a restart")
	}

	bus := eventbus.New()
	prompts := prompt.New(bus, o.clock, log)

	var desktop *actions.Desktop
	if o.live {
		desktop, err = actions.NewDesktop(actions.DesktopOptions{AskForAuth: cfg.Actions.AskForAuth}, log)
		if err != nil {
			log.Warn("desktop actions unavailable; running dry", logx.Err(err))
			desktop = nil
		}
	}
	dry := actions.NewDryRun(log)
	var exec *actions.Switch
	if desktop != nil {
		exec = actions.NewSwitch(desktop, dry, cfg.Actions.DryRun)
	} else {
		exec = actions.NewSwitch(nil, dry, true)
	}

	sched, err := scheduler.New(mapSchedulerConfig(cfg), scheduler.Deps{
		Store:    store,
		Prompts:  prompts,
		Executor: exec,
		Clock:    o.clock,
		Log:      log,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		clk:     o.clock,
		prompts: prompts,
		desktop: desktop,
		exec:    exec,
		sched:   sched,
	}, nil
}

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		return nil
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the scheduler, restores persisted timers, claims the bus name
// and begins watching the config file.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	cfg := a.cfgm.Get()

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	res, err := a.sched.Restore(ctx)
	if err != nil {
		a.log.Warn("restore failed; starting with no timers", logx.Err(err))
	} else {
		a.log.Info("timers restored",
			logx.Int("loaded", res.Loaded),
			logx.Int("restored", res.Restored),
			logx.Int("fast_forwarded", res.FastForwarded),
			logx.Int("dropped", res.Dropped),
		)
	}

	if cfg.IPC.Enabled {
		h := ipc.NewHandler(a.sched, a.log, ipc.WithVersion(Version), ipc.WithDryRunProbe(a.exec.DryRun))
		srv, err := ipc.Listen(ipc.ParseBus(cfg.IPC.Bus), h, a.log)
		switch {
		case errors.Is(err, ipc.ErrNameTaken):
			a.abortStart()
			return err
		case err != nil:
			a.log.Warn("ipc unavailable; timers run but cannot be controlled", logx.Err(err))
		default:
			a.ipc = srv
			a.sup.GoRestart("ipc.bridge", func(c context.Context) error {
				return srv.Bridge(c, a.bus)
			}, time.Second, 30*time.Second)
		}
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return mapSchedulerConfig(cfg).Validate()
	})
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		applied := cfg
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(applied, next)
				applied = next
			}
		}
	})
	if dir := filepath.Dir(a.cfgm.Path()); dirExists(dir) {
		a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)
	} else {
		a.log.Debug("config directory missing; reload disabled", logx.String("dir", dir))
	}

	a.log.Info("started",
		logx.String("version", Version),
		logx.Bool("dry_run", a.exec.DryRun()),
		logx.Bool("ipc", a.ipc != nil),
	)
	return nil
}

func (a *App) abortStart() {
	a.sup.Cancel()
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.sched.Stop(stopCtx)
}

// applyConfig pushes a reloaded config into the running components.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		return
	}
	attrs = append(attrs, logx.Strs("changed", changed))
	a.log.Info("config reloaded", attrs...)
	if len(restart) > 0 {
		a.log.Warn("config sections need a restart to take effect", logx.Strs("sections", restart))
	}

	for _, sec := range changed {
		switch sec {
		case "logging":
			a.logs.Apply(next.Logging.LogConfig())
		case "actions":
			a.exec.SetDryRun(next.Actions.DryRun)
			if a.desktop != nil {
				a.desktop.SetAskForAuth(next.Actions.AskForAuth)
			}
		case "scheduler":
			if err := a.sched.Apply(mapSchedulerConfig(next)); err != nil {
				a.log.Warn("scheduler config not applied", logx.Err(err))
			}
		}
	}
}

// Stop shuts components down in reverse start order. Each step is bounded
// so one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "scheduler", 3*time.Second, a.sched.Stop)
	a.step(ctx, "ipc", time.Second, func(context.Context) error { return a.ipc.Close() })
	a.step(ctx, "desktop", time.Second, func(context.Context) error {
		if a.desktop != nil {
			return a.desktop.Close()
		}
		return nil
	})
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}

func dirExists(dir string) bool {
	st, err := os.Stat(dir)
	return err == nil && st.IsDir()
}
