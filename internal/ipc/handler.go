package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"lockpilot/internal/services/prompt"
	"lockpilot/internal/services/scheduler"
	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

// Backend is the slice of the scheduler the handler drives.
type Backend interface {
	Create(ctx context.Context, req timer.Request) (timer.Timer, error)
	List() []timer.Timer
	Cancel(ctx context.Context, id string) (bool, error)
	ResolveDecision(promptID string, d prompt.Decision) bool
	Stats() scheduler.Stats
}

// StatusReply is the Status payload.
type StatusReply struct {
	Version   string          `json:"version"`
	StartedAt time.Time       `json:"startedAt"`
	DryRun    bool            `json:"dryRun"`
	Scheduler scheduler.Stats `json:"scheduler"`
}

// createReply is the CreateTimer payload. StorageWarning is set when the
// timer is scheduled but could not be saved; it still runs until the daemon
// exits.
type createReply struct {
	timer.Timer
	StorageWarning string `json:"storageWarning,omitempty"`
}

type listReply struct {
	Timers []timer.Timer `json:"timers"`
}

// Handler implements the Manager interface methods. It has no transport of
// its own; Server exports it on a bus connection.
type Handler struct {
	backend   Backend
	log       logx.Logger
	version   string
	startedAt time.Time
	dryRun    func() bool
	timeout   time.Duration
}

type HandlerOption func(*Handler)

func WithVersion(v string) HandlerOption { return func(h *Handler) { h.version = v } }

func WithDryRunProbe(fn func() bool) HandlerOption { return func(h *Handler) { h.dryRun = fn } }

func NewHandler(backend Backend, log logx.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		backend:   backend,
		log:       log.With(logx.String("comp", "ipc")),
		version:   "dev",
		startedAt: time.Now().UTC(),
		timeout:   10 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) CreateTimer(request string) (string, *dbus.Error) {
	var req timer.Request
	if err := json.Unmarshal([]byte(request), &req); err != nil {
		var verr *timer.ValidationError
		if errors.As(err, &verr) {
			return "", h.fail("CreateTimer", err)
		}
		return "", h.fail("CreateTimer", fmt.Errorf("%w: malformed request: %v", timer.ErrValidation, err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	t, err := h.backend.Create(ctx, req)
	switch {
	case err == nil:
		return h.encode(createReply{Timer: t})
	case t.ID != "" && errors.Is(err, scheduler.ErrStorage):
		h.log.Warn("timer scheduled but not saved", logx.String("timer_id", t.ID), logx.Err(err))
		return h.encode(createReply{Timer: t, StorageWarning: err.Error()})
	default:
		return "", h.fail("CreateTimer", err)
	}
}

func (h *Handler) ListTimers() (string, *dbus.Error) {
	return h.encode(listReply{Timers: h.backend.List()})
}

func (h *Handler) CancelTimer(id string) (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	found, err := h.backend.Cancel(ctx, id)
	if err != nil {
		return found, h.fail("CancelTimer", err)
	}
	return found, nil
}

func (h *Handler) ResolveDecision(promptID, decision string) (bool, *dbus.Error) {
	d, err := prompt.ParseDecision(decision)
	if err != nil {
		return false, h.fail("ResolveDecision", err)
	}
	return h.backend.ResolveDecision(promptID, d), nil
}

func (h *Handler) Status() (string, *dbus.Error) {
	st := StatusReply{
		Version:   h.version,
		StartedAt: h.startedAt,
		Scheduler: h.backend.Stats(),
	}
	if h.dryRun != nil {
		st.DryRun = h.dryRun()
	}
	return h.encode(st)
}

func (h *Handler) encode(v any) (string, *dbus.Error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", dbus.NewError(ErrNameInternal, []any{err.Error()})
	}
	return string(b), nil
}

// fail maps domain errors onto D-Bus error names.
func (h *Handler) fail(method string, err error) *dbus.Error {
	name := ErrNameInternal
	switch {
	case errors.Is(err, timer.ErrValidation):
		name = ErrNameValidation
	case errors.Is(err, scheduler.ErrStorage):
		name = ErrNameStorage
	case errors.Is(err, scheduler.ErrStopped):
		name = ErrNameUnavailable
	}
	if name == ErrNameValidation {
		h.log.Debug("request rejected", logx.String("method", method), logx.Err(err))
	} else {
		h.log.Warn("request failed", logx.String("method", method), logx.Err(err))
	}
	return dbus.NewError(name, []any{err.Error()})
}
