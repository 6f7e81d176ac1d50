// Package actions carries out what a timer asks for: show a popup, lock the
// screen, power off or reboot.
package actions

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

// DefaultPopupText is shown when a popup timer has no message.
const DefaultPopupText = "LockPilot timer reached."

var ErrUnsupported = errors.New("desktop actions are not supported on this platform")

type executor interface {
	Execute(ctx context.Context, action timer.Action, message string) error
}

// PopupText returns the body to show for a popup.
func PopupText(message string) string {
	if m := strings.TrimSpace(message); m != "" {
		return m
	}
	return DefaultPopupText
}

// DryRun logs actions instead of performing them.
type DryRun struct {
	log logx.Logger
}

func NewDryRun(log logx.Logger) *DryRun {
	return &DryRun{log: log.With(logx.String("comp", "actions"), logx.Bool("dry_run", true))}
}

func (d *DryRun) Execute(_ context.Context, action timer.Action, message string) error {
	if !action.Valid() {
		return errors.New("unknown action: " + action.String())
	}
	fields := []logx.Field{logx.String("action", action.String())}
	if action == timer.ActionPopup {
		fields = append(fields, logx.String("text", PopupText(message)))
	}
	d.log.Info("action skipped", fields...)
	return nil
}

// Switch routes to the live executor or the dry-run one. The choice can be
// flipped at runtime when config reloads.
type Switch struct {
	live   executor
	dry    *DryRun
	dryRun atomic.Bool
}

// NewSwitch builds a Switch. A nil live executor forces dry-run mode.
func NewSwitch(live executor, dry *DryRun, dryRun bool) *Switch {
	s := &Switch{live: live, dry: dry}
	s.SetDryRun(dryRun)
	return s
}

func (s *Switch) SetDryRun(v bool) { s.dryRun.Store(v || s.live == nil) }

func (s *Switch) DryRun() bool { return s.dryRun.Load() }

func (s *Switch) Execute(ctx context.Context, action timer.Action, message string) error {
	if s.dryRun.Load() {
		return s.dry.Execute(ctx, action, message)
	}
	return s.live.Execute(ctx, action, message)
}
