//go:build linux

package actions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/godbus/dbus/v5"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"
	appName      = "LockPilot"
)

// DesktopOptions tune the live executor.
type DesktopOptions struct {
	// AskForAuth lets logind prompt through polkit for power actions.
	AskForAuth bool
}

// Desktop performs actions through logind on the system bus and the
// notification daemon on the session bus.
type Desktop struct {
	log logx.Logger
	ask atomic.Bool

	mu    sync.Mutex
	login *login1.Conn
}

func NewDesktop(opts DesktopOptions, log logx.Logger) (*Desktop, error) {
	d := &Desktop{log: log.With(logx.String("comp", "actions"))}
	d.ask.Store(opts.AskForAuth)
	return d, nil
}

// SetAskForAuth changes the polkit behaviour for later power actions.
func (d *Desktop) SetAskForAuth(v bool) { d.ask.Store(v) }

func (d *Desktop) Execute(ctx context.Context, action timer.Action, message string) error {
	switch action {
	case timer.ActionPopup:
		return d.notify(ctx, PopupText(message))
	case timer.ActionLock:
		c, err := d.logind()
		if err != nil {
			return err
		}
		c.LockSessions()
	case timer.ActionShutdown:
		c, err := d.logind()
		if err != nil {
			return err
		}
		c.PowerOff(d.ask.Load())
	case timer.ActionReboot:
		c, err := d.logind()
		if err != nil {
			return err
		}
		c.Reboot(d.ask.Load())
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	d.log.Info("action requested", logx.String("action", action.String()), logx.Bool("ask_for_auth", d.ask.Load()))
	return nil
}

// logind connects lazily; a machine without logind only fails the actions
// that need it.
func (d *Desktop) logind() (*login1.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.login != nil {
		return d.login, nil
	}
	c, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("connect logind: %w", err)
	}
	d.login = c
	return c, nil
}

func (d *Desktop) notify(ctx context.Context, body string) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		appName,              // app_name
		uint32(0),            // replaces_id
		"dialog-information", // app_icon
		appName,              // summary
		body,                 // body
		[]string{},           // actions
		map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(byte(1)),
		},
		int32(-1), // expire_timeout: server default
	)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}
	d.log.Info("popup shown", logx.String("text", body))
	return nil
}

func (d *Desktop) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.login != nil {
		d.login.Close()
		d.login = nil
	}
	return nil
}
