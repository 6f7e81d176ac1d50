package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"lockpilot/internal/services/prompt"
	"lockpilot/internal/timer"
)

// ErrNotPersisted is returned by CreateTimer together with the timer when
// the daemon scheduled it but could not save it.
var ErrNotPersisted = errors.New("timer is scheduled but was not saved; it will not survive a restart")

// Client calls a running daemon over D-Bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func Dial(bus Bus) (*Client, error) {
	conn, err := bus.connect()
	if err != nil {
		return nil, fmt.Errorf("connect %s bus: %w", bus, err)
	}
	return &Client{conn: conn, obj: conn.Object(ServiceName, dbus.ObjectPath(ObjectPath))}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(ctx context.Context, method string, out any, args ...any) error {
	call := c.obj.CallWithContext(ctx, InterfaceName+"."+method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	return call.Store(out)
}

func (c *Client) CreateTimer(ctx context.Context, req timer.Request) (timer.Timer, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return timer.Timer{}, err
	}
	var raw string
	if err := c.call(ctx, "CreateTimer", &raw, string(b)); err != nil {
		return timer.Timer{}, err
	}
	var reply createReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return timer.Timer{}, err
	}
	if reply.StorageWarning != "" {
		return reply.Timer, fmt.Errorf("%w: %s", ErrNotPersisted, reply.StorageWarning)
	}
	return reply.Timer, nil
}

func (c *Client) ListTimers(ctx context.Context) ([]timer.Timer, error) {
	var raw string
	if err := c.call(ctx, "ListTimers", &raw); err != nil {
		return nil, err
	}
	var reply listReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, err
	}
	return reply.Timers, nil
}

func (c *Client) CancelTimer(ctx context.Context, id string) (bool, error) {
	var found bool
	err := c.call(ctx, "CancelTimer", &found, id)
	return found, err
}

func (c *Client) ResolveDecision(ctx context.Context, promptID string, d prompt.Decision) (bool, error) {
	var ok bool
	err := c.call(ctx, "ResolveDecision", &ok, promptID, d.String())
	return ok, err
}

func (c *Client) Status(ctx context.Context) (StatusReply, error) {
	var raw string
	if err := c.call(ctx, "Status", &raw); err != nil {
		return StatusReply{}, err
	}
	var st StatusReply
	err := json.Unmarshal([]byte(raw), &st)
	return st, err
}

// Signal is a decoded daemon signal.
type Signal struct {
	Name    string
	Warning *prompt.Warning
	TimerID string
}

// Watch delivers warning and close signals to fn until ctx ends.
func (c *Client) Watch(ctx context.Context, fn func(Signal)) error {
	if err := c.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(dbus.ObjectPath(ObjectPath)),
		dbus.WithMatchInterface(InterfaceName),
	); err != nil {
		return fmt.Errorf("add match: %w", err)
	}
	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-ch:
			if !ok {
				return fmt.Errorf("signal channel closed")
			}
			if s, ok := decodeSignal(sig); ok {
				fn(s)
			}
		}
	}
}

func decodeSignal(sig *dbus.Signal) (Signal, bool) {
	if sig == nil || len(sig.Body) != 1 {
		return Signal{}, false
	}
	body, ok := sig.Body[0].(string)
	if !ok {
		return Signal{}, false
	}
	switch sig.Name {
	case InterfaceName + "." + SignalPreActionWarning:
		var w prompt.Warning
		if err := json.Unmarshal([]byte(body), &w); err != nil {
			return Signal{}, false
		}
		return Signal{Name: SignalPreActionWarning, Warning: &w, TimerID: w.TimerID}, true
	case InterfaceName + "." + SignalClosePrompt:
		return Signal{Name: SignalClosePrompt, TimerID: body}, true
	}
	return Signal{}, false
}
