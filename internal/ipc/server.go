package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"lockpilot/internal/eventbus"
	"lockpilot/internal/services/prompt"
	logx "lockpilot/pkg/logx"
)

var ErrNameTaken = errors.New("lockpilot is already running on this bus")

// emitter is the part of *dbus.Conn the signal bridge needs.
type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
}

// Server owns the bus connection: it claims the well-known name, exports the
// handler and turns prompt events into signals.
type Server struct {
	log  logx.Logger
	conn *dbus.Conn
	bus  Bus
}

// Listen connects to bus, claims ServiceName and exports h.
func Listen(bus Bus, h *Handler, log logx.Logger) (*Server, error) {
	log = log.With(logx.String("comp", "ipc"), logx.String("bus", string(bus)))
	conn, err := bus.connect()
	if err != nil {
		return nil, fmt.Errorf("connect %s bus: %w", bus, err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, ErrNameTaken
	}

	if err := conn.Export(h, dbus.ObjectPath(ObjectPath), InterfaceName); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("export interface: %w", err)
	}
	node := introspect.IntrospectDeclarationString + "<node>" + introspectXML + introspect.IntrospectDataString + "</node>"
	if err := conn.Export(introspect.Introspectable(node), dbus.ObjectPath(ObjectPath), "org.freedesktop.DBus.Introspectable"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	log.Info("ipc listening", logx.String("name", ServiceName), logx.String("path", ObjectPath))
	return &Server{log: log, conn: conn, bus: bus}, nil
}

// Bridge forwards prompt events from events to D-Bus signals until ctx ends.
func (s *Server) Bridge(ctx context.Context, events eventbus.Bus) error {
	return bridge(ctx, events, s.conn, s.log)
}

func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	_, _ = s.conn.ReleaseName(ServiceName)
	return s.conn.Close()
}

func bridge(ctx context.Context, events eventbus.Bus, out emitter, log logx.Logger) error {
	ch, unsub := events.Subscribe(32, prompt.EventWarning, prompt.EventClose)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return errors.New("event subscription closed")
			}
			if err := emit(out, e); err != nil {
				log.Warn("signal emit failed", logx.String("event", e.Type), logx.Err(err))
			}
		}
	}
}

func emit(out emitter, e eventbus.Event) error {
	path := dbus.ObjectPath(ObjectPath)
	switch data := e.Data.(type) {
	case prompt.Warning:
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return out.Emit(path, InterfaceName+"."+SignalPreActionWarning, string(b))
	case prompt.Close:
		return out.Emit(path, InterfaceName+"."+SignalClosePrompt, data.TimerID)
	default:
		return fmt.Errorf("unexpected payload %T", e.Data)
	}
}
