// Package ipc exposes the scheduler on D-Bus and provides the matching
// client used by lockpilotctl.
//
// All payloads are JSON strings so the wire contract stays the same as the
// persisted timer format.
package ipc

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	ServiceName   = "io.github.lockpilot"
	ObjectPath    = "/io/github/lockpilot"
	InterfaceName = "io.github.lockpilot.Manager"

	SignalPreActionWarning = "PreActionWarning"
	SignalClosePrompt      = "ClosePrompt"

	ErrNameValidation  = "io.github.lockpilot.Error.Validation"
	ErrNameStorage     = "io.github.lockpilot.Error.Storage"
	ErrNameUnavailable = "io.github.lockpilot.Error.Unavailable"
	ErrNameInternal    = "io.github.lockpilot.Error.Internal"
)

// Bus selects which message bus to use.
type Bus string

const (
	SessionBus Bus = "session"
	SystemBus  Bus = "system"
)

func ParseBus(s string) Bus {
	if strings.EqualFold(strings.TrimSpace(s), string(SystemBus)) {
		return SystemBus
	}
	return SessionBus
}

func (b Bus) connect(opts ...dbus.ConnOption) (*dbus.Conn, error) {
	if b == SystemBus {
		return dbus.ConnectSystemBus(opts...)
	}
	return dbus.ConnectSessionBus(opts...)
}

const introspectXML = `
<interface name="` + InterfaceName + `">
  <method name="CreateTimer">
    <arg name="request" direction="in" type="s"/>
    <arg name="timer" direction="out" type="s"/>
  </method>
  <method name="ListTimers">
    <arg name="timers" direction="out" type="s"/>
  </method>
  <method name="CancelTimer">
    <arg name="id" direction="in" type="s"/>
    <arg name="found" direction="out" type="b"/>
  </method>
  <method name="ResolveDecision">
    <arg name="promptId" direction="in" type="s"/>
    <arg name="decision" direction="in" type="s"/>
    <arg name="accepted" direction="out" type="b"/>
  </method>
  <method name="Status">
    <arg name="status" direction="out" type="s"/>
  </method>
  <signal name="` + SignalPreActionWarning + `">
    <arg name="payload" type="s"/>
  </signal>
  <signal name="` + SignalClosePrompt + `">
    <arg name="timerId" type="s"/>
  </signal>
</interface>`
