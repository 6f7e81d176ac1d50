//go:build !linux

package actions

import (
	"context"

	"lockpilot/internal/timer"
	logx "lockpilot/pkg/logx"
)

type DesktopOptions struct {
	AskForAuth bool
}

// Desktop is unavailable off Linux; use DryRun.
type Desktop struct{}

func NewDesktop(DesktopOptions, logx.Logger) (*Desktop, error) {
	return nil, ErrUnsupported
}

func (*Desktop) Execute(context.Context, timer.Action, string) error { return ErrUnsupported }

func (*Desktop) SetAskForAuth(bool) {}

func (*Desktop) Close() error { return nil }
