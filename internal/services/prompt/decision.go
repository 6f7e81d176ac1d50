package prompt

import (
	"fmt"
	"strings"

	"lockpilot/internal/timer"
)

// Decision is the user's answer to a pre-action warning.
type Decision string

const (
	RunNow            Decision = "run_now"
	Snooze10          Decision = "snooze10"
	CancelAction      Decision = "cancel_action"
	ContinueScheduled Decision = "continue_scheduled"
)

// SnoozeMinutes is how far a Snooze10 decision pushes the target.
const SnoozeMinutes = 10

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case RunNow, Snooze10, CancelAction, ContinueScheduled:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", timer.ErrValidation, s)
	}
}

func (d Decision) String() string { return string(d) }

// Event types published on the bus.
const (
	EventWarning = "prompt.warning"
	EventClose   = "prompt.close"
)

// Warning is the payload of an EventWarning event.
type Warning struct {
	PromptID         string       `json:"promptId"`
	TimerID          string       `json:"timerId"`
	Action           timer.Action `json:"action"`
	WarningMinutes   int          `json:"warningMinutes"`
	CountdownSeconds int          `json:"countdownSeconds"`
	SnoozeMinutes    int          `json:"snoozeMinutes"`
}

// Close is the payload of an EventClose event.
type Close struct {
	TimerID string `json:"timerId"`
}

func countdownSeconds(minutes int) int {
	return max(1, minutes*60)
}
