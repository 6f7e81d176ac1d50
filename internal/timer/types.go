package timer

import (
	"fmt"
	"strings"
	"time"
)

// Action is the system action a timer performs when an occurrence fires.
type Action string

const (
	ActionPopup    Action = "popup"
	ActionLock     Action = "lock"
	ActionShutdown Action = "shutdown"
	ActionReboot   Action = "reboot"
)

// ParseAction accepts the lowercase wire name (case-insensitive, trimmed).
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", invalid("action", fmt.Sprintf("Unknown action %q.", s))
	}
	return a, nil
}

func (a Action) Valid() bool {
	switch a {
	case ActionPopup, ActionLock, ActionShutdown, ActionReboot:
		return true
	}
	return false
}

// WarningEligible reports whether a pre-action warning may precede this action.
// Every action kind is eligible.
func (a Action) WarningEligible() bool { return a.Valid() }

func (a Action) String() string { return string(a) }

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Preset names a recurrence rule kind.
type Preset string

const (
	PresetDaily         Preset = "daily"
	PresetWeekdays      Preset = "weekdays"
	PresetSpecificDays  Preset = "specific_days"
	PresetEveryNHours   Preset = "every_n_hours"
	PresetEveryNMinutes Preset = "every_n_minutes"
)

// Recurrence determines the next occurrence after the current one fires.
//
// Only the field matching Preset is meaningful:
//   - every_n_hours:   IntervalHours (1..24)
//   - every_n_minutes: IntervalMinutes (1..1440)
//   - specific_days:   DaysOfWeek (1..7 weekday names)
type Recurrence struct {
	Preset          Preset   `json:"preset"`
	IntervalHours   *int     `json:"intervalHours,omitempty"`
	IntervalMinutes *int     `json:"intervalMinutes,omitempty"`
	DaysOfWeek      []string `json:"daysOfWeek,omitempty"`
}

func Daily() *Recurrence    { return &Recurrence{Preset: PresetDaily} }
func Weekdays() *Recurrence { return &Recurrence{Preset: PresetWeekdays} }

func SpecificDays(days ...string) *Recurrence {
	return &Recurrence{Preset: PresetSpecificDays, DaysOfWeek: days}
}

func EveryNHours(n int) *Recurrence {
	return &Recurrence{Preset: PresetEveryNHours, IntervalHours: &n}
}

func EveryNMinutes(n int) *Recurrence {
	return &Recurrence{Preset: PresetEveryNMinutes, IntervalMinutes: &n}
}

// Clone returns a deep copy.
func (r *Recurrence) Clone() *Recurrence {
	if r == nil {
		return nil
	}
	cp := *r
	if r.IntervalHours != nil {
		v := *r.IntervalHours
		cp.IntervalHours = &v
	}
	if r.IntervalMinutes != nil {
		v := *r.IntervalMinutes
		cp.IntervalMinutes = &v
	}
	if r.DaysOfWeek != nil {
		cp.DaysOfWeek = append([]string(nil), r.DaysOfWeek...)
	}
	return &cp
}

// Timer is the scheduled unit.
//
// TargetTime is the only field that changes after creation (snooze and
// recurrence advance); everything else is fixed for the timer's lifetime.
type Timer struct {
	ID                string      `json:"id"`
	Action            Action      `json:"action"`
	TargetTime        time.Time   `json:"targetTime"`
	Recurrence        *Recurrence `json:"recurrence,omitempty"`
	PreWarningMinutes []int       `json:"preWarningMinutes,omitempty"`
	Message           string      `json:"message,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// Clone returns a deep copy so snapshots never alias store state.
func (t Timer) Clone() Timer {
	cp := t
	cp.Recurrence = t.Recurrence.Clone()
	if t.PreWarningMinutes != nil {
		cp.PreWarningMinutes = append([]int(nil), t.PreWarningMinutes...)
	}
	return cp
}

// Recurring reports whether the timer has a recurrence rule.
func (t Timer) Recurring() bool { return t.Recurrence != nil }

// MaxWarningMinutes returns the largest configured pre-warning, or 0.
func (t Timer) MaxWarningMinutes() int {
	m := 0
	for _, v := range t.PreWarningMinutes {
		if v > m {
			m = v
		}
	}
	return m
}

// Request is the creation surface consumed from the GUI/CLI layer.
type Request struct {
	Action            Action      `json:"action"`
	TargetTime        string      `json:"targetTime"`
	Recurrence        *Recurrence `json:"recurrence,omitempty"`
	PreWarningMinutes []int       `json:"preWarningMinutes,omitempty"`
	Message           *string     `json:"message,omitempty"`
}
