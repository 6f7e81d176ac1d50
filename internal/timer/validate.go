package timer

import (
	"slices"
	"strings"
	"time"
)

// allowedWarningMinutes are the only pre-warning offsets a timer may carry.
var allowedWarningMinutes = []int{1, 5, 10}

// New validates req and builds the Timer that will be registered under id.
// now is the creation instant; the requested target must be strictly after it.
func New(req Request, id string, now time.Time) (Timer, error) {
	if !req.Action.Valid() {
		return Timer{}, invalid("action", "Unknown action.")
	}

	target, err := time.Parse(time.RFC3339, strings.TrimSpace(req.TargetTime))
	if err != nil {
		return Timer{}, invalid("targetTime", "Invalid date/time format")
	}
	target = target.UTC()
	if !target.After(now) {
		return Timer{}, invalid("targetTime", "Selected time must be in the future")
	}

	if err := ValidateRecurrence(req.Recurrence); err != nil {
		return Timer{}, err
	}
	warnings, err := NormalizeWarningMinutes(req.PreWarningMinutes)
	if err != nil {
		return Timer{}, err
	}

	var msg string
	if req.Message != nil {
		msg = strings.TrimSpace(*req.Message)
	}

	return Timer{
		ID:                id,
		Action:            req.Action,
		TargetTime:        target,
		Recurrence:        req.Recurrence.Clone(),
		PreWarningMinutes: warnings,
		Message:           msg,
		CreatedAt:         now.UTC(),
	}, nil
}

// ValidateRecurrence checks that the rule is well-formed. A nil rule is a one-shot timer.
func ValidateRecurrence(r *Recurrence) error {
	if r == nil {
		return nil
	}
	switch r.Preset {
	case PresetDaily, PresetWeekdays:
		return nil
	case PresetSpecificDays:
		if len(r.DaysOfWeek) == 0 {
			return invalid("recurrence.daysOfWeek", "Specific Days requires at least one day.")
		}
		if len(r.DaysOfWeek) > 7 {
			return invalid("recurrence.daysOfWeek", "Specific Days can include at most 7 days.")
		}
		for _, d := range r.DaysOfWeek {
			if _, ok := ParseWeekday(d); !ok {
				return invalid("recurrence.daysOfWeek", "Specific Days contains an invalid weekday.")
			}
		}
		return nil
	case PresetEveryNHours:
		if r.IntervalHours == nil {
			return invalid("recurrence.intervalHours", "Every N Hours requires an interval.")
		}
		if h := *r.IntervalHours; h < 1 || h > 24 {
			return invalid("recurrence.intervalHours", "Interval hours must be between 1 and 24.")
		}
		return nil
	case PresetEveryNMinutes:
		if r.IntervalMinutes == nil {
			return invalid("recurrence.intervalMinutes", "Every N Minutes requires an interval.")
		}
		if m := *r.IntervalMinutes; m < 1 || m > 1440 {
			return invalid("recurrence.intervalMinutes", "Interval minutes must be between 1 and 1440.")
		}
		return nil
	default:
		return invalid("recurrence.preset", "Unknown recurrence preset.")
	}
}

// NormalizeWarningMinutes deduplicates and sorts the pre-warning offsets.
// Any value outside {1, 5, 10} rejects the whole set.
func NormalizeWarningMinutes(values []int) ([]int, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		if !slices.Contains(allowedWarningMinutes, v) {
			return nil, invalid("preWarningMinutes", "Pre-warning options must be any of: 1, 5, 10 minutes.")
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out, nil
}

// ParseWeekday recognizes full and abbreviated English weekday names.
func ParseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mon", "monday":
		return time.Monday, true
	case "tue", "tues", "tuesday":
		return time.Tuesday, true
	case "wed", "wednesday":
		return time.Wednesday, true
	case "thu", "thur", "thurs", "thursday":
		return time.Thursday, true
	case "fri", "friday":
		return time.Friday, true
	case "sat", "saturday":
		return time.Saturday, true
	case "sun", "sunday":
		return time.Sunday, true
	}
	return 0, false
}
