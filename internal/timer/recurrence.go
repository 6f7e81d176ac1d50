package timer

import "time"

// dayScanLimit bounds the weekday search. Any non-empty weekday set matches
// within 7 days, so exhausting the bound means the rule cannot match at all.
const dayScanLimit = 14

// NextOccurrence computes the next occurrence after fired for rule, evaluating
// calendar days in UTC. The result is always strictly after now; ok is false
// when the rule yields no further occurrence.
func NextOccurrence(fired time.Time, rule *Recurrence, now time.Time) (time.Time, bool) {
	return NextOccurrenceIn(fired, rule, now, time.UTC)
}

// NextOccurrenceIn is NextOccurrence with weekday scans evaluated in loc.
// Fixed-interval rules are location independent. The result is in UTC.
func NextOccurrenceIn(fired time.Time, rule *Recurrence, now time.Time, loc *time.Location) (time.Time, bool) {
	if rule == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	switch rule.Preset {
	case PresetDaily:
		return stepPast(fired, 24*time.Hour, now), true
	case PresetEveryNHours:
		if rule.IntervalHours == nil || *rule.IntervalHours <= 0 {
			return time.Time{}, false
		}
		return stepPast(fired, time.Duration(*rule.IntervalHours)*time.Hour, now), true
	case PresetEveryNMinutes:
		if rule.IntervalMinutes == nil || *rule.IntervalMinutes <= 0 {
			return time.Time{}, false
		}
		return stepPast(fired, time.Duration(*rule.IntervalMinutes)*time.Minute, now), true
	case PresetWeekdays:
		return scanDays(fired, now, loc, func(d time.Weekday) bool {
			return d != time.Saturday && d != time.Sunday
		})
	case PresetSpecificDays:
		allowed := make(map[time.Weekday]bool, len(rule.DaysOfWeek))
		for _, name := range rule.DaysOfWeek {
			if d, ok := ParseWeekday(name); ok {
				allowed[d] = true
			}
		}
		if len(allowed) == 0 {
			return time.Time{}, false
		}
		return scanDays(fired, now, loc, func(d time.Weekday) bool { return allowed[d] })
	}
	return time.Time{}, false
}

// stepPast returns the smallest fired + k*every (k >= 1) strictly after now.
func stepPast(fired time.Time, every time.Duration, now time.Time) time.Time {
	next := fired.Add(every)
	if next.After(now) {
		return next.UTC()
	}
	k := now.Sub(next)/every + 1
	next = next.Add(k * every)
	// Guard against rounding at the boundary.
	for !next.After(now) {
		next = next.Add(every)
	}
	return next.UTC()
}

// scanDays walks forward from the day after fired, combining each date with
// fired's wall-clock time of day, and returns the first matching day after now.
func scanDays(fired, now time.Time, loc *time.Location, match func(time.Weekday) bool) (time.Time, bool) {
	f := fired.In(loc)
	y, m, d := f.Date()
	hh, mm, ss := f.Clock()
	ns := f.Nanosecond()
	for i := 1; i <= dayScanLimit; i++ {
		candidate := time.Date(y, m, d+i, hh, mm, ss, ns, loc)
		if !match(candidate.Weekday()) {
			continue
		}
		if candidate.After(now) {
			return candidate.UTC(), true
		}
	}
	return time.Time{}, false
}

// FastForward advances an overdue occurrence until it lies strictly after now,
// without executing the skipped occurrences. Fixed-interval rules jump directly;
// weekday rules step one occurrence at a time so an arbitrarily long gap never
// exhausts the day-scan bound. ok is false when the rule yields no occurrence.
func FastForward(current time.Time, rule *Recurrence, now time.Time, loc *time.Location) (time.Time, bool) {
	if next, ok := NextOccurrenceIn(current, rule, now, loc); ok {
		return next, true
	}
	next := current
	for !next.After(now) {
		n, ok := NextOccurrenceIn(next, rule, next, loc)
		if !ok {
			return time.Time{}, false
		}
		next = n
	}
	return next, true
}
