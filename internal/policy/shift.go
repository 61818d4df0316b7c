// Package policy implements the pure, side-effect-free rules the
// reservation engine validates against: timezone-correct slot generation
// and shift containment, duration lookup, and the advance-booking
// window. Nothing here touches a store or a clock other than the "now"
// the caller passes in.
package policy

import (
	"time"

	"github.com/tablekeep/reservation-engine/internal/model"
)

const slotGrid = 15 * time.Minute

// MaxDuration returns the largest duration the rule table (or the
// default) can produce, used to size the shift-boundary tail-cut and to
// bound the availability slot grid.
func MaxDuration(rest model.Restaurant) time.Duration {
	maxMin := rest.DefaultDurationMin
	for _, r := range rest.DurationRules {
		if r.Minutes > maxMin {
			maxMin = r.Minutes
		}
	}
	return time.Duration(maxMin) * time.Minute
}

// Duration scans rules in ascending MaxPartySize; the first rule with
// p <= rule.MaxPartySize wins. If p exceeds every threshold, the rule
// with the largest MaxPartySize wins. Empty rules fall back to the
// default.
func Duration(partySize int, rules []model.DurationRule, defaultMinutes int) time.Duration {
	if len(rules) == 0 {
		return time.Duration(defaultMinutes) * time.Minute
	}
	best := rules[0]
	for _, r := range rules {
		if r.MaxPartySize > best.MaxPartySize {
			best = r
		}
	}
	sorted := append([]model.DurationRule(nil), rules...)
	sortRulesByMaxPartySize(sorted)
	for _, r := range sorted {
		if partySize <= r.MaxPartySize {
			return time.Duration(r.Minutes) * time.Minute
		}
	}
	return time.Duration(best.Minutes) * time.Minute
}

func sortRulesByMaxPartySize(rules []model.DurationRule) {
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j-1].MaxPartySize > rules[j].MaxPartySize; j-- {
			rules[j-1], rules[j] = rules[j], rules[j-1]
		}
	}
}

// loc resolves the restaurant's IANA timezone, falling back to UTC on a
// malformed name rather than panicking deep in slot math; the bad name
// is not reported.
func loc(tz string) *time.Location {
	l, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return l
}

// hhmm formats t's local wall-clock time as "HH:MM" for lexicographic
// comparison against Shift.Start/Shift.End, per spec.
func hhmm(t time.Time) string {
	return t.Format("15:04")
}

// WithinShift reports whether instant t's local time-of-day, in the
// restaurant's timezone, falls inside any configured shift. A restaurant
// with no shifts operates 24h.
func WithinShift(rest model.Restaurant, t time.Time) bool {
	if len(rest.Shifts) == 0 {
		return true
	}
	local := t.In(loc(rest.Timezone))
	hm := hhmm(local)
	for _, s := range rest.Shifts {
		if s.Start <= hm && hm < s.End {
			return true
		}
	}
	return false
}

// shiftEnd returns the absolute instant of shift s.End on the same local
// calendar date as t, and ok=false if t does not fall within s.
func shiftEnd(l *time.Location, dayStart time.Time, s model.Shift, t time.Time) (time.Time, bool) {
	hm := hhmm(t.In(l))
	if !(s.Start <= hm && hm < s.End) {
		return time.Time{}, false
	}
	end, err := time.ParseInLocation("15:04", s.End, l)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), end.Hour(), end.Minute(), 0, 0, l), true
}

// ShiftEnd returns the absolute end instant of the shift containing t, if
// any (used by the service layer to enforce that a reservation never
// spans past its shift's close).
func ShiftEnd(rest model.Restaurant, t time.Time) (time.Time, bool) {
	l := loc(rest.Timezone)
	dayStart := t.In(l)
	if len(rest.Shifts) == 0 {
		// 24h operation: the "shift" ends at the next local midnight.
		next := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), 0, 0, 0, 0, l).AddDate(0, 0, 1)
		return next, true
	}
	for _, s := range rest.Shifts {
		if end, ok := shiftEnd(l, dayStart, s, t); ok {
			return end, true
		}
	}
	return time.Time{}, false
}

// DaySlots returns the sequence of 15-minute-aligned slot start instants
// within date (a local calendar date in the restaurant's timezone) that
// lie within a shift and leave room for maxDur before the shift ends.
func DaySlots(rest model.Restaurant, date time.Time, maxDur time.Duration) []time.Time {
	l := loc(rest.Timezone)
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, l)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out []time.Time
	if len(rest.Shifts) == 0 {
		cutoff := dayEnd.Add(-maxDur)
		for t := dayStart; !t.After(cutoff) && t.Before(dayEnd); t = t.Add(slotGrid) {
			out = append(out, t)
		}
		return out
	}

	for _, s := range rest.Shifts {
		start, err1 := time.ParseInLocation("15:04", s.Start, l)
		end, err2 := time.ParseInLocation("15:04", s.End, l)
		if err1 != nil || err2 != nil || s.Start >= s.End {
			continue
		}
		shiftStart := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), start.Hour(), start.Minute(), 0, 0, l)
		shiftEndT := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day(), end.Hour(), end.Minute(), 0, 0, l)
		cutoff := shiftEndT.Add(-maxDur)
		for t := shiftStart; !t.After(cutoff) && t.Before(shiftEndT); t = t.Add(slotGrid) {
			out = append(out, t)
		}
	}
	return out
}
