// Package schedule computes daily rollover instants. The functions are pure:
// the counter owns all state and feeds in the clock, which keeps daylight
// saving behavior testable without timers.
package schedule

import "time"

// searchDays bounds the day-by-day walk. One day is enough outside DST
// transitions; the margin covers zones with unusual rules.
const searchDays = 4

// NextOccurrence returns the earliest instant strictly after `after` whose
// wall clock in loc reads hour:minute. A 02:30 rollover falling inside a
// spring-forward gap lands past the gap on the adjusted clock (03:30) rather
// than disappearing or sliding backward.
func NextOccurrence(after time.Time, hour, minute int, loc *time.Location) time.Time {
	local := after.In(loc)
	year, month, day := local.Date()
	for d := 0; d <= searchDays; d++ {
		candidate := occurrence(year, month, day+d, hour, minute, loc)
		if candidate.After(after) {
			return candidate
		}
	}
	// Unreachable for sane zones; fall back to one calendar day out.
	return local.AddDate(0, 0, 1)
}

// occurrence builds the instant whose wall clock in loc reads hour:minute on
// the given day. time.Date normalizes a skipped local time to an instant
// whose clock no longer matches; when that happens, advance by the wall-clock
// shortfall so the result sits just past the gap with the minute preserved.
func occurrence(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	candidate := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if candidate.Hour() == hour && candidate.Minute() == minute {
		return candidate
	}
	want := hour*60 + minute
	got := candidate.Hour()*60 + candidate.Minute()
	diff := (want - got + 24*60) % (24 * 60)
	if diff >= 12*60 {
		// Normalization already landed past the gap; that is the adjusted
		// clock time we want.
		return candidate
	}
	return candidate.Add(time.Duration(diff) * time.Minute)
}

// PrevOccurrence returns the latest instant strictly before `before` whose
// wall clock in loc reads hour:minute. Used to find the boundary of the day
// just ending when a reset fires.
func PrevOccurrence(before time.Time, hour, minute int, loc *time.Location) time.Time {
	local := before.In(loc)
	year, month, day := local.Date()
	for d := 0; d <= searchDays; d++ {
		candidate := occurrence(year, month, day-d, hour, minute, loc)
		if candidate.Before(before) {
			return candidate
		}
	}
	return local.AddDate(0, 0, -1)
}
