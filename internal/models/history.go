package models

import (
	"fmt"
	"time"
)

// Legacy record ids packed the archive date as 0xYYYYMMDD. New records use a
// plain monotonic counter; the packed form survives only in migrated files.
const (
	legacyDayMask   = 0x000000FF
	legacyMonthMask = 0x0000FF00
	legacyYearMask  = 0xFFFF0000

	legacyMonthShift = 8
	legacyYearShift  = 16
)

// HistoryRecord is one archived reset period. Records are immutable once
// created: the reset scheduler builds them exactly once and the store only
// ever inserts, replaces wholesale, or deletes everything.
type HistoryRecord struct {
	ID          int64   `json:"id"`
	PeriodStart int64   `json:"period_start"` // unix seconds of the period's first instant
	UsedGrams   float64 `json:"used_grams"`
	GoalGrams   float64 `json:"goal_grams"`
}

// StartTime returns the period start in the device's current local zone.
// Legacy records carry no period_start; their date is recovered from the
// packed id instead.
func (r HistoryRecord) StartTime() time.Time {
	if r.PeriodStart > 0 {
		return time.Unix(r.PeriodStart, 0).Local()
	}
	if year, month, day, ok := decodeLegacyID(r.ID); ok {
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	}
	return time.Time{}
}

// DateLabel is the long display form, e.g. "January 02, 2006".
func (r HistoryRecord) DateLabel() string {
	t := r.StartTime()
	if t.IsZero() {
		return "unknown date"
	}
	return t.Format("January 02, 2006")
}

// ShortLabel is the compact display form, e.g. "Jan 02".
func (r HistoryRecord) ShortLabel() string {
	t := r.StartTime()
	if t.IsZero() {
		return "—"
	}
	return t.Format("Jan 02")
}

// MonthLabel is the month display form, e.g. "January".
func (r HistoryRecord) MonthLabel() string {
	t := r.StartTime()
	if t.IsZero() {
		return ""
	}
	return t.Format("January")
}

// Progress is used/goal clamped to a defined value when no goal is set.
func (r HistoryRecord) Progress() float64 {
	if r.GoalGrams <= 0 {
		return 0
	}
	return r.UsedGrams / r.GoalGrams
}

// decodeLegacyID unpacks a 0xYYYYMMDD id. Plausibility checks keep small
// monotonic ids from being misread as dates.
func decodeLegacyID(id int64) (year, month, day int, ok bool) {
	year = int((id & legacyYearMask) >> legacyYearShift)
	month = int((id & legacyMonthMask) >> legacyMonthShift)
	day = int(id & legacyDayMask)
	if year < 2000 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

// IsLegacyID reports whether the id uses the superseded packed-date form.
func IsLegacyID(id int64) bool {
	_, _, _, ok := decodeLegacyID(id)
	return ok
}

func (r HistoryRecord) String() string {
	return fmt.Sprintf("HistoryRecord(%d %s used=%.1fg goal=%.1fg)",
		r.ID, r.ShortLabel(), r.UsedGrams, r.GoalGrams)
}
