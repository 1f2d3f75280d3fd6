// Package validation checks history records against the invariants the
// rest of the system assumes: unique ids, non-negative grams, and sane
// period start times.
package validation

import (
	"fmt"

	"fatrack/internal/models"
)

// Issue describes one validation finding.
type Issue struct {
	RecordID int64
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("record %d: %s", i.RecordID, i.Message)
}

// CheckRecords validates a history slice and returns every issue found.
// An empty result means the history is consistent.
func CheckRecords(records []models.HistoryRecord) []Issue {
	var issues []Issue
	seen := make(map[int64]bool, len(records))

	for _, rec := range records {
		if seen[rec.ID] {
			issues = append(issues, Issue{rec.ID, "duplicate id"})
		}
		seen[rec.ID] = true

		if rec.UsedGrams < 0 {
			issues = append(issues, Issue{rec.ID, fmt.Sprintf("negative used grams: %g", rec.UsedGrams)})
		}
		if rec.GoalGrams < 0 {
			issues = append(issues, Issue{rec.ID, fmt.Sprintf("negative goal grams: %g", rec.GoalGrams)})
		}
		if rec.PeriodStart == 0 && !models.IsLegacyID(rec.ID) {
			issues = append(issues, Issue{rec.ID, "missing period start and id is not a legacy date"})
		}
		if rec.PeriodStart < 0 {
			issues = append(issues, Issue{rec.ID, fmt.Sprintf("negative period start: %d", rec.PeriodStart)})
		}
	}

	return issues
}
