package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fatrack/internal/models"
)

func TestCheckRecordsClean(t *testing.T) {
	records := []models.HistoryRecord{
		{ID: 2, PeriodStart: 1700086400, UsedGrams: 30, GoalGrams: 45},
		{ID: 1, PeriodStart: 1700000000, UsedGrams: 12.5, GoalGrams: 45},
	}
	require.Empty(t, CheckRecords(records))
}

func TestCheckRecordsFindsDuplicateIDs(t *testing.T) {
	records := []models.HistoryRecord{
		{ID: 1, PeriodStart: 1700000000, UsedGrams: 1, GoalGrams: 45},
		{ID: 1, PeriodStart: 1700086400, UsedGrams: 2, GoalGrams: 45},
	}
	issues := CheckRecords(records)
	require.Len(t, issues, 1)
	require.Contains(t, issues[0].String(), "duplicate id")
}

func TestCheckRecordsFindsNegativeGrams(t *testing.T) {
	records := []models.HistoryRecord{
		{ID: 1, PeriodStart: 1700000000, UsedGrams: -3, GoalGrams: -45},
	}
	issues := CheckRecords(records)
	require.Len(t, issues, 2)
}

func TestCheckRecordsAcceptsLegacyDateIDs(t *testing.T) {
	// Packed date id with no period start is how migrated records arrive.
	records := []models.HistoryRecord{
		{ID: 2023<<16 | 6<<8 | 14, UsedGrams: 20, GoalGrams: 45},
	}
	require.Empty(t, CheckRecords(records))
}

func TestCheckRecordsMissingPeriodStart(t *testing.T) {
	records := []models.HistoryRecord{
		{ID: 3, UsedGrams: 20, GoalGrams: 45},
	}
	issues := CheckRecords(records)
	require.Len(t, issues, 1)
	require.Contains(t, issues[0].Message, "missing period start")
}
