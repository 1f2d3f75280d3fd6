package widget

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fatrack/internal/constants"
	"fatrack/internal/history"
	"fatrack/internal/logging"
	"fatrack/internal/settings"
)

func TestSnapshot_ColdStateYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(filepath.Join(dir, "settings.db"), filepath.Join(dir, "history.json"), logging.NewNopLogger())

	snap := p.Snapshot(context.Background())

	require.False(t, snap.Placeholder)
	require.Equal(t, 0.0, snap.UsedGrams)
	require.Equal(t, constants.DefaultGoalGrams, snap.GoalGrams)
	require.Empty(t, snap.Recent)
}

func TestSnapshot_ReadsSharedState(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "settings.db")
	historyPath := filepath.Join(dir, "history.json")

	store, err := settings.Open(settingsPath)
	require.NoError(t, err)
	require.NoError(t, store.SetFloat(constants.KeyUsedFat, 28))
	require.NoError(t, store.SetFloat(constants.KeyTotalFat, 45))
	require.NoError(t, store.SetInt64(constants.KeyNextReset, 1765000000))
	require.NoError(t, store.Close())

	hist := history.NewStore(historyPath, "", logging.NewNopLogger())
	require.NoError(t, hist.Load())
	for i := 0; i < 10; i++ {
		hist.NewRecordArchived(int64(i*1000), float64(i), 45)
	}
	hist.Flush()

	p := NewProvider(settingsPath, historyPath, logging.NewNopLogger())
	snap := p.Snapshot(context.Background())

	require.Equal(t, 28.0, snap.UsedGrams)
	require.Equal(t, 45.0, snap.GoalGrams)
	require.Equal(t, int64(1765000000), snap.NextReset)
	require.Len(t, snap.Recent, DefaultRecent, "recent history is capped")
	require.InDelta(t, 0.622, snap.Progress(), 0.001)
}

func TestSnapshot_ExpiredBudgetServesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	p := NewProvider(filepath.Join(dir, "settings.db"), filepath.Join(dir, "history.json"), logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := p.Snapshot(ctx)

	require.True(t, snap.Placeholder)
	require.Equal(t, constants.DefaultGoalGrams, snap.GoalGrams)
	require.Equal(t, 0.0, snap.UsedGrams)
}

func TestRefreshScheduler_CoalescesHints(t *testing.T) {
	var fired atomic.Int32
	r := NewRefreshScheduler(func() { fired.Add(1) })

	r.Request()
	r.Request()
	r.Request()

	require.Eventually(t, func() bool { return fired.Load() == 1 },
		3*time.Second, 25*time.Millisecond)

	time.Sleep(700 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}
