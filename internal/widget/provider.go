// Package widget is the read-only surface for external rendering hosts (a
// home-screen widget, a watch complication). The host enforces a hard
// wall-clock budget, so a snapshot always completes: with loaded state when
// the disk cooperates, with placeholder values when it does not.
package widget

import (
	"context"

	"fatrack/internal/constants"
	"fatrack/internal/history"
	"fatrack/internal/logging"
	"fatrack/internal/models"
	"fatrack/internal/settings"
)

// DefaultRecent is how many archived periods a snapshot carries.
const DefaultRecent = 7

// Snapshot is everything a rendering surface needs: the live counters, the
// instant the surface should schedule its own refresh for, and recent
// history.
type Snapshot struct {
	UsedGrams   float64                `json:"used_grams"`
	GoalGrams   float64                `json:"goal_grams"`
	NextReset   int64                  `json:"next_reset"`
	Recent      []models.HistoryRecord `json:"recent"`
	Placeholder bool                   `json:"placeholder,omitempty"`
}

// Progress is used/goal, 0 when no goal is set.
func (s Snapshot) Progress() float64 {
	if s.GoalGrams <= 0 {
		return 0
	}
	return s.UsedGrams / s.GoalGrams
}

// Placeholder is the best-available result when state cannot be loaded in
// time.
func Placeholder() Snapshot {
	return Snapshot{
		GoalGrams:   constants.DefaultGoalGrams,
		Placeholder: true,
	}
}

// Provider loads snapshots cold from the shared settings store and history
// file. It holds no open handles between calls: widget processes are short
// lived and may race the main app, which is why reads go to the shared
// locations rather than in-memory state.
type Provider struct {
	settingsPath string
	historyPath  string
	recent       int
	logger       logging.Logger
}

func NewProvider(settingsPath, historyPath string, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Provider{
		settingsPath: settingsPath,
		historyPath:  historyPath,
		recent:       DefaultRecent,
		logger:       logger,
	}
}

// SetRecent overrides how many recent periods snapshots include.
func (p *Provider) SetRecent(n int) {
	if n > 0 {
		p.recent = n
	}
}

// Snapshot loads state off the calling goroutine and returns whatever is
// ready when the context expires. It never returns an error: the fallback is
// the placeholder.
func (p *Provider) Snapshot(ctx context.Context) Snapshot {
	done := make(chan Snapshot, 1)
	go func() { done <- p.loadCold() }()

	select {
	case snap := <-done:
		return snap
	case <-ctx.Done():
		p.logger.Warn("widget snapshot timed out, serving placeholder")
		return Placeholder()
	}
}

// SnapshotWithinBudget applies the default host budget.
func (p *Provider) SnapshotWithinBudget() Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), constants.WidgetSnapshotBudget)
	defer cancel()
	return p.Snapshot(ctx)
}

func (p *Provider) loadCold() Snapshot {
	snap := Snapshot{GoalGrams: constants.DefaultGoalGrams}

	store, err := settings.Open(p.settingsPath)
	if err != nil {
		p.logger.Warn("widget could not open settings", "error", err)
	} else {
		defer store.Close()
		if v, err := store.Float(constants.KeyUsedFat, 0); err == nil {
			snap.UsedGrams = v
		}
		if v, err := store.Float(constants.KeyTotalFat, constants.DefaultGoalGrams); err == nil {
			snap.GoalGrams = v
		}
		if v, err := store.Int64(constants.KeyNextReset, 0); err == nil {
			snap.NextReset = v
		}
	}

	hist := history.NewStore(p.historyPath, "", p.logger)
	if err := hist.Load(); err != nil {
		p.logger.Warn("widget could not load history", "error", err)
	} else {
		snap.Recent = hist.Recent(p.recent)
	}
	return snap
}
