package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"fatrack/internal/widget"
)

type WidgetCmd struct {
	Recent int `help:"Number of recent periods to include." default:"7"`
}

// Run prints the bounded-time widget snapshot as JSON. A slow or missing
// data dir yields placeholder values rather than an error so a rendering
// host always has something to draw.
func (c *WidgetCmd) Run(ctx *Context) error {
	provider := widget.NewProvider(ctx.SettingsPath(), ctx.HistoryPath(), ctx.Logger)
	provider.SetRecent(c.Recent)

	snap := provider.SnapshotWithinBudget()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
