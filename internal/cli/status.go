package cli

import (
	"fmt"
	"time"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	counter, st, hs, err := ctx.openCounter()
	if err != nil {
		return err
	}
	defer st.Close()
	defer hs.Flush()

	snap := counter.Snapshot()
	progress := snap.Progress()

	fmt.Println(headerStyle.Render("Today"))
	fmt.Printf("  %s %s\n", renderBar(progress), formatGrams(snap.UsedGrams, snap.GoalGrams, progress))
	fmt.Printf("  %s %s\n", labelStyle.Render("resets at"), formatClock(snap.ResetHour, snap.ResetMinute))
	if snap.NextReset > 0 {
		next := time.Unix(snap.NextReset, 0).Local()
		fmt.Printf("  %s %s\n", labelStyle.Render("next reset"), next.Format("Mon Jan 02 15:04"))
	}
	return nil
}

func formatGrams(used, goal, progress float64) string {
	text := fmt.Sprintf("%.1fg / %.1fg (%.0f%%)", used, goal, progress*100)
	if progress > 1 {
		return overStyle.Render(text)
	}
	return okStyle.Render(text)
}
