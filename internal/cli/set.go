package cli

import "fmt"

type SetGoalCmd struct {
	Grams float64 `arg:"" help:"Daily fat goal in grams."`
}

func (c *SetGoalCmd) Run(ctx *Context) error {
	if c.Grams <= 0 {
		return fmt.Errorf("goal must be positive, got %g", c.Grams)
	}

	counter, st, hs, err := ctx.openCounter()
	if err != nil {
		return err
	}
	defer st.Close()
	defer hs.Flush()

	counter.SetGoalGrams(c.Grams)
	fmt.Printf("Daily goal set to %.1fg\n", c.Grams)
	return nil
}

type SetResetTimeCmd struct {
	Time string `arg:"" help:"Daily reset time as HH:MM, e.g. 06:00."`
}

func (c *SetResetTimeCmd) Run(ctx *Context) error {
	hour, minute, err := parseTimeOfDay(c.Time)
	if err != nil {
		return err
	}

	counter, st, hs, err := ctx.openCounter()
	if err != nil {
		return err
	}
	defer st.Close()
	defer hs.Flush()

	if err := counter.SetResetTime(hour, minute); err != nil {
		return err
	}

	snap := counter.Snapshot()
	fmt.Printf("Reset time set to %s\n", formatClock(snap.ResetHour, snap.ResetMinute))
	return nil
}
