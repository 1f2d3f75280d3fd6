package cli

import "fmt"

type AddCmd struct {
	Grams float64 `arg:"" help:"Grams of fat to add to today's count. Negative values subtract."`
}

func (c *AddCmd) Run(ctx *Context) error {
	counter, st, hs, err := ctx.openCounter()
	if err != nil {
		return err
	}
	defer st.Close()
	defer hs.Flush()

	counter.AddUsedGrams(c.Grams)

	snap := counter.Snapshot()
	fmt.Printf("Today: %.1fg / %.1fg\n", snap.UsedGrams, snap.GoalGrams)
	return nil
}
