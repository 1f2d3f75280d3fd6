package cli

import "fmt"

type HistoryCmd struct {
	Limit int `help:"Show at most this many recent periods." default:"14"`
}

func (c *HistoryCmd) Run(ctx *Context) error {
	hs, err := ctx.openHistory()
	if err != nil {
		return err
	}

	records := hs.Records()
	if len(records) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	if c.Limit > 0 && len(records) > c.Limit {
		records = records[:c.Limit]
	}

	fmt.Println(headerStyle.Render("History"))
	lastMonth := ""
	for _, rec := range records {
		if month := rec.MonthLabel(); month != lastMonth {
			fmt.Printf("%s\n", labelStyle.Render(month))
			lastMonth = month
		}
		progress := rec.Progress()
		fmt.Printf("  %s  %s %s\n",
			rec.ShortLabel(), renderBar(progress), formatGrams(rec.UsedGrams, rec.GoalGrams, progress))
	}
	return nil
}
