package cli

import (
	"fmt"

	"github.com/google/uuid"

	"fatrack/internal/constants"
)

type InitCmd struct{}

func (c *InitCmd) Run(ctx *Context) error {
	st, err := ctx.openSettings()
	if err != nil {
		return err
	}
	defer st.Close()

	// Seed defaults only for keys that have never been written so re-running
	// init never clobbers an existing setup.
	goal, err := st.Float(constants.KeyTotalFat, 0)
	if err != nil {
		return err
	}
	if goal <= 0 {
		if err := st.SetFloat(constants.KeyTotalFat, constants.DefaultGoalGrams); err != nil {
			return err
		}
		if err := st.SetInt(constants.KeyResetHour, constants.DefaultResetHour); err != nil {
			return err
		}
		if err := st.SetInt(constants.KeyResetMinute, constants.DefaultResetMinute); err != nil {
			return err
		}
	}

	deviceID, err := st.String(constants.KeyDeviceID, "")
	if err != nil {
		return err
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
		if err := st.SetString(constants.KeyDeviceID, deviceID); err != nil {
			return err
		}
	}

	// Loading creates the history file's directory and migrates a legacy
	// file when one exists.
	hs, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if err := hs.SaveNow(); err != nil {
		return err
	}

	fmt.Printf("Initialized fatrack storage at: %s\n", ctx.DataDir)
	fmt.Printf("  settings: %s\n", ctx.SettingsPath())
	fmt.Printf("  history:  %s (%d records)\n", ctx.HistoryPath(), hs.Len())
	return nil
}
