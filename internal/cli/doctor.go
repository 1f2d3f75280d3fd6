package cli

import (
	"fmt"
	"os"
	"time"

	"fatrack/internal/backup"
	"fatrack/internal/constants"
	"fatrack/internal/validation"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false

	// Check 1: settings DB reachable
	if err := cmd.checkSettings(ctx); err != nil {
		fmt.Printf("❌ Settings database: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Settings database: OK\n")
	}

	// Check 2: history file loads and its invariants hold
	if err := cmd.checkHistory(ctx); err != nil {
		fmt.Printf("❌ History file: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ History file: OK\n")
	}

	// Check 3: legacy file migrated
	if err := cmd.checkLegacyMigrated(ctx); err != nil {
		fmt.Printf("⚠ Legacy migration: WARNING\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Legacy migration: OK\n")
	}

	// Check 4: backups present (warning only)
	if err := cmd.checkBackupsPresent(ctx); err != nil {
		fmt.Printf("⚠ Backups present: WARNING\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Backups present: OK\n")
	}

	// Check 5: clock/timezone sanity
	if err := checkClockTimezone(); err != nil {
		fmt.Printf("❌ Clock/timezone: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Clock/timezone: OK\n")
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func (cmd *DoctorCmd) checkSettings(ctx *Context) error {
	st, err := ctx.openSettings()
	if err != nil {
		return fmt.Errorf("failed to open settings database: %w", err)
	}
	defer st.Close()

	if _, err := st.Float(constants.KeyTotalFat, 0); err != nil {
		return fmt.Errorf("failed to query settings: %w", err)
	}
	return nil
}

func (cmd *DoctorCmd) checkHistory(ctx *Context) error {
	hs, err := ctx.openHistory()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	issues := validation.CheckRecords(hs.Records())
	if len(issues) > 0 {
		return fmt.Errorf("history has %d invariant violation(s), first: %s", len(issues), issues[0])
	}
	return nil
}

func (cmd *DoctorCmd) checkLegacyMigrated(ctx *Context) error {
	legacy := ctx.LegacyHistoryPath()
	if legacy == "" {
		return nil
	}
	if _, err := os.Stat(legacy); err == nil {
		return fmt.Errorf("legacy history file still present at %s - run 'fatrack init' to migrate it", legacy)
	}
	return nil
}

func (cmd *DoctorCmd) checkBackupsPresent(ctx *Context) error {
	mgr := backup.NewManager(ctx.SettingsPath(), ctx.HistoryPath())
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'fatrack backup create'")
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()

	// Check if time is in a reasonable range (after 2020 and before 2100)
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}

	// Check if timezone is set
	_, offset := now.Zone()
	if offset == 0 && now.Location() == time.UTC {
		// This might be intentional, so just note it
		fmt.Printf("   Note: timezone is UTC\n")
	}

	return nil
}
