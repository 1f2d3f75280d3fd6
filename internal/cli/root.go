package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fatrack/internal/constants"
	"fatrack/internal/counter"
	"fatrack/internal/history"
	"fatrack/internal/logging"
	"fatrack/internal/settings"
)

// Context carries the resolved paths and logger into every command.
type Context struct {
	DataDir   string
	LegacyDir string
	Logger    logging.Logger
}

func (ctx *Context) SettingsPath() string {
	return filepath.Join(ctx.DataDir, constants.SettingsFileName)
}

func (ctx *Context) HistoryPath() string {
	return filepath.Join(ctx.DataDir, constants.HistoryFileName)
}

// LegacyHistoryPath is where releases before the shared data dir kept the
// history file. An empty legacy dir disables migration.
func (ctx *Context) LegacyHistoryPath() string {
	if ctx.LegacyDir == "" {
		return ""
	}
	return filepath.Join(ctx.LegacyDir, "history.data")
}

func (ctx *Context) LockfilePath() string {
	return filepath.Join(ctx.DataDir, constants.LockfileName)
}

func (ctx *Context) openSettings() (*settings.Store, error) {
	if err := os.MkdirAll(ctx.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return settings.Open(ctx.SettingsPath())
}

func (ctx *Context) openHistory() (*history.Store, error) {
	store := history.NewStore(ctx.HistoryPath(), ctx.LegacyHistoryPath(), ctx.Logger)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// openCounter opens both stores and starts a counter with the history store
// as its archive delegate. Starting may archive an elapsed period, which is
// the correct behavior for any process picking up the persisted state.
func (ctx *Context) openCounter() (*counter.Counter, *settings.Store, *history.Store, error) {
	st, err := ctx.openSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	hs, err := ctx.openHistory()
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	c := counter.New(st, ctx.Logger)
	c.Start(hs)
	return c, st, hs, nil
}

// parseTimeOfDay parses "HH:MM" into its components.
func parseTimeOfDay(timeStr string) (hour, minute int, err error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %q", timeStr)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q: %w", timeStr, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q: %w", timeStr, err)
	}
	return hour, minute, nil
}

func formatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
