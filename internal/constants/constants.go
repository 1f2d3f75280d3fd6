package constants

import "time"

const (
	// DefaultGoalGrams is the daily fat goal used until the user sets one.
	// Goal is conventionally kept >= 1 so derived progress stays defined.
	DefaultGoalGrams = 50.0
	// DefaultResetHour and DefaultResetMinute place the daily rollover at
	// midnight local time.
	DefaultResetHour   = 0
	DefaultResetMinute = 0

	// PushDebounce is the quiet period before a counter snapshot is sent to
	// the companion. Rapid edits within this window collapse to one push.
	PushDebounce = 500 * time.Millisecond
	// WidgetRefreshDebounce is the quiet period before the widget surface is
	// asked to refresh after a counter change.
	WidgetRefreshDebounce = 500 * time.Millisecond
	// WidgetSnapshotBudget bounds how long a widget snapshot may spend
	// loading cold state before falling back to placeholder values.
	WidgetSnapshotBudget = 2 * time.Second

	// HistoryFileName is the shared history file, a JSON array of records.
	HistoryFileName = "history.json"
	// SettingsFileName is the shared settings database.
	SettingsFileName = "settings.db"
	// LockfileName is written by a listening sync server so a companion
	// process on the same host can find it.
	LockfileName = "fatrack.lock"

	// SupportEmail receives feedback/bug reports.
	SupportEmail = "support@fatrack.dev"
)

// Settings keys shared between the app's own processes (CLI, serve, widget).
// The used_fat/total_fat names are kept for compatibility with stores written
// by earlier releases.
const (
	KeyUsedFat          = "used_fat"
	KeyTotalFat         = "total_fat"
	KeyResetHour        = "reset_hour"
	KeyResetMinute      = "reset_minute"
	KeyNextReset        = "next_reset"
	KeyFirstRunComplete = "first_run_complete"
	KeyDeviceID         = "device_id"
)
