package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"fatrack/internal/cli"
	"fatrack/internal/logging"
)

var CLI struct {
	Version kong.VersionFlag
	DataDir string `help:"Data directory." type:"path" default:"~/.local/share/fatrack"`
	Legacy  string `help:"Legacy data directory checked for migration." type:"path" default:"~/.config/fatrack"`
	Verbose bool   `help:"Enable debug logging."`

	Init    cli.InitCmd    `cmd:"" help:"Initialize fatrack storage."`
	Status  cli.StatusCmd  `cmd:"" help:"Show today's fat count." default:"1"`
	Add     cli.AddCmd     `cmd:"" help:"Add grams of fat to today's count."`
	History cli.HistoryCmd `cmd:"" help:"Show past periods."`
	Serve   cli.ServeCmd   `cmd:"" help:"Run the reset timer and sync listener."`
	Widget  cli.WidgetCmd  `cmd:"" help:"Print a widget snapshot as JSON."`
	Doctor  cli.DoctorCmd  `cmd:"" help:"Run health checks."`
	Set     struct {
		Goal      cli.SetGoalCmd      `cmd:"" help:"Set the daily fat goal."`
		ResetTime cli.SetResetTimeCmd `cmd:"" name:"reset-time" help:"Set the daily reset time."`
	} `cmd:"" help:"Change settings."`
	Sync struct {
		Push   cli.SyncPushCmd   `cmd:"" help:"Push counters or history to a companion."`
		Listen cli.SyncListenCmd `cmd:"" help:"Receive pushes from a companion."`
	} `cmd:"" help:"Companion sync."`
	Backup struct {
		Create  cli.BackupCreateCmd  `cmd:"" help:"Create a backup."`
		List    cli.BackupListCmd    `cmd:"" help:"List backups."`
		Restore cli.BackupRestoreCmd `cmd:"" help:"Restore a backup."`
	} `cmd:"" help:"Manage backups."`
	Feedback cli.FeedbackCmd `cmd:"" help:"Send feedback by mail."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("fatrack"),
		kong.Description("Daily dietary fat counter with reset scheduling and companion sync"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.3.0"},
	)

	var logger logging.Logger
	if CLI.Verbose {
		logger = logging.NewVerboseLogger()
	} else {
		logger = logging.NewDefaultLogger()
	}

	appCtx := &cli.Context{
		DataDir:   CLI.DataDir,
		LegacyDir: CLI.Legacy,
		Logger:    logger,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
