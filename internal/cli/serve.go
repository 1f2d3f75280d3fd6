package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fatrack/internal/constants"
	"fatrack/internal/counter"
	"fatrack/internal/models"
	"fatrack/internal/sync"
	"fatrack/internal/widget"
)

type ServeCmd struct {
	Addr     string `help:"Listen address for the sync server." default:"127.0.0.1:0"`
	PeerLock string `help:"Lockfile of a companion process to push updates to." type:"path"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	st, err := ctx.openSettings()
	if err != nil {
		return err
	}
	defer st.Close()

	hs, err := ctx.openHistory()
	if err != nil {
		return err
	}
	defer hs.Flush()

	deviceID, err := st.String(constants.KeyDeviceID, "")
	if err != nil {
		return err
	}

	peerLock := c.PeerLock
	if peerLock == "" {
		peerLock = filepath.Join(ctx.DataDir, "companion.lock")
	}

	// Wire the channel and widget refresh before starting the counter: the
	// startup catch-up may archive an elapsed period, and that archival must
	// be mirrored and re-snapshotted like any other.
	cnt := counter.New(st, ctx.Logger)
	transport := sync.NewHTTPTransport(peerLock)
	channel := sync.NewChannel(transport, cnt, hs, deviceID, ctx.Logger)
	channel.Attach()

	// The widget surface reads cold state; a debounced refresh re-snapshots
	// it after counter changes settle.
	provider := widget.NewProvider(ctx.SettingsPath(), ctx.HistoryPath(), ctx.Logger)
	widgetPath := filepath.Join(ctx.DataDir, "widget.json")
	refresher := widget.NewRefreshScheduler(func() {
		snap := provider.SnapshotWithinBudget()
		data, err := json.Marshal(snap)
		if err != nil {
			return
		}
		if err := os.WriteFile(widgetPath, data, 0600); err != nil {
			ctx.Logger.Warn("widget refresh failed", "error", err)
		}
	})
	cnt.Subscribe(func(counter.Snapshot) { refresher.Request() })
	hs.OnReplace(func([]models.HistoryRecord) { refresher.Request() })

	cnt.Start(hs)
	refresher.Request()

	server := sync.NewServer(c.Addr, ctx.LockfilePath(), channel, ctx.Logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start sync server: %w", err)
	}
	defer server.Close()

	// Pairing: the first serve pushes the whole history so a companion
	// starting from nothing converges immediately.
	firstRunDone, err := st.Bool(constants.KeyFirstRunComplete, false)
	if err == nil && !firstRunDone {
		if err := channel.PushHistoryFileNow(context.Background()); err != nil {
			ctx.Logger.Debug("first-run history push skipped", "error", err)
		}
		if err := st.SetBool(constants.KeyFirstRunComplete, true); err != nil {
			ctx.Logger.Warn("failed to record first run", "error", err)
		}
	}

	fmt.Printf("fatrack serving on port %d (lockfile %s)\n", server.Port(), ctx.LockfilePath())
	fmt.Println("Press Ctrl-C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down.")
	return nil
}
