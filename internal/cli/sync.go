package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fatrack/internal/constants"
	"fatrack/internal/sync"
)

type SyncPushCmd struct {
	History  bool          `help:"Send the full history file instead of the counter snapshot."`
	PeerLock string        `help:"Lockfile of the listening process." type:"path"`
	Timeout  time.Duration `help:"How long to wait for the peer." default:"5s"`
}

func (c *SyncPushCmd) Run(ctx *Context) error {
	cnt, st, hs, err := ctx.openCounter()
	if err != nil {
		return err
	}
	defer st.Close()
	defer hs.Flush()

	deviceID, err := st.String(constants.KeyDeviceID, "")
	if err != nil {
		return err
	}

	peerLock := c.PeerLock
	if peerLock == "" {
		peerLock = ctx.LockfilePath()
	}
	transport := sync.NewHTTPTransport(peerLock)
	channel := sync.NewChannel(transport, cnt, hs, deviceID, ctx.Logger)

	sendCtx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	if c.History {
		hs.Flush()
		if err := channel.PushHistoryFileNow(sendCtx); err != nil {
			return fmt.Errorf("history push failed: %w", err)
		}
		fmt.Printf("Pushed history (%d records)\n", hs.Len())
		return nil
	}

	if err := channel.PushCountersNow(sendCtx); err != nil {
		return fmt.Errorf("counter push failed: %w", err)
	}
	snap := cnt.Snapshot()
	fmt.Printf("Pushed counters: %.1fg / %.1fg\n", snap.UsedGrams, snap.GoalGrams)
	return nil
}

type SyncListenCmd struct {
	Addr     string `help:"Listen address." default:"127.0.0.1:0"`
	Lockfile string `help:"Lockfile to advertise. Defaults to the data dir lockfile." type:"path"`
}

func (c *SyncListenCmd) Run(ctx *Context) error {
	cnt, st, hs, err := ctx.openCounter()
	if err != nil {
		return err
	}
	defer st.Close()
	defer hs.Flush()

	deviceID, err := st.String(constants.KeyDeviceID, "")
	if err != nil {
		return err
	}

	lockfile := c.Lockfile
	if lockfile == "" {
		lockfile = ctx.LockfilePath()
	}

	// A bare listener receives only; it still needs a channel to apply
	// incoming payloads to the counter and history store.
	transport := sync.NewHTTPTransport(filepath.Join(ctx.DataDir, "companion.lock"))
	channel := sync.NewChannel(transport, cnt, hs, deviceID, ctx.Logger)

	server := sync.NewServer(c.Addr, lockfile, channel, ctx.Logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	defer server.Close()

	fmt.Printf("Listening on port %d (lockfile %s)\n", server.Port(), lockfile)
	fmt.Println("Press Ctrl-C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}
