// Package sync mirrors counter and history changes to a paired companion
// device. Two push-only message types exist: a small counter snapshot
// (latest-wins) and a whole-file history transfer. There is no retry queue
// and no ordering guarantee between the two.
package sync

import (
	"context"
	stdsync "sync"
	"sync/atomic"

	"github.com/bep/debounce"

	"fatrack/internal/constants"
	"fatrack/internal/counter"
	"fatrack/internal/history"
	"fatrack/internal/logging"
	"fatrack/internal/models"
)

// Transport moves the two message types to the companion. Implementations
// are best-effort: an unreachable companion is an error the channel drops
// silently.
type Transport interface {
	SendCounters(ctx context.Context, payload []byte) error
	SendHistoryFile(ctx context.Context, path string) error
}

// Channel wires a counter and history store to a transport.
type Channel struct {
	transport Transport
	counter   *counter.Counter
	store     *history.Store
	logger    logging.Logger
	deviceID  string

	debounced func(func())

	mu         stdsync.Mutex
	pending    counter.Snapshot
	cancelPush context.CancelFunc

	applying atomic.Bool
}

func NewChannel(transport Transport, c *counter.Counter, store *history.Store, deviceID string, logger logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Channel{
		transport: transport,
		counter:   c,
		store:     store,
		logger:    logger,
		deviceID:  deviceID,
		debounced: debounce.New(constants.PushDebounce),
	}
}

// Attach subscribes the channel to counter and store changes so every local
// mutation is mirrored out.
func (ch *Channel) Attach() {
	ch.counter.Subscribe(func(snap counter.Snapshot) {
		ch.PushCounters(snap)
	})
	ch.store.OnAppend(func(models.HistoryRecord) {
		ch.store.Flush()
		ch.PushHistoryFile()
	})
}

// PushCounters schedules a debounced, fire-and-forget transmission of the
// snapshot. Rapid edits within the quiet period collapse to one send of the
// final settled value; a still-in-flight older send is cancelled and
// replaced, never queued behind.
func (ch *Channel) PushCounters(snap counter.Snapshot) {
	if ch.applying.Load() {
		// Change originated from the companion; echoing it back would ping-pong.
		return
	}
	ch.mu.Lock()
	ch.pending = snap
	ch.mu.Unlock()
	ch.debounced(ch.transmitCounters)
}

func (ch *Channel) transmitCounters() {
	ch.mu.Lock()
	if ch.cancelPush != nil {
		ch.cancelPush()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch.cancelPush = cancel
	snap := ch.pending
	ch.mu.Unlock()

	payload, err := encodeCounters(snap, ch.deviceID)
	if err != nil {
		ch.logger.Error("failed to encode counter payload", "error", err)
		return
	}
	go func() {
		if err := ch.transport.SendCounters(ctx, payload); err != nil {
			ch.logger.Debug("counter push dropped", "error", err)
		}
	}()
}

// PushCountersNow transmits the current snapshot synchronously, bypassing
// the debounce. Used by the one-shot CLI push.
func (ch *Channel) PushCountersNow(ctx context.Context) error {
	payload, err := encodeCounters(ch.counter.Snapshot(), ch.deviceID)
	if err != nil {
		return err
	}
	return ch.transport.SendCounters(ctx, payload)
}

// PushHistoryFile transmits the whole persisted history file, fire-and-forget.
func (ch *Channel) PushHistoryFile() {
	go func() {
		if err := ch.transport.SendHistoryFile(context.Background(), ch.store.Path()); err != nil {
			ch.logger.Debug("history push dropped", "error", err)
		}
	}()
}

// PushHistoryFileNow transmits the history file synchronously.
func (ch *Channel) PushHistoryFileNow(ctx context.Context) error {
	return ch.transport.SendHistoryFile(ctx, ch.store.Path())
}

// HandleCounters applies an incoming counter snapshot. Fields are applied
// individually; a malformed payload is ignored without error.
func (ch *Channel) HandleCounters(data []byte) {
	ch.applying.Store(true)
	defer ch.applying.Store(false)

	if !applyCounters(ch.counter, data) {
		ch.logger.Debug("ignored counter payload with no usable fields")
		return
	}
	ch.logger.Info("applied companion counter snapshot")
}

// HandleHistoryFile replaces the local history with a received transfer
// staged at src. The swap is atomic; the store reloads afterwards.
func (ch *Channel) HandleHistoryFile(src string) {
	if err := ch.store.ReplaceFile(src); err != nil {
		ch.logger.Warn("dropped received history transfer", "error", err)
		return
	}
	ch.logger.Info("applied companion history transfer", "count", ch.store.Len())
}
