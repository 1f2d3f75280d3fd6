package sync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"fatrack/internal/counter"
	"fatrack/internal/history"
	"fatrack/internal/logging"
	"fatrack/internal/models"
)

type fakeProcess struct{ pid int }

func (p *fakeProcess) Pid() int           { return p.pid }
func (p *fakeProcess) PPid() int          { return 0 }
func (p *fakeProcess) Executable() string { return "fatrack" }

// trustTestProcess makes lockfile validation accept the test binary.
func trustTestProcess(t *testing.T) {
	t.Helper()
	orig := findProcessFunc
	findProcessFunc = func(pid int) (ps.Process, error) {
		return &fakeProcess{pid: pid}, nil
	}
	t.Cleanup(func() { findProcessFunc = orig })
}

func newDevice(t *testing.T, lockfile string) (*Channel, *counter.Counter, *history.Store) {
	t.Helper()
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	c := counter.New(nil, logging.NewNopLogger(),
		counter.WithClock(func() time.Time { return fixed }),
		counter.WithLocation(time.UTC))
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), "", logging.NewNopLogger())
	require.NoError(t, store.Load())
	ch := NewChannel(NewHTTPTransport(lockfile), c, store, "device", logging.NewNopLogger())
	return ch, c, store
}

func TestServer_RoundTripCountersAndHistory(t *testing.T) {
	trustTestProcess(t)
	lockfile := filepath.Join(t.TempDir(), "fatrack.lock")

	// Device B listens.
	chB, counterB, storeB := newDevice(t, lockfile)
	server := NewServer("127.0.0.1:0", lockfile, chB, logging.NewNopLogger())
	require.NoError(t, server.Start())
	defer server.Close()

	// Device A pushes through the lockfile-discovered transport.
	chA, counterA, storeA := newDevice(t, lockfile)
	counterA.SetUsedGrams(27.5)
	counterA.SetGoalGrams(45)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, chA.PushCountersNow(ctx))

	require.Eventually(t, func() bool { return counterB.Snapshot().UsedGrams == 27.5 },
		2*time.Second, 10*time.Millisecond)
	require.Equal(t, 45.0, counterB.Snapshot().GoalGrams)

	// Whole-file history transfer.
	storeA.NewRecordArchived(1000, 30, 45)
	storeA.Flush()
	require.NoError(t, chA.PushHistoryFileNow(ctx))

	require.Eventually(t, func() bool { return storeB.Len() == 1 },
		2*time.Second, 10*time.Millisecond)
	require.Equal(t, 30.0, storeB.Records()[0].UsedGrams)

	// The received file landed durably at B's shared location.
	data, err := os.ReadFile(storeB.Path())
	require.NoError(t, err)
	var persisted []models.HistoryRecord
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 1)
}

func TestServer_WritesAndRemovesLockfile(t *testing.T) {
	trustTestProcess(t)
	lockfile := filepath.Join(t.TempDir(), "fatrack.lock")

	ch, _, _ := newDevice(t, lockfile)
	server := NewServer("127.0.0.1:0", lockfile, ch, logging.NewNopLogger())
	require.NoError(t, server.Start())

	content, err := os.ReadFile(lockfile)
	require.NoError(t, err)
	require.Regexp(t, `^\d+\|\d+\|\S+$`, string(content))

	require.NoError(t, server.Close())
	_, err = os.Stat(lockfile)
	require.True(t, os.IsNotExist(err))
}

func TestTransport_NoListenerMeansDroppedPush(t *testing.T) {
	trustTestProcess(t)
	lockfile := filepath.Join(t.TempDir(), "fatrack.lock")

	ch, c, _ := newDevice(t, lockfile)
	c.SetUsedGrams(5)

	// No lockfile: the companion is unreachable and the push fails fast.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, ch.PushCountersNow(ctx))
}

func TestTransport_RejectsMalformedLockfile(t *testing.T) {
	trustTestProcess(t)
	lockfile := filepath.Join(t.TempDir(), "fatrack.lock")
	require.NoError(t, os.WriteFile(lockfile, []byte("garbage"), 0600))

	transport := NewHTTPTransport(lockfile)
	_, _, err := transport.peer()
	require.Error(t, err)
}

func TestServer_RejectsWrongSecret(t *testing.T) {
	trustTestProcess(t)
	dir := t.TempDir()
	lockfile := filepath.Join(dir, "fatrack.lock")

	chB, counterB, _ := newDevice(t, lockfile)
	server := NewServer("127.0.0.1:0", lockfile, chB, logging.NewNopLogger())
	require.NoError(t, server.Start())
	defer server.Close()

	// Rewrite the lockfile with a wrong secret; the push is refused and the
	// listener's state is untouched.
	badLock := filepath.Join(dir, "bad.lock")
	content, err := os.ReadFile(lockfile)
	require.NoError(t, err)
	parts := string(content)
	require.NoError(t, os.WriteFile(badLock, []byte(parts[:len(parts)-1]+"x"), 0600))

	chA, counterA, _ := newDevice(t, badLock)
	counterA.SetUsedGrams(99)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.Error(t, chA.PushCountersNow(ctx))
	require.Equal(t, 0.0, counterB.Snapshot().UsedGrams)
}
