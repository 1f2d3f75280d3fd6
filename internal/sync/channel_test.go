package sync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fatrack/internal/constants"
	"fatrack/internal/counter"
	"fatrack/internal/history"
	"fatrack/internal/logging"
	"fatrack/internal/models"
	"fatrack/internal/settings"
)

type memTransport struct {
	mu       stdsync.Mutex
	counters [][]byte
	files    [][]byte
}

func (m *memTransport) SendCounters(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, payload)
	return nil
}

func (m *memTransport) SendHistoryFile(_ context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, data)
	return nil
}

func (m *memTransport) counterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

func (m *memTransport) lastCounters() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[len(m.counters)-1]
}

func (m *memTransport) fileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func newTestChannel(t *testing.T) (*Channel, *memTransport, *counter.Counter, *history.Store) {
	t.Helper()
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	c := counter.New(nil, logging.NewNopLogger(),
		counter.WithClock(func() time.Time { return fixed }),
		counter.WithLocation(time.UTC))
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), "", logging.NewNopLogger())
	require.NoError(t, store.Load())
	transport := &memTransport{}
	ch := NewChannel(transport, c, store, "device-a", logging.NewNopLogger())
	return ch, transport, c, store
}

func TestPushCounters_RapidEditsCollapseToOnePush(t *testing.T) {
	ch, transport, c, _ := newTestChannel(t)
	ch.Attach()

	// Three entries of 5g within the quiet period.
	c.AddUsedGrams(5)
	c.AddUsedGrams(5)
	c.AddUsedGrams(5)

	require.Eventually(t, func() bool { return transport.counterCount() == 1 },
		3*time.Second, 25*time.Millisecond)

	var payload counterPayload
	require.NoError(t, json.Unmarshal(transport.lastCounters(), &payload))
	require.Equal(t, 15.0, payload.UsedGrams, "push carries the final summed value")
	require.Equal(t, "device-a", payload.DeviceID)

	// No trailing extra pushes after the debounce settles.
	time.Sleep(700 * time.Millisecond)
	require.Equal(t, 1, transport.counterCount())
}

func TestAppend_TriggersHistoryFilePush(t *testing.T) {
	ch, transport, _, store := newTestChannel(t)
	ch.Attach()

	store.NewRecordArchived(1000, 30, 45)

	require.Eventually(t, func() bool { return transport.fileCount() == 1 },
		3*time.Second, 25*time.Millisecond)

	var sent []models.HistoryRecord
	transport.mu.Lock()
	data := transport.files[0]
	transport.mu.Unlock()
	require.NoError(t, json.Unmarshal(data, &sent))
	require.Len(t, sent, 1)
	require.Equal(t, 30.0, sent[0].UsedGrams)
}

func TestAttachBeforeStart_MirrorsStartupArchive(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	st, err := settings.Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	defer st.Close()
	// The persisted rollover elapsed while no process was running.
	require.NoError(t, st.SetInt64(constants.KeyNextReset, fixed.Add(-time.Hour).Unix()))
	require.NoError(t, st.SetFloat(constants.KeyUsedFat, 33))

	c := counter.New(st, logging.NewNopLogger(),
		counter.WithClock(func() time.Time { return fixed }),
		counter.WithLocation(time.UTC))
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), "", logging.NewNopLogger())
	require.NoError(t, store.Load())
	transport := &memTransport{}
	ch := NewChannel(transport, c, store, "device-a", logging.NewNopLogger())

	ch.Attach()
	c.Start(store)

	// The catch-up archival is mirrored: history file push plus a debounced
	// counter push with the zeroed value.
	require.Eventually(t, func() bool { return transport.fileCount() == 1 },
		3*time.Second, 25*time.Millisecond)
	require.Eventually(t, func() bool { return transport.counterCount() == 1 },
		3*time.Second, 25*time.Millisecond)

	var payload counterPayload
	require.NoError(t, json.Unmarshal(transport.lastCounters(), &payload))
	require.Equal(t, 0.0, payload.UsedGrams)
	require.Equal(t, 1, store.Len())
	require.Equal(t, 33.0, store.Records()[0].UsedGrams)
}

func TestHandleCounters_AppliesFieldsIndividually(t *testing.T) {
	ch, _, c, _ := newTestChannel(t)
	c.SetGoalGrams(45)

	// goal_grams is malformed; everything else decodes.
	ch.HandleCounters([]byte(`{
		"used_grams": 12.5,
		"goal_grams": "oops",
		"reset_hour": 7,
		"reset_minute": 15
	}`))

	snap := c.Snapshot()
	require.Equal(t, 12.5, snap.UsedGrams)
	require.Equal(t, 45.0, snap.GoalGrams, "malformed field is skipped, not fatal")
	require.Equal(t, 7, snap.ResetHour)
	require.Equal(t, 15, snap.ResetMinute)
}

func TestHandleCounters_MalformedPayloadIsIgnored(t *testing.T) {
	ch, _, c, _ := newTestChannel(t)
	c.SetUsedGrams(9)

	ch.HandleCounters([]byte(`not-json`))

	require.Equal(t, 9.0, c.Snapshot().UsedGrams)
}

func TestHandleCounters_AppliesNextReset(t *testing.T) {
	ch, _, c, _ := newTestChannel(t)

	ch.HandleCounters([]byte(`{"next_reset": 1765000000}`))

	require.Equal(t, int64(1765000000), c.Snapshot().NextReset)
}

func TestHandleCounters_DoesNotEchoBackToCompanion(t *testing.T) {
	ch, transport, _, _ := newTestChannel(t)
	ch.Attach()

	ch.HandleCounters([]byte(`{"used_grams": 20}`))

	time.Sleep(700 * time.Millisecond)
	require.Equal(t, 0, transport.counterCount(), "applying a received snapshot must not push it back")
}

func TestHandleHistoryFile_ReplacesLocalHistory(t *testing.T) {
	ch, _, _, store := newTestChannel(t)
	store.NewRecordArchived(100, 1, 45)
	store.Flush()

	incoming := []models.HistoryRecord{
		{ID: 3, PeriodStart: 300, UsedGrams: 3, GoalGrams: 45},
		{ID: 2, PeriodStart: 200, UsedGrams: 2, GoalGrams: 45},
	}
	data, err := json.Marshal(incoming)
	require.NoError(t, err)
	src := filepath.Join(t.TempDir(), "incoming.json")
	require.NoError(t, os.WriteFile(src, data, 0600))

	ch.HandleHistoryFile(src)

	require.Equal(t, 2, store.Len())
	require.Equal(t, int64(3), store.Records()[0].ID)
}
