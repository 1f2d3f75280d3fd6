// Package history persists archived reset periods to a JSON file shared
// between the app's processes and its paired companion. The in-memory list is
// authoritative for the running process; durability is best-effort.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fatrack/internal/logging"
	"fatrack/internal/models"
)

// Store holds the ordered record list, newest first. Saves run on a
// background writer: at most one write is in flight and a save requested
// while one is running coalesces into a single follow-up write.
type Store struct {
	path   string
	legacy string
	logger logging.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	records []models.HistoryRecord
	saving  bool
	pending bool

	onAppend  func(models.HistoryRecord)
	onReplace func([]models.HistoryRecord)
}

// NewStore creates a store over the shared file at path. legacyPath names the
// superseded single-process location checked for migration on Load; empty
// disables the check.
func NewStore(path, legacyPath string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	s := &Store{path: path, legacy: legacyPath, logger: logger}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Path returns the shared history file location.
func (s *Store) Path() string {
	return s.path
}

// OnAppend registers the hook fired after a record is inserted. Used to
// mirror appends out through the sync channel.
func (s *Store) OnAppend(fn func(models.HistoryRecord)) {
	s.onAppend = fn
}

// OnReplace registers the hook fired after ReplaceAll.
func (s *Store) OnReplace(fn func([]models.HistoryRecord)) {
	s.onReplace = fn
}

// Load reads the shared file into memory. A missing file yields an empty
// history, not an error. When a legacy file exists and the shared one does
// not, it is migrated first; migration failure logs and falls back to empty.
func (s *Store) Load() error {
	if s.legacy != "" {
		s.migrateLegacy()
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.records = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	var records []models.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse history: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// migrateLegacy copies the legacy file to the shared location, then deletes
// the legacy file. Both steps are non-fatal.
func (s *Store) migrateLegacy() {
	if _, err := os.Stat(s.path); err == nil {
		return
	}
	data, err := os.ReadFile(s.legacy)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read legacy history", "path", s.legacy, "error", err)
		}
		return
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		s.logger.Warn("failed to migrate legacy history", "path", s.path, "error", err)
		return
	}
	if err := os.Remove(s.legacy); err != nil {
		s.logger.Warn("failed to remove legacy history", "path", s.legacy, "error", err)
		return
	}
	s.logger.Info("migrated legacy history", "from", s.legacy, "to", s.path)
}

// Records returns a copy of the list, newest first.
func (s *Store) Records() []models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HistoryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Recent returns up to n of the newest records.
func (s *Store) Recent(n int) []models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]models.HistoryRecord, n)
	copy(out, s.records[:n])
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// NewRecordArchived implements the counter's archival delegate. The record is
// inserted at the head with the next monotonic id and the full list is
// persisted in the background.
func (s *Store) NewRecordArchived(periodStart int64, usedGrams, goalGrams float64) {
	s.mu.Lock()
	record := models.HistoryRecord{
		ID:          s.nextIDLocked(),
		PeriodStart: periodStart,
		UsedGrams:   usedGrams,
		GoalGrams:   goalGrams,
	}
	s.records = append([]models.HistoryRecord{record}, s.records...)
	s.requestSaveLocked()
	s.mu.Unlock()

	s.logger.Info("archived reset period", "id", record.ID, "start", periodStart, "used", usedGrams)
	if s.onAppend != nil {
		s.onAppend(record)
	}
}

// nextIDLocked is maxID+1 so ids stay distinct and insertion-ordered even
// after a migration brings in legacy packed-date ids.
func (s *Store) nextIDLocked() int64 {
	var max int64 = -1
	for _, r := range s.records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// ReplaceAll swaps the in-memory list for one delivered by a sync transfer.
// The incoming file is already durable, so nothing is re-persisted.
func (s *Store) ReplaceAll(records []models.HistoryRecord) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.logger.Info("history replaced", "count", len(records))
	if s.onReplace != nil {
		s.onReplace(records)
	}
}

// requestSaveLocked schedules a background write. Callers hold s.mu.
func (s *Store) requestSaveLocked() {
	if s.saving {
		s.pending = true
		return
	}
	s.saving = true
	go s.saveLoop()
}

func (s *Store) saveLoop() {
	for {
		if err := s.writeSnapshot(); err != nil {
			s.logger.Error("failed to save history", "path", s.path, "error", err)
		}
		s.mu.Lock()
		if !s.pending {
			s.saving = false
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.mu.Unlock()
	}
}

func (s *Store) writeSnapshot() error {
	s.mu.Lock()
	records := make([]models.HistoryRecord, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize history: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// SaveNow persists the current list synchronously. Used by init and by the
// doctor; normal appends go through the background writer.
func (s *Store) SaveNow() error {
	return s.writeSnapshot()
}

// Flush blocks until no save is in flight.
func (s *Store) Flush() {
	s.mu.Lock()
	for s.saving {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// writeFileAtomic writes to a temp file in the destination directory and
// renames it into place so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReplaceFile atomically swaps the on-disk history file with the file at
// src (a received transfer), then reloads and replaces the in-memory list.
func (s *Store) ReplaceFile(src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read received history: %w", err)
	}
	var records []models.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("received history is malformed: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	os.Remove(src)
	s.ReplaceAll(records)
	return nil
}
