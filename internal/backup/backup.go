// Package backup keeps rotating point-in-time copies of the two durable
// artifacts: the shared settings database and the history file.
package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// MaxBackups is the maximum number of backups to keep
	MaxBackups = 14
	// BackupDirName is the name of the backup directory
	BackupDirName = "backups"
	// BackupPrefix is the prefix for backup snapshot directories
	BackupPrefix = "fatrack-"

	settingsName = "settings.db"
	historyName  = "history.json"
)

// BackupInfo describes one snapshot directory.
type BackupInfo struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager handles backup operations for a data directory.
type Manager struct {
	settingsPath string
	historyPath  string
	backupDir    string
}

// NewManager creates a backup manager next to the settings database.
func NewManager(settingsPath, historyPath string) *Manager {
	return &Manager{
		settingsPath: settingsPath,
		historyPath:  historyPath,
		backupDir:    filepath.Join(filepath.Dir(settingsPath), BackupDirName),
	}
}

// GetBackupDir returns the backup directory path.
func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

// CreateBackup writes a new timestamped snapshot and rotates old ones.
func (m *Manager) CreateBackup() (string, error) {
	return m.createBackup(false)
}

// createBackup writes a snapshot. skipRotation prevents recursion when a
// restore takes its safety backup.
func (m *Manager) createBackup(skipRotation bool) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	snapshotPath, err := m.newSnapshotDir()
	if err != nil {
		return "", err
	}

	wrote := false
	if _, err := os.Stat(m.settingsPath); err == nil {
		if err := backupSettings(m.settingsPath, filepath.Join(snapshotPath, settingsName)); err != nil {
			os.RemoveAll(snapshotPath)
			return "", fmt.Errorf("failed to back up settings: %w", err)
		}
		wrote = true
	}
	if _, err := os.Stat(m.historyPath); err == nil {
		if err := copyFile(m.historyPath, filepath.Join(snapshotPath, historyName)); err != nil {
			os.RemoveAll(snapshotPath)
			return "", fmt.Errorf("failed to back up history: %w", err)
		}
		wrote = true
	}
	if !wrote {
		os.RemoveAll(snapshotPath)
		return "", fmt.Errorf("nothing to back up: neither %s nor %s exists", m.settingsPath, m.historyPath)
	}

	if !skipRotation {
		if err := m.rotateBackups(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to rotate old backups: %v\n", err)
		}
	}

	return snapshotPath, nil
}

// newSnapshotDir generates a unique timestamped directory, adding seconds and
// a counter when snapshots collide within the same minute.
func (m *Manager) newSnapshotDir() (string, error) {
	timestamp := time.Now().Format("20060102-1504")
	path := filepath.Join(m.backupDir, BackupPrefix+timestamp)
	if _, err := os.Stat(path); err == nil {
		timestamp = time.Now().Format("20060102-150405")
		path = filepath.Join(m.backupDir, BackupPrefix+timestamp)
		counter := 1
		for {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				break
			}
			path = filepath.Join(m.backupDir, fmt.Sprintf("%s%s-%d", BackupPrefix, timestamp, counter))
			counter++
			if counter > 100 {
				return "", fmt.Errorf("failed to generate unique backup name")
			}
		}
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return path, nil
}

// backupSettings copies the SQLite database with VACUUM INTO, which produces
// a clean copy even while the database is open elsewhere. Falls back to a
// plain file copy when the engine refuses.
func backupSettings(srcPath, destPath string) error {
	srcDB, err := sql.Open("sqlite", srcPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer srcDB.Close()

	var count int
	if err := srcDB.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}

	if _, err := srcDB.Exec("VACUUM INTO ?", destPath); err != nil {
		return copyFile(srcPath, destPath)
	}
	return nil
}

// ListBackups returns available snapshots, newest first.
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	if _, err := os.Stat(m.backupDir); os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), BackupPrefix) {
			continue
		}

		timestampStr := strings.TrimPrefix(entry.Name(), BackupPrefix)
		// Strip a collision counter suffix when present.
		if parts := strings.Split(timestampStr, "-"); len(parts) > 2 {
			last := parts[len(parts)-1]
			if len(last) != 4 && len(last) != 6 && isDigits(last) {
				timestampStr = strings.Join(parts[:len(parts)-1], "-")
			}
		}

		timestamp, err := time.Parse("20060102-1504", timestampStr)
		if err != nil {
			timestamp, err = time.Parse("20060102-150405", timestampStr)
			if err != nil {
				continue
			}
		}

		path := filepath.Join(m.backupDir, entry.Name())
		backups = append(backups, BackupInfo{
			Path:      path,
			Timestamp: timestamp,
			Size:      dirSize(path),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// rotateBackups removes snapshots beyond the retention limit.
func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.RemoveAll(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// RestoreBackup replaces the live files with the snapshot's contents after
// taking a safety backup of the current state.
func (m *Manager) RestoreBackup(snapshotPath string) error {
	info, err := os.Stat(snapshotPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("backup does not exist: %s", snapshotPath)
	}

	if _, err := m.createBackup(true); err != nil {
		return fmt.Errorf("failed to create pre-restore backup: %w", err)
	}

	restored := false
	if src := filepath.Join(snapshotPath, settingsName); fileExists(src) {
		if err := copyFile(src, m.settingsPath); err != nil {
			return fmt.Errorf("failed to restore settings: %w", err)
		}
		restored = true
	}
	if src := filepath.Join(snapshotPath, historyName); fileExists(src) {
		if err := copyFile(src, m.historyPath); err != nil {
			return fmt.Errorf("failed to restore history: %w", err)
		}
		restored = true
	}
	if !restored {
		return fmt.Errorf("backup %s contains nothing to restore", snapshotPath)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
