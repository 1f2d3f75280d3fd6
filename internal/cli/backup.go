package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fatrack/internal/backup"
)

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	mgr := backup.NewManager(ctx.SettingsPath(), ctx.HistoryPath())
	backupPath, err := mgr.CreateBackup()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Printf("✓ Backup created: %s\n", filepath.Base(backupPath))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr := backup.NewManager(ctx.SettingsPath(), ctx.HistoryPath())
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		fmt.Println("No backups found.")
		fmt.Printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	fmt.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), backup.MaxBackups)
	for _, b := range backups {
		sizeKB := float64(b.Size) / 1024.0
		timestamp := b.Timestamp.Format("2006-01-02 15:04:05")
		name := filepath.Base(b.Path)
		fmt.Printf("  %s  %s  (%.1f KB)\n", timestamp, name, sizeKB)
	}
	fmt.Printf("\nBackup directory: %s\n", mgr.GetBackupDir())

	return nil
}

type BackupRestoreCmd struct {
	Backup string `arg:"" help:"Path or name of the backup snapshot to restore."`
	Yes    bool   `help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr := backup.NewManager(ctx.SettingsPath(), ctx.HistoryPath())

	backupPath := c.Backup
	if !filepath.IsAbs(backupPath) {
		possiblePath := filepath.Join(mgr.GetBackupDir(), c.Backup)
		if _, err := os.Stat(possiblePath); err == nil {
			backupPath = possiblePath
		}
	}

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", backupPath)
	}

	if !c.Yes {
		fmt.Println("⚠️  WARNING: This will replace your current settings and history with the backup.")
		fmt.Println("A backup of your current data will be created before restoring.")
		fmt.Printf("\nRestore from: %s\n", filepath.Base(backupPath))
		fmt.Print("Continue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	if err := mgr.RestoreBackup(backupPath); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Println("✓ Data restored successfully!")
	fmt.Println("Restart any running fatrack processes to use the restored data.")

	return nil
}
