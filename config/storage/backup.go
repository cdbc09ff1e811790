package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultBackupRetention is the number of state file backups kept by default.
const DefaultBackupRetention = 3

// BackupManager keeps timestamped copies of the state file next to it.
type BackupManager struct {
	// MaxBackups is the maximum number of backups to retain
	MaxBackups int

	now func() time.Time
}

// NewBackupManager creates a BackupManager; maxBackups <= 0 means the default retention.
func NewBackupManager(maxBackups int) *BackupManager {
	if maxBackups <= 0 {
		maxBackups = DefaultBackupRetention
	}
	return &BackupManager{MaxBackups: maxBackups, now: time.Now}
}

// CreateBackup copies filePath to filePath.backup-YYYYMMDDHHMMSS-PID and
// trims old backups.
func (bm *BackupManager) CreateBackup(filePath string) (string, error) {
	stamp := bm.now().Format("20060102150405")
	backupPath := fmt.Sprintf("%s.backup-%s-%d", filePath, stamp, os.Getpid())

	// Several backups within one second from the same process get a counter suffix.
	for i := 1; FileExists(backupPath); i++ {
		backupPath = fmt.Sprintf("%s.backup-%s-%d.%d", filePath, stamp, os.Getpid(), i)
	}

	if err := copyFile(filePath, backupPath); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if err := bm.CleanupOldBackups(filePath); err != nil {
		return backupPath, err
	}
	return backupPath, nil
}

// ListBackups returns the backups of filePath, oldest first.
func (bm *BackupManager) ListBackups(filePath string) ([]string, error) {
	backups, err := filepath.Glob(filePath + ".backup-*")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	modTimes := make(map[string]time.Time, len(backups))
	for _, b := range backups {
		if info, err := os.Stat(b); err == nil {
			modTimes[b] = info.ModTime()
		}
	}
	sort.SliceStable(backups, func(i, j int) bool {
		ti, tj := modTimes[backups[i]], modTimes[backups[j]]
		if ti.Equal(tj) {
			return backups[i] < backups[j]
		}
		return ti.Before(tj)
	})
	return backups, nil
}

// CleanupOldBackups removes all but the newest MaxBackups backups.
func (bm *BackupManager) CleanupOldBackups(filePath string) error {
	backups, err := bm.ListBackups(filePath)
	if err != nil {
		return err
	}

	excess := len(backups) - bm.MaxBackups
	if excess <= 0 {
		return nil
	}
	for _, old := range backups[:excess] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", old, err)
		}
	}
	return nil
}

// ErrNoBackup means there is no backup to restore from.
var ErrNoBackup = errors.New("no backup files found")

// RestoreFromLatestBackup copies the newest backup over filePath and returns
// the backup it used.
func (bm *BackupManager) RestoreFromLatestBackup(filePath string) (string, error) {
	backups, err := bm.ListBackups(filePath)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoBackup, filePath)
	}
	latest := backups[len(backups)-1]
	if err := copyFile(latest, filePath); err != nil {
		return "", fmt.Errorf("failed to restore from backup: %w", err)
	}
	return latest, nil
}

// copyFile copies src to dst, keeping the source permissions
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}
