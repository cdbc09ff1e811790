package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// AtomicFileUpdate replaces filePath with newContent through a temp file and a
// rename, so readers never observe a half-written file. When bm is non-nil and
// the file already exists a backup is taken first.
func AtomicFileUpdate(filePath string, newContent []byte, bm *BackupManager) error {
	if bm != nil && FileExists(filePath) {
		if _, err := bm.CreateBackup(filePath); err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(newContent); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temporary file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tmpFile.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set permissions on temporary file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), filePath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
