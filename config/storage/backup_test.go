package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBackupManager(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte(`{"v":1}`), 0600); err != nil {
		t.Fatal(err)
	}

	bm := NewBackupManager(2)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bm.now = func() time.Time { return base }

	first, err := bm.CreateBackup(path)
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	if !strings.Contains(filepath.Base(first), "state.json.backup-20260102030405-") {
		t.Errorf("backup name = %s", first)
	}

	second, err := bm.CreateBackup(path)
	if err != nil {
		t.Fatalf("second CreateBackup() error = %v", err)
	}
	if second == first {
		t.Error("backups in the same second must not overwrite each other")
	}

	_ = os.WriteFile(path, []byte(`{"v":2}`), 0600)
	bm.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := bm.CreateBackup(path); err != nil {
		t.Fatal(err)
	}

	backups, _ := bm.ListBackups(path)
	if len(backups) != 2 {
		t.Fatalf("ListBackups() = %v, want 2 after cleanup", backups)
	}

	_ = os.WriteFile(path, []byte(`{"v":3}`), 0600)
	used, err := bm.RestoreFromLatestBackup(path)
	if err != nil {
		t.Fatalf("RestoreFromLatestBackup() error = %v", err)
	}
	if used != backups[1] {
		t.Errorf("restored from %s, want %s", used, backups[1])
	}
	data, _ := os.ReadFile(path)
	if string(data) != `{"v":2}` {
		t.Errorf("restored content = %s, want {\"v\":2}", data)
	}
}

func TestRestoreWithoutBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if _, err := NewBackupManager(0).RestoreFromLatestBackup(path); !errors.Is(err, ErrNoBackup) {
		t.Errorf("RestoreFromLatestBackup() error = %v, want ErrNoBackup", err)
	}
}

func TestAtomicFileUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := AtomicFileUpdate(path, []byte("one"), NewBackupManager(1)); err != nil {
		t.Fatalf("AtomicFileUpdate() on new file error = %v", err)
	}
	if err := AtomicFileUpdate(path, []byte("two"), NewBackupManager(1)); err != nil {
		t.Fatalf("AtomicFileUpdate() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "two" {
		t.Errorf("content = %q, want two", data)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
	backups, _ := NewBackupManager(1).ListBackups(path)
	if len(backups) != 1 {
		t.Errorf("backups = %v, want 1", backups)
	}
}
