package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

func TestFileStoreLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := s.Set("model-configs", `[{"id":"g1"}]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("last-model-index", "0"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	doc := string(data)
	if !gjson.Valid(doc) {
		t.Fatalf("state file is not valid JSON: %s", doc)
	}
	if got := gjson.Get(doc, "last-model-index").String(); got != "0" {
		t.Errorf("last-model-index = %q, want 0", got)
	}
	if got := gjson.Get(doc, "model-configs").String(); got != `[{"id":"g1"}]` {
		t.Errorf("model-configs = %q", got)
	}

	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("state file mode = %v, want 0600", perm)
	}
}

func TestFileStoreSharedAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	a, _ := NewFileStore(path)
	b, _ := NewFileStore(path)

	if err := a.Set("last-model-index", "4"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := b.Get("last-model-index"); !ok || v != "4" {
		t.Errorf("second instance Get() = %q, %v; want 4, true", v, ok)
	}

	var wg sync.WaitGroup
	for _, s := range []*FileStore{a, b} {
		wg.Add(1)
		go func(s *FileStore) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = s.Update("n", func(cur string, ok bool) (string, error) {
					n, _ := strconv.Atoi(cur)
					return strconv.Itoa(n + 1), nil
				})
			}
		}(s)
	}
	wg.Wait()

	if v, _, _ := a.Get("n"); v != "40" {
		t.Errorf("n = %s after concurrent updates from two instances, want 40", v)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "not json {"},
		{"array root", `["a","b"]`},
		{"truncated", `{"model-configs": "[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			s, _ := NewFileStore(path)

			if _, ok, err := s.Get("model-configs"); err != nil || ok {
				t.Errorf("Get() on corrupt file = ok %v, err %v; want false, nil", ok, err)
			}

			if err := s.Set("a", "1"); err != nil {
				t.Fatalf("Set() on corrupt file error = %v", err)
			}
			if v, _, _ := s.Get("a"); v != "1" {
				t.Errorf("Get(a) = %q, want 1", v)
			}

			backups, _ := NewBackupManager(0).ListBackups(path)
			if len(backups) != 1 {
				t.Fatalf("backups = %v, want exactly one copy of the corrupt file", backups)
			}
			saved, _ := os.ReadFile(backups[0])
			if string(saved) != tt.content {
				t.Errorf("backup content = %q, want %q", saved, tt.content)
			}
		})
	}
}

func TestFileStoreEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	_ = os.WriteFile(path, []byte("  \n"), 0600)
	s, _ := NewFileStore(path)

	if _, ok, err := s.Get("a"); ok || err != nil {
		t.Errorf("Get() on blank file = ok %v, err %v", ok, err)
	}
	if err := s.Set("a", "x"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if backups, _ := NewBackupManager(0).ListBackups(path); len(backups) != 0 {
		t.Errorf("blank file should not be backed up, got %v", backups)
	}
}

func TestFileStoreBackupKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	bm := NewBackupManager(2)
	s, _ := NewFileStore(path, WithBackups(bm, "model-configs"))

	for i := 0; i < 4; i++ {
		if err := s.Set("model-configs", "[]"); err != nil {
			t.Fatal(err)
		}
		if err := s.Set("last-model-index", strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := bm.ListBackups(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Errorf("backups = %d, want retention of 2", len(backups))
	}
}

func TestFileStoreRestoreLatestBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, _ := NewFileStore(path, WithBackups(NewBackupManager(3), "model-configs"))

	if _, err := s.RestoreLatestBackup(); !errors.Is(err, ErrNoBackup) {
		t.Fatalf("RestoreLatestBackup() without backups error = %v, want ErrNoBackup", err)
	}

	if err := s.Set("model-configs", `[{"id":"a"}]`); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("model-configs", `[]`); err != nil {
		t.Fatal(err)
	}

	used, err := s.RestoreLatestBackup()
	if err != nil {
		t.Fatalf("RestoreLatestBackup() error = %v", err)
	}
	if used == "" {
		t.Error("RestoreLatestBackup() returned no backup path")
	}
	got, ok, err := s.Get("model-configs")
	if err != nil || !ok || gjson.Get(got, "0.id").String() != "a" {
		t.Errorf("Get() after restore = %q, %v, %v; want the list before the last write", got, ok, err)
	}
}
