package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var errCorruptFile = errors.New("state file is not a JSON object")

// FileStore keeps every key as a string field of one JSON object on disk.
// Readers take a shared flock on a sidecar lock file and writers an exclusive
// one, so several processes can share the file.
type FileStore struct {
	path       string
	lockPath   string
	backups    *BackupManager
	backupKeys map[string]bool
	log        *logrus.Entry
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithBackups snapshots the state file before any write to one of keys.
func WithBackups(bm *BackupManager, keys ...string) FileOption {
	return func(s *FileStore) {
		s.backups = bm
		for _, k := range keys {
			s.backupKeys[k] = true
		}
	}
}

// WithFileLogger sets the logger used for recoverable problems.
func WithFileLogger(log *logrus.Entry) FileOption {
	return func(s *FileStore) { s.log = log }
}

// NewFileStore opens (lazily) the state file at path, creating its directory.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("state file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &FileStore{
		path:       path,
		lockPath:   path + ".lock",
		backupKeys: make(map[string]bool),
		log:        logrus.WithField("component", "file-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}

	var (
		value string
		found bool
	)
	err := s.withLock(false, func() error {
		doc, err := s.readDoc()
		if errors.Is(err, errCorruptFile) {
			s.log.WithField("path", s.path).Warn("state file is corrupt, treating it as empty")
			return nil
		}
		if err != nil {
			return err
		}
		value, found = lookup(doc, key)
		return nil
	})
	return value, found, err
}

func (s *FileStore) Set(key, value string) error {
	return s.Update(key, func(string, bool) (string, error) { return value, nil })
}

func (s *FileStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(true, func() error {
		doc, err := s.docForWrite()
		if err != nil {
			return err
		}
		if !gjson.Get(doc, key).Exists() {
			return nil
		}
		next, err := sjson.Delete(doc, key)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		return s.writeDoc(key, next)
	})
}

// Update runs fn while holding the exclusive file lock.
func (s *FileStore) Update(key string, fn UpdateFunc) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return s.withLock(true, func() error {
		doc, err := s.docForWrite()
		if err != nil {
			return err
		}
		cur, ok := lookup(doc, key)
		value, err := fn(cur, ok)
		if err != nil {
			return err
		}
		next, err := sjson.Set(doc, key, value)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		return s.writeDoc(key, next)
	})
}

func lookup(doc, key string) (string, bool) {
	res := gjson.Get(doc, key)
	if !res.Exists() {
		return "", false
	}
	if res.Type == gjson.String {
		return res.Str, true
	}
	return res.Raw, true
}

// RestoreLatestBackup replaces the state file with its newest backup while
// holding the exclusive lock, and returns the backup used.
func (s *FileStore) RestoreLatestBackup() (string, error) {
	bm := s.backups
	if bm == nil {
		bm = NewBackupManager(DefaultBackupRetention)
	}
	var used string
	err := s.withLock(true, func() error {
		var err error
		used, err = bm.RestoreFromLatestBackup(s.path)
		return err
	})
	if err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"path": s.path, "backup": used}).Info("state file restored from backup")
	return used, nil
}

func (s *FileStore) withLock(exclusive bool, fn func() error) error {
	f, err := os.OpenFile(s.lockPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	if exclusive {
		err = lockExclusive(f)
	} else {
		err = lockShared(f)
	}
	if err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer unlock(f)

	return fn()
}

func (s *FileStore) readDoc() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "{}", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state file: %w", err)
	}

	doc := strings.TrimSpace(string(data))
	if doc == "" {
		return "{}", nil
	}
	if !gjson.Valid(doc) || !gjson.Parse(doc).IsObject() {
		return "", errCorruptFile
	}
	return doc, nil
}

// docForWrite is readDoc for callers holding the exclusive lock: a corrupt
// file is backed up and replaced by an empty object.
func (s *FileStore) docForWrite() (string, error) {
	doc, err := s.readDoc()
	if !errors.Is(err, errCorruptFile) {
		return doc, err
	}

	bm := s.backups
	if bm == nil {
		bm = NewBackupManager(DefaultBackupRetention)
	}
	backup, berr := bm.CreateBackup(s.path)
	if berr != nil {
		return "", fmt.Errorf("state file is corrupt and could not be backed up: %w", berr)
	}
	s.log.WithFields(logrus.Fields{"path": s.path, "backup": backup}).Warn("state file is corrupt, starting over")
	return "{}", nil
}

func (s *FileStore) writeDoc(key, doc string) error {
	var bm *BackupManager
	if s.backupKeys[key] {
		bm = s.backups
	}
	pretty := gjson.Get(doc, "@pretty").Raw
	if pretty == "" {
		pretty = doc
	}
	return AtomicFileUpdate(s.path, []byte(pretty), bm)
}
