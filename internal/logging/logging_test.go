package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestLogFormatter(t *testing.T) {
	f := &LogFormatter{}
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "state file is corrupt\n",
		Data:    log.Fields{"path": "/tmp/x", "component": "file-store"},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "[2026-01-02 15:04:05] [warn ] state file is corrupt component=file-store path=/tmp/x\n"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", out, want)
	}
}

func TestOrderedFields(t *testing.T) {
	got := orderedFields(log.Fields{"zeta": 1, "alpha": 2, "model": "m", "component": "c"})
	want := []string{"component=c", "model=m", "alpha=2", "zeta=1"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("orderedFields() = %v, want %v", got, want)
	}
}

func TestSetup(t *testing.T) {
	defer func() {
		Close()
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	}()

	t.Run("Invalid level", func(t *testing.T) {
		if err := Setup(Options{Level: "loud"}); err == nil {
			t.Error("Setup() error = nil, want error")
		}
	})

	t.Run("File output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "maestro.log")
		if err := Setup(Options{Level: "debug", File: path, MaxSizeMB: 1}); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if log.GetLevel() != log.DebugLevel {
			t.Errorf("level = %v, want debug", log.GetLevel())
		}
		Component("test").Debug("hello file")
		Close()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("log file not written: %v", err)
		}
		if !bytes.Contains(data, []byte("hello file component=test")) {
			t.Errorf("log file = %q", data)
		}
		if !bytes.Contains(data, []byte("[logging_test.go:")) {
			t.Errorf("log line has no caller: %q", data)
		}
	})
}
