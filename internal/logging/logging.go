// Package logging configures the process-wide logrus logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the process logs.
type Options struct {
	Level     string
	File      string
	MaxSizeMB int
}

var (
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// LogFormatter renders entries as
// [2026-01-02 15:04:05] [warn ] [registry.go:88] message k=v
type LogFormatter struct{}

// fieldOrder puts the common fields first; the rest follow sorted.
var fieldOrder = []string{"component", "flow", "provider", "model", "label", "index", "error"}

// Format renders a single log entry.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	var fields string
	if len(entry.Data) > 0 {
		fields = " " + strings.Join(orderedFields(entry.Data), " ")
	}

	if entry.Caller != nil {
		fmt.Fprintf(buffer, "[%s] [%-5s] [%s:%d] %s%s\n", timestamp, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fields)
	} else {
		fmt.Fprintf(buffer, "[%s] [%-5s] %s%s\n", timestamp, level, message, fields)
	}
	return buffer.Bytes(), nil
}

func orderedFields(data log.Fields) []string {
	seen := make(map[string]bool, len(data))
	out := make([]string, 0, len(data))
	for _, k := range fieldOrder {
		if v, ok := data[k]; ok {
			out = append(out, fmt.Sprintf("%s=%v", k, v))
			seen[k] = true
		}
	}
	var rest []string
	for k := range data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return out
}

// Setup configures the standard logrus logger. It may be called again to
// switch level or destination.
func Setup(opts Options) error {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out, err := output(opts)
	if err != nil {
		return err
	}

	log.SetLevel(level)
	log.SetReportCaller(true)
	log.SetFormatter(&LogFormatter{})
	log.SetOutput(out)
	log.RegisterExitHandler(Close)
	return nil
}

func output(opts Options) (io.Writer, error) {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if opts.File == "" {
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	logWriter = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: 3,
		Compress:   false,
	}
	return logWriter, nil
}

// Close flushes and closes the rotating file, if any.
func Close() {
	writerMu.Lock()
	defer writerMu.Unlock()
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
