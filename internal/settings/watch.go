package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// reloadDelay collapses the burst of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the settings file whenever it changes and hands every
// successfully loaded version to onChange. It returns once the watch is set
// up; the watch ends with ctx. The directory is watched, not the file, so
// editors that replace the file on save are followed.
func Watch(ctx context.Context, path string, onChange func(*Settings)) error {
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	entry := log.WithFields(log.Fields{"component": "settings", "path": path})
	entry.Debug("watching settings file")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		s, err := Load(path)
		if err != nil {
			entry.WithError(err).Warn("ignoring invalid settings change")
			return
		}
		entry.Info("settings reloaded")
		onChange(s)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDelay, reload)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				entry.WithError(err).Warn("settings watcher error")
			}
		}
	}()
	return nil
}
