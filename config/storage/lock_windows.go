//go:build windows

package storage

import (
	"os"

	"golang.org/x/sys/windows"
)

// LockFileEx locks a byte range; one byte at offset 0 is enough for a sidecar lock file.
func lockRange(f *os.File, flags uint32) error {
	var ol windows.Overlapped
	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, &ol)
}

// lockExclusive takes the write lock on f.
func lockExclusive(f *os.File) error {
	return lockRange(f, windows.LOCKFILE_EXCLUSIVE_LOCK)
}

// lockShared takes a read lock on f.
func lockShared(f *os.File) error {
	return lockRange(f, 0)
}

func unlock(f *os.File) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, &ol)
}
