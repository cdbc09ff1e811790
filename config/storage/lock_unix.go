//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockExclusive takes the write lock on f.
func lockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

// lockShared takes a read lock on f.
func lockShared(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_SH)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
