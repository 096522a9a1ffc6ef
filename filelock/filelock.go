// Package filelock provides the advisory exclusive lock a Compactor
// takes on a database's `.compact` file, so only one compaction runs
// against a directory at a time.
package filelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/arloliu/sonnerie/errs"
)

// Lock holds an open, exclusively-locked file. Unlock releases the lock
// and closes the file; the lock file itself is left on disk (it may be
// empty) so the next compaction can reuse it.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if necessary) the file at path and takes a
// non-blocking exclusive flock on it. If another process already holds
// the lock, it returns errs.ErrLocked.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filelock: %w: open %s: %v", errs.ErrIO, path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()

		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("filelock: %w: %s", errs.ErrLocked, path)
		}

		return nil, fmt.Errorf("filelock: %w: flock %s: %v", errs.ErrIO, path, err)
	}

	return &Lock{f: f}, nil
}

// Unlock releases the flock and closes the underlying file descriptor.
func (l *Lock) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("filelock: %w: unlock: %v", errs.ErrIO, err)
	}

	if err := l.f.Close(); err != nil {
		return fmt.Errorf("filelock: %w: close: %v", errs.ErrIO, err)
	}

	return nil
}
