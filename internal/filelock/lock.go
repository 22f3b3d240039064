// Package filelock provides cross-process mutual exclusion over a lock file.
//
// Every pomo invocation that mutates the active slot or the session log holds
// the lock for the whole read-check-act sequence, so a status check, an
// explicit stop and the detached timer can race at the expiry boundary without
// producing duplicate log entries.
//
// Locks are tied to the open file, not the process: two Lock values for the
// same path exclude each other even inside one process.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the lock file created inside the data directory.
const FileName = "pomo.lock"

// Lock is an advisory exclusive lock on a file.
type Lock struct {
	path string
	file *os.File
}

// New returns a Lock for the lock file inside dir. Call Lock/Unlock to
// acquire and release.
func New(dir string) *Lock {
	return &Lock{path: filepath.Join(dir, FileName)}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Lock acquires the exclusive lock, blocking until it is available.
// The lock file is created if it does not exist.
func (l *Lock) Lock() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f, true); err != nil {
		_ = f.Close()
		return fmt.Errorf("lock %s: %w", l.path, err)
	}
	l.file = f
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another holder has it.
func (l *Lock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f, false); err != nil {
		_ = f.Close()
		if isWouldBlock(err) {
			return false, nil
		}
		return false, fmt.Errorf("lock %s: %w", l.path, err)
	}
	l.file = f
	return true, nil
}

// Unlock releases the lock and closes the lock file. Unlocking a Lock that is
// not held is a no-op.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	if err := unlockFile(l.file); err != nil {
		_ = l.file.Close()
		l.file = nil
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	err := l.file.Close()
	l.file = nil
	return err
}
