// Package lockx provides cross-process advisory file locking via flock(2).
// The vault file may be touched by other processes and by out-of-band
// tooling, so an in-process mutex is not enough; the lock is scoped to a
// sibling lock file on disk.
package lockx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimeout reports that the lock could not be acquired within the bounded
// wait. Callers should surface this as a retryable condition.
var ErrTimeout = errors.New("lockx: timed out waiting for file lock")

const pollInterval = 25 * time.Millisecond

// FileLock is a held exclusive lock. Release must be called exactly once.
type FileLock struct {
	f *os.File
}

// Acquire takes an exclusive flock on path, creating the lock file if needed.
// It polls in non-blocking mode so the wait is bounded by timeout (and by
// ctx). The lock file itself is never written to and is left in place.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lockx: opening lock file %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &FileLock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			f.Close()
			return nil, fmt.Errorf("lockx: flock %s: %w", path, err)
		}

		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release drops the lock and closes the underlying file descriptor.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	// Closing the descriptor releases the flock; the explicit unlock keeps
	// the release immediate rather than waiting on descriptor teardown.
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("lockx: unlock: %w", err)
	}
	return closeErr
}
