// Package lock provides a cross-process advisory lock backed by a file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/yaklabco/snowhook/internal/log"
)

// ErrTimeout is returned when the lock could not be acquired in time.
var ErrTimeout = errors.New("timed out waiting for lock")

// retryDelay is how often a contended lock is polled.
const retryDelay = 100 * time.Millisecond

// Locker acquires a lock and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// File is a Locker over a lock file on disk.
type File struct {
	path    string
	timeout time.Duration
}

// NewFile returns a lock on path that waits at most timeout. A zero timeout
// waits until ctx is done.
func NewFile(path string, timeout time.Duration) *File {
	return &File{path: path, timeout: timeout}
}

// Path returns the lock file path.
func (f *File) Path() string {
	return f.path
}

// Lock blocks until the lock is held, the timeout elapses or ctx is done.
func (f *File) Lock(ctx context.Context) (func() error, error) {
	waitCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	fl := flock.New(f.path)
	start := time.Now()

	locked, err := fl.TryLockContext(waitCtx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w %s after %s", ErrTimeout, f.path, f.timeout)
		}
		return nil, fmt.Errorf("acquiring lock %s: %w", f.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w %s", ErrTimeout, f.path)
	}

	slog.DebugContext(ctx, "lock acquired",
		slog.String(log.Lock, f.path),
		slog.Duration(log.Duration, time.Since(start)),
	)

	return func() error {
		if err := fl.Unlock(); err != nil {
			return fmt.Errorf("releasing lock %s: %w", f.path, err)
		}
		return nil
	}, nil
}
