// Package retry re-runs filesystem operations that fail with transient
// errno-style errors (another process holding the file, a rename in flight).
package retry

import (
	"context"
	"errors"
	"io/fs"
	"syscall"
	"time"
)

// Options tunes Do. A zero InitialDelay or Multiplier takes the default;
// a zero MaxRetries means a single attempt. Start from DefaultOptions for
// the standard schedule.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// Multiplier scales the delay after every retry.
	Multiplier float64
	// OnRetry is called before each wait with the 1-based retry number.
	OnRetry func(attempt int, err error)
}

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMultiplier   = 2.0
)

// DefaultOptions is the schedule used for state files: three retries
// starting at 100ms and doubling.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
	}
}

// sleep waits for d or until ctx is done. Replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var retryableErrnos = []syscall.Errno{
	syscall.EBUSY,
	syscall.EAGAIN,
	syscall.ENOENT,
	syscall.EACCES,
}

// IsRetryable reports whether err carries one of the transient codes
// EBUSY, EAGAIN, ENOENT or EACCES. Errors without a code are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, code := range retryableErrnos {
		if errors.Is(err, code) {
			return true
		}
	}
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries are spent. The last error is returned unchanged.
func Do(ctx context.Context, fn func() error, opts Options) error {
	_, err := DoValue(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, opts)
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, fn func() (T, error), opts Options) (T, error) {
	opts = withDefaults(opts)

	delay := opts.InitialDelay
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == opts.MaxRetries {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
		delay = time.Duration(float64(delay) * opts.Multiplier)
	}

	var zero T
	return zero, lastErr
}

func withDefaults(o Options) Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.Multiplier <= 0 {
		o.Multiplier = DefaultMultiplier
	}
	return o
}
