// Package retry runs a remote operation bounded by a per-attempt deadline and
// retries it a fixed number of times.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrTimeout = errors.New("operation timed out")

// Options configure a retried operation.
//
// Attempts is the total number of invocations, not the number of retries.
// Timeouts holds the deadline of each attempt; when there are fewer entries
// than attempts the last one is reused. An empty list means no deadline.
type Options struct {
	Attempts int
	Timeouts []time.Duration
	Delay    time.Duration
}

// Simple returns options with the same timeout for every attempt.
func Simple(attempts int, timeout time.Duration) Options {
	return Options{
		Attempts: attempts,
		Timeouts: []time.Duration{timeout},
	}
}

func (o Options) timeoutFor(attempt int) time.Duration {
	if len(o.Timeouts) == 0 {
		return 0
	}
	if attempt < len(o.Timeouts) {
		return o.Timeouts[attempt]
	}
	return o.Timeouts[len(o.Timeouts)-1]
}

// Do invokes op until it succeeds or opts.Attempts invocations have failed.
// A timed out attempt counts as a failed one; its late result is discarded.
// Do stops early when the parent context is done.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return zero, errors.Join(ctx.Err(), lastErr)
			case <-time.After(opts.Delay):
			}
		}

		v, err := attempt(ctx, opts.timeoutFor(i), op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, errors.Join(ctx.Err(), lastErr)
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

type result[T any] struct {
	value T
	err   error
}

func attempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// buffered so a late operation never blocks after we stopped listening
	done := make(chan result[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
