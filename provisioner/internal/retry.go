package internal

import (
	"context"
	"errors"
	"time"
)

// Backoff describes how often and how long to wait between attempts.
type Backoff struct {
	Attempts int
	// Initial is the first delay, doubled after every failed attempt.
	Initial time.Duration
	// Max caps the delay. Zero means no cap.
	Max time.Duration
}

// DefaultBackoff waits 100ms, 200ms, 400ms and 800ms between five attempts.
var DefaultBackoff = Backoff{Attempts: 5, Initial: 100 * time.Millisecond}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Initial << attempt
	if b.Max > 0 && (d > b.Max || d <= 0) {
		return b.Max
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

// Retry calls fn until it succeeds, returns a Permanent error or the attempts
// are exhausted, in which case the last error is returned. It returns
// ctx.Err() if ctx is done while waiting.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	_, err := RetryResult(ctx, b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryResult is like Retry for functions that return a value.
func RetryResult[T any](ctx context.Context, b Backoff, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 0; attempt < max(b.Attempts, 1); attempt++ {
		if result, err = fn(); err == nil {
			return result, nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return result, permanent.err
		}

		if attempt < b.Attempts-1 {
			timer := time.NewTimer(b.delay(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			}
		}
	}
	return result, err
}
