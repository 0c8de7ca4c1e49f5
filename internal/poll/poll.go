// Package poll is the single polling primitive used by every long-running
// wait in the engine: build status, certificate issuance, log-stream
// availability and DNS propagation all go through it.
package poll

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retryable marks an error so the poll loop keeps going. Errors returned
// without this wrapper abort the loop immediately.
func Retryable(err error) error {
	return retry.RetryableError(err)
}

// UntilAttempts runs fn every interval until it succeeds, returns a
// non-retryable error, or attempts retries have been spent.
func UntilAttempts(ctx context.Context, interval time.Duration, attempts uint64, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(attempts, retry.NewConstant(interval))
	return retry.Do(ctx, b, fn)
}

// UntilDeadline runs fn every interval until it succeeds, returns a
// non-retryable error, or limit wall-clock time has elapsed.
func UntilDeadline(ctx context.Context, interval, limit time.Duration, fn func(ctx context.Context) error) error {
	b := retry.WithMaxDuration(limit, retry.NewConstant(interval))
	return retry.Do(ctx, b, fn)
}
