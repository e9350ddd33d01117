// Package capability centralizes how external model and embedding services
// are called: every invocation carries a deadline and a bounded
// exponential-backoff retry, applied uniformly at each call site.
package capability

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// TransientError marks a failure worth retrying: timeout, rate limit, or a
// 5xx-equivalent from an external capability.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient capability error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so the retry policy treats it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable. Context deadline expiry on
// the per-attempt timeout counts as transient; cancellation does not.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Policy bounds retries of a single logical capability call.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first try.
	MaxRetries uint64
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// Timeout bounds each individual attempt. Zero means no per-attempt
	// deadline beyond the caller's context.
	Timeout time.Duration
}

// Do runs fn under the policy. Each attempt gets its own deadline; transient
// failures are retried with exponential backoff until the ceiling, anything
// else stops immediately. The caller's ctx aborts the whole sequence.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// The caller went away; never keep an external call alive for it.
			return backoff.Permanent(ctx.Err())
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	base := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		base.InitialInterval = p.BaseDelay
	}
	base.MaxElapsedTime = 0

	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(base, p.MaxRetries), ctx))
}
