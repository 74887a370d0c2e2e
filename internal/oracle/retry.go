package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	maxAttempts    = 3
	retryBaseDelay = 500 * time.Millisecond
)

// Retry runs one batch operation up to three times with exponential
// backoff and jitter, doubling the base delay per attempt. Attempts are
// sequential, each awaiting the prior failure. Quota exhaustion is
// permanent and returned immediately; any other error is treated as
// transient until attempts run out.
func Retry(ctx context.Context, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryBaseDelay
	policy.Multiplier = 2

	wrapped := func() error {
		err := operation()
		if err != nil && errors.Is(err, ErrQuotaExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
}
