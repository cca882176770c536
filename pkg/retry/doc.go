// Package retry re-runs whole crawl runs after transient failures.
//
// Only errors typed as retryable by pkg/errors (network and commit
// failures) are retried. Session expiry, empty batches and cancellation end
// the loop immediately.
//
//	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//	    _, err := runner.Run(ctx, params)
//	    return err
//	}, &retry.Config{
//	    MaxAttempts: 3,
//	    Backoff:     retry.DefaultExponentialBackoff(),
//	})
package retry
