// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry wraps external calls with bounded-retry, exponential-backoff
// semantics. A semantically invalid payload (a model reply that fails schema
// validation, a response with no parseable structure) is signalled the same
// way as a network failure: the operation returns an error and is retried.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// jitter returns the multiplier applied to each backoff delay. Package-level
// var so tests can pin it.
var jitter = func() float64 {
	return 0.5 + rand.Float64()*0.5
}

// Do executes op, retrying up to maxRetries additional times on error. The
// delay before retry n (1-indexed) is baseDelay * 2^(n-1) scaled by a random
// factor in [0.5, 1.0) so concurrent batch members do not retry in lockstep.
// A first-attempt success sleeps zero times. If the context is cancelled
// during a backoff wait, Do returns ctx.Err(). After exhausting retries it
// returns the last error wrapped; it never decides reference status.
func Do(ctx context.Context, op func(context.Context) error, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)) * jitter())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := op(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
