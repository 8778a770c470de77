package llm

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds the retry loop around the transport.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy matches the behaviour expected of interactive callers:
// a handful of attempts with sub-ten-second waits.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          8 * time.Second,
		BackoffMultiplier: 2,
	}
}

func (p RetryPolicy) validate() *Error {
	switch {
	case p.MaxAttempts < 1:
		return configErrorf("retry policy: max attempts %d must be >= 1", p.MaxAttempts)
	case p.InitialDelay <= 0:
		return configErrorf("retry policy: initial delay must be positive")
	case p.MaxDelay < p.InitialDelay:
		return configErrorf("retry policy: max delay %s below initial delay %s", p.MaxDelay, p.InitialDelay)
	case p.BackoffMultiplier < 1:
		return configErrorf("retry policy: backoff multiplier %.2f must be >= 1", p.BackoffMultiplier)
	}
	return nil
}

// delay computes the wait before attempt+1 given a failure on attempt
// (1-indexed): exponential growth capped at MaxDelay, then 0-30% jitter so
// concurrent callers do not retry in lockstep.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d * (1 + rand.Float64()*0.3))
}

// waitCtx sleeps without blocking other in-flight calls and wakes early when
// the context is cancelled.
func waitCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// execute wraps the transport in the bounded retry loop. Attempts are
// strictly sequential; parallel speculative retries would double spend. The
// request body is resubmitted verbatim on every attempt. A timeout is retried
// at most once regardless of remaining budget, while rate limits may use the
// full attempt budget.
// Returns the number of attempts actually performed alongside the outcome.
func (c *Client) execute(ctx context.Context, path string, body []byte) (*rawResponse, int, *Error) {
	var timedOutOnce bool
	for attempt := 1; ; attempt++ {
		raw, cerr := c.transport.send(ctx, path, body)
		if cerr == nil {
			if attempt > 1 {
				log.Info().
					Str("path", path).
					Int("attempts", attempt).
					Msg("Completion succeeded after retries")
			}
			return raw, attempt, nil
		}

		retryable := cerr.Retryable()
		if cerr.Kind == KindTimeout {
			if timedOutOnce {
				retryable = false
			}
			timedOutOnce = true
		}
		if !retryable || attempt >= c.retry.MaxAttempts {
			log.Warn().
				Str("path", path).
				Str("kind", cerr.Kind.String()).
				Int("status", cerr.StatusCode).
				Int("attempts", attempt).
				Msg("Completion failed")
			return nil, attempt, cerr
		}

		// Server-directed delay wins over computed backoff.
		wait := c.retry.delay(attempt)
		if cerr.Kind == KindRateLimit && cerr.RetryAfter > 0 {
			wait = cerr.RetryAfter
		}
		log.Info().
			Str("path", path).
			Str("kind", cerr.Kind.String()).
			Int("status", cerr.StatusCode).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Retrying completion")
		if err := c.sleep(ctx, wait); err != nil {
			// The caller gave up while we were waiting; surface the failure
			// that put us here rather than an unclassified context error.
			return nil, attempt, cerr
		}
	}
}
