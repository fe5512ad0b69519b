package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the retry cap applied after the initial attempt.
	DefaultMaxRetries = 3
	// DefaultInitialInterval is the first backoff delay.
	DefaultInitialInterval = 500 * time.Millisecond
	// DefaultMaxInterval caps the delay between attempts.
	DefaultMaxInterval = 30 * time.Second
	// DefaultMaxElapsedTime caps the total time spent retrying.
	DefaultMaxElapsedTime = 5 * time.Minute
	// DefaultMultiplier is the exponential backoff factor.
	DefaultMultiplier = 2.0
	// DefaultRandomizationFactor adds jitter to avoid thundering herds.
	DefaultRandomizationFactor = 0.2
)

// RetryPolicy configures capped exponential backoff with jitter for the
// failure categories that are safe to retry.
type RetryPolicy struct {
	MaxRetries          uint64
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy returns the policy every adapter starts with.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          DefaultMaxRetries,
		InitialInterval:     DefaultInitialInterval,
		MaxInterval:         DefaultMaxInterval,
		MaxElapsedTime:      DefaultMaxElapsedTime,
		Multiplier:          DefaultMultiplier,
		RandomizationFactor: DefaultRandomizationFactor,
	}
}

// newBackOff builds the backoff strategy for one call.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = p.MaxElapsedTime
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = p.RandomizationFactor
	eb.Reset()
	return backoff.WithMaxRetries(eb, p.MaxRetries)
}

// hintedBackOff lets a backend-suggested Retry-After delay replace the next
// computed interval. The hint applies once; later intervals come from the
// wrapped strategy.
type hintedBackOff struct {
	backoff.BackOff
	hint *time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if b.hint != nil {
		if next != backoff.Stop {
			next = *b.hint
		}
		b.hint = nil
	}
	return next
}

// Retry executes op under the policy. Failures are categorized and only the
// retryable categories (network, rate limit, server error) are attempted
// again; everything else is surfaced immediately. A Retry-After delay
// reported by the backend overrides the next computed interval. Each retry
// is logged with its attempt number, delay, and triggering message. Once the
// cap is reached the last error is surfaced unchanged.
func Retry[T any](ctx context.Context, logger zerolog.Logger, policy RetryPolicy, op func() (T, error)) (T, error) {
	attempt := 0
	hinted := &hintedBackOff{BackOff: policy.newBackOff()}

	operation := func() (T, error) {
		attempt++
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !ShouldRetry(Categorize(err)) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		hinted.hint = RetryAfterOf(err)
		return result, err
	}

	notify := func(err error, delay time.Duration) {
		logger.Warn().
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("category", string(Categorize(err))).
			Err(err).
			Msg("Retrying backend call after retryable failure")
	}

	return backoff.RetryNotifyWithData(operation, backoff.WithContext(hinted, ctx), notify)
}
