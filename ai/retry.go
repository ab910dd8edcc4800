package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the exponential backoff applied to transient
// provider failures.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the retry configuration used when nothing
// else is specified.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  time.Minute,
	}
}

// Retry executes op with exponential backoff until it succeeds, exhausts
// the retry budget, or fails permanently. Only ErrProviderUnavailable
// failures are retried; an ErrProviderRejected failure aborts immediately.
// Cancelling the context stops the backoff between attempts.
func Retry(ctx context.Context, config *RetryConfig, logger *slog.Logger, op func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialInterval
	b.MaxInterval = config.MaxInterval
	b.Multiplier = config.Multiplier
	b.MaxElapsedTime = config.MaxElapsedTime

	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsUnavailable(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("transient provider failure, will retry",
			"attempt", attempt,
			"max_retries", maxRetries,
			"err", err)
		return err
	}, bo)
}
