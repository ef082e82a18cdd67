package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/twitchax/triage-bot/logging"
)

// RetryConfig defines configuration for retry behavior around model calls.
type RetryConfig struct {
	MaxAttempts       int           // Total attempt budget (first call included)
	PerAttemptTimeout time.Duration // Deadline applied to each individual attempt
	InitialDelay      time.Duration // Delay before the first retry
	BackoffFactor     float64       // Multiplier for exponential backoff
	// Classifier reports whether an error is worth retrying. When nil every
	// error is retried, matching the uniform policy this wrapper started
	// with; supply one to skip retrying permanently-malformed requests.
	Classifier func(error) bool
}

// DefaultRetryConfig provides the standard attempt budget for model calls:
// three attempts, two minutes each, backing off 1s then 2s between them.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	PerAttemptTimeout: 120 * time.Second,
	InitialDelay:      time.Second,
	BackoffFactor:     2.0,
}

// RetryModel wraps a Model with timeout plus bounded exponential-backoff
// retry. It keeps no state between calls and is safe for concurrent use.
type RetryModel struct {
	inner    Model
	config   RetryConfig
	logger   logging.Logger
	onRetry  func()
	onResult func(success bool, usage *TokenUsage)
}

// RetryOptions configures construction of a RetryModel.
type RetryOptions struct {
	Config RetryConfig
	Logger logging.Logger
	// OnRetry is invoked once per retry attempt (never for the first call).
	OnRetry func()
	// OnResult is invoked after every attempt with its outcome; usage is nil
	// unless the attempt succeeded and the provider reported token counts.
	OnResult func(success bool, usage *TokenUsage)
}

// NewRetryModel wraps inner with the default retry configuration, overridable
// via functional options.
func NewRetryModel(inner Model, optFns ...func(o *RetryOptions)) *RetryModel {
	opts := RetryOptions{
		Config: DefaultRetryConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &RetryModel{
		inner:    inner,
		config:   opts.Config,
		logger:   opts.Logger,
		onRetry:  opts.OnRetry,
		onResult: opts.OnResult,
	}
}

// Generate implements Model with retry logic. Each attempt runs under its own
// timeout; exhaustion returns the last error wrapped with the attempt count.
func (r *RetryModel) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if r.onRetry != nil {
				r.onRetry()
			}
			delay := r.calculateDelay(attempt)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.attempt(ctx, req)
		if err == nil {
			if r.onResult != nil {
				r.onResult(true, resp.Usage)
			}
			r.logger.Info("model.call.success", "model", r.inner.Info().Name, "attempt", attempt)
			return resp, nil
		}

		if r.onResult != nil {
			r.onResult(false, nil)
		}
		lastErr = err
		r.logger.Warn("model.call.attempt_failed", "model", r.inner.Info().Name, "attempt", attempt, "error", err.Error())

		if r.config.Classifier != nil && !r.config.Classifier(err) {
			return nil, fmt.Errorf("model call failed with non-retryable error on attempt %d: %w", attempt, err)
		}
	}

	return nil, fmt.Errorf("model call failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}

func (r *RetryModel) attempt(ctx context.Context, req Request) (*Response, error) {
	if r.config.PerAttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.PerAttemptTimeout)
		defer cancel()
	}
	return r.inner.Generate(ctx, req)
}

// calculateDelay computes the backoff delay preceding the given attempt.
func (r *RetryModel) calculateDelay(attempt int) time.Duration {
	return time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-2)))
}

// Info returns the wrapped model's metadata.
func (r *RetryModel) Info() Info { return r.inner.Info() }
