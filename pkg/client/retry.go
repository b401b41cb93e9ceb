package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigcommerce_retries_total",
		Help: "Total number of retry attempts by policy and error class",
	}, []string{"policy", "error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bigcommerce_retry_backoff_seconds",
		Help:    "Backoff duration for retries by policy",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"policy"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bigcommerce_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by policy and error class",
	}, []string{"policy", "error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// ReadRetryConfig returns the retry configuration for GET requests.
func ReadRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// WriteRetryConfig returns the retry configuration for PUT/POST requests.
// Writes are not guaranteed to be idempotent, so they retry less.
func WriteRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext waits with context cancellation support.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy retries a single remote call on transient failures.
type RetryPolicy struct {
	name   string
	config RetryConfig
	sleep  SleepFunc
	logger zerolog.Logger
}

// NewRetryPolicy creates a named retry policy.
func NewRetryPolicy(name string, config RetryConfig, logger zerolog.Logger) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 1
	}

	return &RetryPolicy{
		name:   name,
		config: config,
		sleep:  sleepContext,
		logger: logger.With().Str("policy", name).Logger(),
	}
}

// WithSleep returns a copy of the policy that waits using fn.
func (p *RetryPolicy) WithSleep(fn SleepFunc) *RetryPolicy {
	cp := *p
	cp.sleep = fn
	return &cp
}

// Name returns the policy name.
func (p *RetryPolicy) Name() string {
	return p.name
}

// Config returns the policy configuration.
func (p *RetryPolicy) Config() RetryConfig {
	return p.config
}

// Do executes fn, retrying transient failures with exponential backoff.
// Non-transient failures are returned immediately. When all attempts fail the
// returned error wraps both ErrRetryExhausted and the last failure.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(ErrContextCancelled, err)
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass := ClassOf(err)

		if !IsTransient(err) {
			return lastErr
		}

		if attempt >= p.config.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(p.name, string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if ra := retryAfter(err); ra > wait {
			wait = ra
		}
		retryBackoffSeconds.WithLabelValues(p.name).Observe(wait.Seconds())

		p.logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := p.sleep(ctx, wait); err != nil {
			p.logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return errors.Join(ErrContextCancelled, err)
		}

		backoff = time.Duration(float64(backoff) * p.config.BackoffMultiplier)
		if p.config.MaxBackoff > 0 && backoff > p.config.MaxBackoff {
			backoff = p.config.MaxBackoff
		}
	}

	errorClass := ClassOf(lastErr)
	retryExhaustedTotal.WithLabelValues(p.name, string(errorClass)).Inc()
	p.logger.Error().
		Err(lastErr).
		Str("error_class", string(errorClass)).
		Int("max_attempts", p.config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, p.config.MaxAttempts, lastErr)
}

// Retry executes fn under policy p and returns its value.
func Retry[T any](ctx context.Context, p *RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
