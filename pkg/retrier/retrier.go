// Package retrier implements exponential backoff with jitter for flaky
// network calls.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 3
	defaultJitter          = 0.1
)

// Retrier retries a function with exponentially growing pauses.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the first retry pause.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

// WithMaxInterval caps the retry pause.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// New creates a Retrier with defaults and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn until it succeeds, retries are exhausted, or ctx is canceled.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	interval := r.initialInterval

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			jitter := (rand.Float64()*2 - 1) * r.jitter * float64(interval)
			pause := time.Duration(float64(interval) + jitter)
			if pause < 0 {
				pause = 0
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}

			interval = time.Duration(float64(interval) * r.multiplier)
			if interval > r.maxInterval {
				interval = r.maxInterval
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return err
}

// DoWithData runs fn with retries and returns its value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
