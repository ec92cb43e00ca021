package sheetdash

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

// retryableStatus lists the statuses treated as transient
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Retrier runs remote calls with bounded exponential backoff
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func() time.Duration
}

// NewRetrier creates a retrier from the retry fields of config
func NewRetrier(config *Config) *Retrier {
	cfg := config.withDefaults()

	r := &Retrier{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		logger:     cfg.Logger,
		sleep:      cfg.Sleep,
		jitter:     cfg.Jitter,
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.jitter == nil {
		r.jitter = func() time.Duration {
			return time.Duration(rand.Int64N(int64(time.Second)))
		}
	}
	return r
}

// Do runs op until it succeeds, fails with a non-retryable status, or
// MaxRetries attempts have been made. The last error is returned as is.
func (r *Retrier) Do(ctx context.Context, description string, op func(context.Context) error) error {
	_, err := Execute(ctx, r, description, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute is Do for operations that return a result.
func Execute[T any](ctx context.Context, r *Retrier, description string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		status := StatusCode(err)
		if !IsRetryable(err) || attempt >= r.maxRetries-1 {
			r.logger.Error("api call failed",
				"operation", description,
				"status", status,
				"attempt", attempt+1,
				"max_attempts", r.maxRetries,
				"error", err,
			)
			return zero, err
		}

		delay := r.baseDelay*time.Duration(1<<uint(attempt)) + r.jitter()
		r.logger.Warn("api call failed, retrying",
			"operation", description,
			"status", status,
			"attempt", attempt+1,
			"max_attempts", r.maxRetries,
			"delay", delay.Round(100*time.Millisecond),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	// Unreachable: maxRetries is always at least 1.
	return zero, errors.New("retrier: no attempts made")
}

// StatusCode extracts the HTTP-like status carried by err, or 0
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode()
	}
	return 0
}

// IsRetryable reports whether err carries a transient status
func IsRetryable(err error) bool {
	return retryableStatus[StatusCode(err)]
}

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
