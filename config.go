package sheetdash

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const (
	// MaxValueRangesPerBatch is the number of value ranges sent in one
	// values batch update call.
	MaxValueRangesPerBatch = 100

	// MaxRequestsPerBatch is the number of structured requests sent in one
	// batch update call.
	MaxRequestsPerBatch = 100

	DefaultMaxRetries = 5
	DefaultBaseDelay  = 2 * time.Second
)

// Config represents configuration for a Batcher
type Config struct {
	MaxRetries int           // Maximum number of attempts per remote call (default: 5)
	BaseDelay  time.Duration // Base delay for exponential backoff (default: 2s)
	Logger     *slog.Logger  // Receives flush and retry messages (default: discard)

	// Sleep and Jitter replace the real backoff clock. Tests set them to
	// avoid waiting.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() time.Duration
}

// withDefaults returns a copy of c with zero values replaced.
func (c *Config) withDefaults() Config {
	var cfg Config
	if c != nil {
		cfg = *c
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
