package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ideamans/go-sheetdash"
	"github.com/ideamans/go-sheetdash/warehouse"
)

// Page assembles one or more worksheets from warehouse tables. Build
// recreates its worksheets immediately and queues everything else on b.
type Page interface {
	Name() string
	Build(ctx context.Context, b *sheetdash.Batcher, src warehouse.Source) ([]*sheetdash.Worksheet, error)
}

// Config holds configuration for a Refresher
type Config struct {
	Clock         func() time.Time // Time written to the timestamp cells (default: time.Now)
	Logger        *slog.Logger     // Optional; discards when nil
	SkipTimestamp bool             // Do not queue "Last updated" cells
}

// Refresher runs pages against one spreadsheet in a single batch session
type Refresher struct {
	batcher *sheetdash.Batcher
	source  warehouse.Source
	pages   []Page
	clock   func() time.Time
	logger  *slog.Logger
	stamp   bool
}

// NewRefresher creates a refresher writing pages through b
func NewRefresher(b *sheetdash.Batcher, src warehouse.Source, pages []Page, config *Config) *Refresher {
	r := &Refresher{
		batcher: b,
		source:  src,
		pages:   pages,
		clock:   time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		stamp:   true,
	}
	if config != nil {
		if config.Clock != nil {
			r.clock = config.Clock
		}
		if config.Logger != nil {
			r.logger = config.Logger
		}
		r.stamp = !config.SkipTimestamp
	}
	return r
}

// Run builds every page and flushes once at the end. A page that fails
// or panics is logged and its queued operations are dropped; the other
// pages still run. Run returns a *RunError when the flush fails or when
// no page succeeded.
func (r *Refresher) Run(ctx context.Context) error {
	if len(r.pages) == 0 {
		return ErrNoPages
	}

	var failed []string
	var errs []error
	for _, page := range r.pages {
		start := time.Now()
		r.logger.Info("refreshing page", "page", page.Name())

		worksheets, err := r.runPage(ctx, page)
		if err != nil {
			r.logger.Error("page failed", "page", page.Name(), "error", err)
			failed = append(failed, page.Name())
			errs = append(errs, fmt.Errorf("%s: %w", page.Name(), err))
			continue
		}

		if r.stamp {
			for _, ws := range worksheets {
				QueueTimestamp(r.batcher, ws.Title, sheetdash.CellName(2, ws.Rows), r.clock)
			}
		}
		r.logger.Info("page queued",
			"page", page.Name(),
			"worksheets", len(worksheets),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}

	if len(failed) == len(r.pages) {
		r.batcher.Discard()
		return &RunError{Failed: failed, Err: errors.Join(errs...)}
	}

	if err := r.batcher.Flush(ctx); err != nil {
		return &RunError{Failed: failed, Err: err}
	}
	if len(failed) > 0 {
		r.logger.Warn("refresh finished with failed pages", "failed", failed)
	}
	return nil
}

// runPage builds one page behind its own recover boundary. Operations
// the page queued are dropped when it fails.
func (r *Refresher) runPage(ctx context.Context, page Page) (worksheets []*sheetdash.Worksheet, err error) {
	mark := r.batcher.Mark()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			values, requests := r.batcher.Rewind(mark)
			if values > 0 || requests > 0 {
				r.logger.Warn("dropping queued operations of failed page",
					"page", page.Name(),
					"value_updates", values,
					"batch_requests", requests,
				)
			}
			worksheets = nil
		}
	}()

	return page.Build(ctx, r.batcher, r.source)
}
