package sheetdash

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"google.golang.org/api/sheets/v4"
)

// valueWrite is a queued value update
type valueWrite struct {
	rng    string
	values Values
}

// Batcher queues spreadsheet operations and sends them in as few calls
// as the API limits allow. One Batcher serves one spreadsheet.
//
// Queue methods are safe for concurrent use. Flush sends a snapshot of
// the queues taken under the lock, so operations queued during a flush
// wait for the next one.
type Batcher struct {
	adapter Adapter
	retrier *Retrier
	logger  *slog.Logger
	cache   *worksheetCache

	mu       sync.Mutex
	values   []valueWrite
	requests []*sheets.Request
	gen      uint64 // bumped each time the queues are taken
}

// New creates a batcher for the spreadsheet behind adapter
func New(adapter Adapter, config *Config) *Batcher {
	cfg := config.withDefaults()

	return &Batcher{
		adapter: adapter,
		retrier: NewRetrier(&cfg),
		logger:  cfg.Logger,
		cache:   newWorksheetCache(),
	}
}

// Adapter returns the adapter the batcher writes through
func (b *Batcher) Adapter() Adapter {
	return b.adapter
}

// Retrier returns the retrier used for every remote call
func (b *Batcher) Retrier() *Retrier {
	return b.retrier
}

// RegisterWorksheet seeds the title cache so requests against ws need no
// lookup.
func (b *Batcher) RegisterWorksheet(ws *Worksheet) {
	b.cache.put(ws.Title, ws.ID)
}

// Forget drops a cached title, for worksheets that were deleted
func (b *Batcher) Forget(title string) {
	b.cache.forget(title)
}

// WorksheetID resolves ref to a sheetId
func (b *Batcher) WorksheetID(ctx context.Context, ref WorksheetRef) (int64, error) {
	if ref == nil {
		return 0, fmt.Errorf("nil worksheet reference")
	}
	return ref.sheetID(ctx, b)
}

func (b *Batcher) lookupTitle(ctx context.Context, title string) (int64, error) {
	if id, ok := b.cache.get(title); ok {
		return id, nil
	}

	ws, err := Execute(ctx, b.retrier, fmt.Sprintf("get worksheet %q", title),
		func(ctx context.Context) (*Worksheet, error) {
			return b.adapter.Worksheet(ctx, title)
		})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve worksheet %q: %w", title, err)
	}

	b.cache.put(ws.Title, ws.ID)
	return ws.ID, nil
}

// QueueValues queues a value write to an A1 range that names its sheet
func (b *Batcher) QueueValues(rng string, values Values) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.values = append(b.values, valueWrite{rng: rng, values: values})
}

// QueueFormat queues a repeatCell request applying format to rng
func (b *Batcher) QueueFormat(ctx context.Context, rng string, format Format, ws WorksheetRef) error {
	gr, err := b.gridRange(ctx, rng, ws)
	if err != nil {
		return err
	}

	b.enqueue(&sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range:  gr,
			Cell:   &sheets.CellData{UserEnteredFormat: format.CellFormat()},
			Fields: format.Fields(),
		},
	})
	return nil
}

// QueueBorder queues an updateBorders request for the sides set in borders
func (b *Batcher) QueueBorder(ctx context.Context, rng string, borders Borders, ws WorksheetRef) error {
	gr, err := b.gridRange(ctx, rng, ws)
	if err != nil {
		return err
	}

	b.enqueue(&sheets.Request{
		UpdateBorders: &sheets.UpdateBordersRequest{
			Range:  gr,
			Top:    borders.Top.toSheets(),
			Bottom: borders.Bottom.toSheets(),
			Left:   borders.Left.toSheets(),
			Right:  borders.Right.toSheets(),
		},
	})
	return nil
}

// QueueColumnWidth queues a pixel width for a single column
func (b *Batcher) QueueColumnWidth(ctx context.Context, column Column, width int, ws WorksheetRef) error {
	index, err := column.index()
	if err != nil {
		return err
	}
	id, err := b.WorksheetID(ctx, ws)
	if err != nil {
		return err
	}

	b.enqueue(&sheets.Request{
		UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range:      dimensionRange(id, index, index+1),
			Properties: &sheets.DimensionProperties{PixelSize: int64(width)},
			Fields:     "pixelSize",
		},
	})
	return nil
}

// QueueColumnsAutoResize queues auto-resizing of columns. start and end
// are 1-based and the range covers [start, end).
func (b *Batcher) QueueColumnsAutoResize(ctx context.Context, start, end int, ws WorksheetRef) error {
	if start < 1 || end <= start {
		return fmt.Errorf("%w: auto resize %d..%d", ErrInvalidColumn, start, end)
	}
	id, err := b.WorksheetID(ctx, ws)
	if err != nil {
		return err
	}

	b.enqueue(&sheets.Request{
		AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: dimensionRange(id, int64(start-1), int64(end-1)),
		},
	})
	return nil
}

// QueueNotes queues one note per cell, in cell order
func (b *Batcher) QueueNotes(ctx context.Context, notes map[string]string, ws WorksheetRef) error {
	id, err := b.WorksheetID(ctx, ws)
	if err != nil {
		return err
	}

	cells := make([]string, 0, len(notes))
	for cell := range notes {
		cells = append(cells, cell)
	}
	sort.Strings(cells)

	requests := make([]*sheets.Request, 0, len(cells))
	for _, cell := range cells {
		gr, err := GridRangeFromA1(cell, id)
		if err != nil {
			return err
		}
		requests = append(requests, &sheets.Request{
			UpdateCells: &sheets.UpdateCellsRequest{
				Range:  gr,
				Rows:   []*sheets.RowData{{Values: []*sheets.CellData{{Note: notes[cell]}}}},
				Fields: "note",
			},
		})
	}

	b.enqueue(requests...)
	return nil
}

// Pending returns the number of queued value writes and requests
func (b *Batcher) Pending() (values, requests int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.values), len(b.requests)
}

// Mark is a position in the batcher queues
type Mark struct {
	gen      uint64
	values   int
	requests int
}

// Mark returns the current end of both queues
func (b *Batcher) Mark() Mark {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Mark{gen: b.gen, values: len(b.values), requests: len(b.requests)}
}

// Rewind drops every operation queued after m. A mark taken before the
// last flush or discard rewinds nothing.
func (b *Batcher) Rewind(m Mark) (values, requests int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m.gen != b.gen {
		return 0, 0
	}
	if m.values < len(b.values) {
		values = len(b.values) - m.values
		b.values = b.values[:m.values]
	}
	if m.requests < len(b.requests) {
		requests = len(b.requests) - m.requests
		b.requests = b.requests[:m.requests]
	}
	return values, requests
}

// Discard drops everything queued without sending it
func (b *Batcher) Discard() {
	values, requests := b.take()
	if len(values) > 0 || len(requests) > 0 {
		b.logger.Warn("discarding batch",
			"value_updates", len(values),
			"batch_requests", len(requests),
		)
	}
}

// Flush sends all queued value writes, then all queued requests, each in
// FIFO chunks through the retrier. The queues are always emptied. The
// first chunk that fails aborts the flush and the operations after it
// are dropped.
func (b *Batcher) Flush(ctx context.Context) error {
	values, requests := b.take()

	b.logger.Info("flushing batch",
		"value_updates", len(values),
		"batch_requests", len(requests),
	)
	if len(values) == 0 && len(requests) == 0 {
		return nil
	}

	for i := 0; i < len(values); i += MaxValueRangesPerBatch {
		chunk := values[i:min(i+MaxValueRangesPerBatch, len(values))]

		// Deferred values are resolved here, once per flush.
		data := make([]*sheets.ValueRange, len(chunk))
		for j, v := range chunk {
			data[j] = &sheets.ValueRange{Range: v.rng, Values: v.values.resolve()}
		}

		description := fmt.Sprintf("values batch update (%d ranges)", len(data))
		err := b.retrier.Do(ctx, description, func(ctx context.Context) error {
			return b.adapter.BatchUpdateValues(ctx, data)
		})
		if err != nil {
			dropped := len(values) - i - len(chunk) + len(requests)
			return b.aborted(description, dropped, err)
		}
	}

	for i := 0; i < len(requests); i += MaxRequestsPerBatch {
		chunk := requests[i:min(i+MaxRequestsPerBatch, len(requests))]

		description := fmt.Sprintf("batch update (%d requests)", len(chunk))
		err := b.retrier.Do(ctx, description, func(ctx context.Context) error {
			return b.adapter.BatchUpdate(ctx, chunk)
		})
		if err != nil {
			return b.aborted(description, len(requests)-i-len(chunk), err)
		}
	}

	return nil
}

// Session runs fn and flushes when it returns nil. When fn returns an
// error or panics the queues are discarded and nothing is sent.
func (b *Batcher) Session(ctx context.Context, fn func(*Batcher) error) error {
	defer func() {
		if r := recover(); r != nil {
			b.Discard()
			panic(r)
		}
	}()

	if err := fn(b); err != nil {
		b.Discard()
		return err
	}
	return b.Flush(ctx)
}

func (b *Batcher) aborted(description string, dropped int, err error) error {
	b.logger.Error("flush aborted",
		"operation", description,
		"dropped", dropped,
		"error", err,
	)
	return fmt.Errorf("%w: %s failed, %d queued operations dropped: %w", ErrFlushAborted, description, dropped, err)
}

func (b *Batcher) take() ([]valueWrite, []*sheets.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	values, requests := b.values, b.requests
	b.values, b.requests = nil, nil
	b.gen++
	return values, requests
}

func (b *Batcher) enqueue(requests ...*sheets.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests = append(b.requests, requests...)
}

func (b *Batcher) gridRange(ctx context.Context, rng string, ws WorksheetRef) (*sheets.GridRange, error) {
	id, err := b.WorksheetID(ctx, ws)
	if err != nil {
		return nil, err
	}
	return GridRangeFromA1(rng, id)
}

func dimensionRange(sheetID, start, end int64) *sheets.DimensionRange {
	return &sheets.DimensionRange{
		SheetId:         sheetID,
		Dimension:       "COLUMNS",
		StartIndex:      start,
		EndIndex:        end,
		ForceSendFields: []string{"SheetId", "StartIndex", "EndIndex"},
	}
}
