// Package dashboard assembles spending dashboards from warehouse tables
// and queues them on a sheetdash.Batcher. Every page recreates its
// worksheets from scratch, so a run with the same data and clock always
// produces the same sheets.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ideamans/go-sheetdash"
	"github.com/ideamans/go-sheetdash/layout"
)

const (
	// RowMargin is added to the data row count: header plus one free row
	RowMargin = 3

	// ColMargin is added to the data column count: one free column on
	// each side
	ColMargin = 2

	TimestampLabel  = "Last updated"
	TimestampFormat = "2006-01-02 15:04:05"
)

// SheetSize returns the worksheet size for a block of data
func SheetSize(dataRows, dataCols int) (rows, cols int) {
	return dataRows + RowMargin, dataCols + ColMargin
}

// RefreshWorksheet replaces the worksheet called title with an empty
// one of the given size and registers it with b. A missing worksheet is
// not an error. Creation and re-fetch go through the batcher's retrier;
// their failures wrap ErrWorksheetSetup.
func RefreshWorksheet(ctx context.Context, b *sheetdash.Batcher, title string, rows, cols int) (*sheetdash.Worksheet, error) {
	adapter, retrier := b.Adapter(), b.Retrier()

	existing, err := sheetdash.Execute(ctx, retrier, fmt.Sprintf("get worksheet %q", title),
		func(ctx context.Context) (*sheetdash.Worksheet, error) {
			ws, err := adapter.Worksheet(ctx, title)
			if errors.Is(err, sheetdash.ErrWorksheetNotFound) {
				return nil, nil
			}
			return ws, err
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWorksheetSetup, title, err)
	}

	if existing != nil {
		err := retrier.Do(ctx, fmt.Sprintf("delete worksheet %q", title), func(ctx context.Context) error {
			err := adapter.DeleteWorksheet(ctx, existing.ID)
			if errors.Is(err, sheetdash.ErrWorksheetNotFound) {
				return nil
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWorksheetSetup, title, err)
		}
		b.Forget(title)
	}

	_, err = sheetdash.Execute(ctx, retrier, fmt.Sprintf("add worksheet %q", title),
		func(ctx context.Context) (*sheetdash.Worksheet, error) {
			return adapter.AddWorksheet(ctx, title, rows, cols)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWorksheetSetup, title, err)
	}

	ws, err := sheetdash.Execute(ctx, retrier, fmt.Sprintf("get worksheet %q", title),
		func(ctx context.Context) (*sheetdash.Worksheet, error) {
			return adapter.Worksheet(ctx, title)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWorksheetSetup, title, err)
	}

	b.RegisterWorksheet(ws)
	return ws, nil
}

// Block is a rectangle of data written with its top-left cell at Anchor.
// A nil Header writes no header row.
type Block struct {
	Anchor string
	Header []string
	Rows   [][]interface{}
}

// Width returns the number of columns the block spans
func (bl Block) Width() int {
	width := len(bl.Header)
	for _, row := range bl.Rows {
		width = max(width, len(row))
	}
	return width
}

// Height returns the number of rows the block spans, header included
func (bl Block) Height() int {
	if bl.Header == nil {
		return len(bl.Rows)
	}
	return len(bl.Rows) + 1
}

// Values returns the header and rows as one grid
func (bl Block) Values() [][]interface{} {
	values := make([][]interface{}, 0, bl.Height())
	if bl.Header != nil {
		header := make([]interface{}, len(bl.Header))
		for i, h := range bl.Header {
			header[i] = h
		}
		values = append(values, header)
	}
	return append(values, bl.Rows...)
}

// Range returns the A1 range the block covers on sheet
func (bl Block) Range(sheet string) (string, error) {
	col, row, err := sheetdash.ParseCell(bl.Anchor)
	if err != nil {
		return "", err
	}
	if col == 0 || row == 0 {
		return "", fmt.Errorf("%w: anchor %q must name a cell", sheetdash.ErrInvalidRange, bl.Anchor)
	}

	width, height := max(bl.Width(), 1), max(bl.Height(), 1)
	end := sheetdash.CellName(col+width-1, row+height-1)
	return sheetdash.A1(sheet, sheetdash.CellName(col, row)+":"+end), nil
}

// QueueBlock queues the values of block on sheet. An empty block queues
// nothing.
func QueueBlock(b *sheetdash.Batcher, sheet string, block Block) error {
	rng, err := block.Range(sheet)
	if err != nil {
		return err
	}
	if block.Height() == 0 {
		return nil
	}
	b.QueueValues(rng, sheetdash.Literal(block.Values()))
	return nil
}

// QueueLayout queues the formats, borders, notes and column widths of l
// against ws, in that order. A nil layout queues nothing.
func QueueLayout(ctx context.Context, b *sheetdash.Batcher, ws *sheetdash.Worksheet, l *layout.Layout) error {
	if l == nil {
		return nil
	}

	for _, rng := range l.FormatRanges() {
		if err := b.QueueFormat(ctx, rng, l.Formats[rng], ws); err != nil {
			return fmt.Errorf("format %s: %w", rng, err)
		}
	}
	for _, rng := range l.BorderRanges() {
		if err := b.QueueBorder(ctx, rng, l.Borders[rng], ws); err != nil {
			return fmt.Errorf("border %s: %w", rng, err)
		}
	}
	if len(l.Notes) > 0 {
		if err := b.QueueNotes(ctx, l.Notes, ws); err != nil {
			return fmt.Errorf("notes: %w", err)
		}
	}
	for _, col := range l.Columns() {
		if err := b.QueueColumnWidth(ctx, sheetdash.Letter(col), l.ColumnWidths[col], ws); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}
	return nil
}

// QueueTimestamp queues a "Last updated" label and time at cell. The
// time is read from clock when the batch is flushed.
func QueueTimestamp(b *sheetdash.Batcher, sheet, cell string, clock func() time.Time) {
	if clock == nil {
		clock = time.Now
	}
	b.QueueValues(sheetdash.A1(sheet, cell), sheetdash.Deferred(func() [][]interface{} {
		return [][]interface{}{{TimestampLabel, clock().Format(TimestampFormat)}}
	}))
}

// layoutCols returns the right-most column the layout sets a width for
func layoutCols(l *layout.Layout) int {
	if l == nil {
		return 0
	}
	widest := 0
	for col := range l.ColumnWidths {
		if index, err := sheetdash.ColumnLetterToIndex(col); err == nil {
			widest = max(widest, index)
		}
	}
	return widest
}
