package sheetdash

import (
	"context"

	"google.golang.org/api/sheets/v4"
)

// Worksheet is a handle to one tab of a spreadsheet
type Worksheet struct {
	ID    int64  // Numeric sheetId used by structured requests
	Title string // Tab title
	Rows  int    // Grid row count at creation
	Cols  int    // Grid column count at creation
}

// Adapter is the remote spreadsheet API consumed by the batcher and the
// dashboard assembler. One Adapter addresses exactly one spreadsheet.
type Adapter interface {
	// Worksheet looks up a worksheet by title. It returns an error
	// matching ErrWorksheetNotFound when no such tab exists.
	Worksheet(ctx context.Context, title string) (*Worksheet, error)

	// AddWorksheet creates an empty worksheet with the given grid size
	AddWorksheet(ctx context.Context, title string, rows, cols int) (*Worksheet, error)

	// DeleteWorksheet removes the worksheet with the given sheetId
	DeleteWorksheet(ctx context.Context, id int64) error

	// BatchUpdateValues writes several A1 ranges in one call
	BatchUpdateValues(ctx context.Context, data []*sheets.ValueRange) error

	// BatchUpdate applies structured requests in order in one call
	BatchUpdate(ctx context.Context, requests []*sheets.Request) error
}

// WorksheetRef identifies the worksheet a structured request targets.
// Title, SheetID and *Worksheet implement it.
type WorksheetRef interface {
	sheetID(ctx context.Context, b *Batcher) (int64, error)
}

// Title refers to a worksheet by its tab title. The id is looked up
// once per batcher and cached.
type Title string

// SheetID refers to a worksheet by its numeric sheetId.
type SheetID int64

func (t Title) sheetID(ctx context.Context, b *Batcher) (int64, error) {
	return b.lookupTitle(ctx, string(t))
}

func (id SheetID) sheetID(context.Context, *Batcher) (int64, error) {
	return int64(id), nil
}

func (w *Worksheet) sheetID(context.Context, *Batcher) (int64, error) {
	return w.ID, nil
}

// RequestSheetID returns the sheetId targeted by a request built by the
// batcher. Backends use it to validate a batch before applying it.
func RequestSheetID(r *sheets.Request) (int64, bool) {
	switch {
	case r == nil:
		return 0, false
	case r.RepeatCell != nil && r.RepeatCell.Range != nil:
		return r.RepeatCell.Range.SheetId, true
	case r.UpdateBorders != nil && r.UpdateBorders.Range != nil:
		return r.UpdateBorders.Range.SheetId, true
	case r.UpdateDimensionProperties != nil && r.UpdateDimensionProperties.Range != nil:
		return r.UpdateDimensionProperties.Range.SheetId, true
	case r.AutoResizeDimensions != nil && r.AutoResizeDimensions.Dimensions != nil:
		return r.AutoResizeDimensions.Dimensions.SheetId, true
	case r.UpdateCells != nil && r.UpdateCells.Range != nil:
		return r.UpdateCells.Range.SheetId, true
	}
	return 0, false
}
