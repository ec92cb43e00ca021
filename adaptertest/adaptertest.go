// Package adaptertest holds the behaviour every sheetdash.Adapter must
// share. Backend packages call Run from their own tests.
package adaptertest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/ideamans/go-sheetdash"
)

// Factory returns a fresh, empty adapter for one subtest
type Factory func(t *testing.T) sheetdash.Adapter

// Run executes the conformance suite against adapters built by newAdapter
func Run(t *testing.T, newAdapter Factory) {
	t.Run("worksheet lifecycle", func(t *testing.T) { testLifecycle(t, newAdapter(t)) })
	t.Run("duplicate title rejected", func(t *testing.T) { testDuplicate(t, newAdapter(t)) })
	t.Run("unknown sheet id rejected", func(t *testing.T) { testUnknownSheet(t, newAdapter(t)) })
	t.Run("batched session", func(t *testing.T) { testSession(t, newAdapter(t)) })
	t.Run("refresh is repeatable", func(t *testing.T) { testRefresh(t, newAdapter(t)) })
}

func testLifecycle(t *testing.T, a sheetdash.Adapter) {
	ctx := context.Background()

	if _, err := a.Worksheet(ctx, "Conformance"); !errors.Is(err, sheetdash.ErrWorksheetNotFound) {
		t.Fatalf("Worksheet(missing) error = %v, want ErrWorksheetNotFound", err)
	}

	ws, err := a.AddWorksheet(ctx, "Conformance", 10, 5)
	if err != nil {
		t.Fatalf("AddWorksheet() error = %v", err)
	}
	if ws.Title != "Conformance" || ws.Rows != 10 || ws.Cols != 5 {
		t.Errorf("AddWorksheet() = %+v", ws)
	}

	got, err := a.Worksheet(ctx, "Conformance")
	if err != nil {
		t.Fatalf("Worksheet() error = %v", err)
	}
	if got.ID != ws.ID {
		t.Errorf("Worksheet().ID = %d, want %d", got.ID, ws.ID)
	}

	if err := a.DeleteWorksheet(ctx, ws.ID); err != nil {
		t.Fatalf("DeleteWorksheet() error = %v", err)
	}
	if _, err := a.Worksheet(ctx, "Conformance"); !errors.Is(err, sheetdash.ErrWorksheetNotFound) {
		t.Errorf("Worksheet(deleted) error = %v, want ErrWorksheetNotFound", err)
	}
}

func testDuplicate(t *testing.T, a sheetdash.Adapter) {
	ctx := context.Background()
	if _, err := a.AddWorksheet(ctx, "Twice", 3, 3); err != nil {
		t.Fatalf("AddWorksheet() error = %v", err)
	}
	_, err := a.AddWorksheet(ctx, "Twice", 3, 3)
	if sheetdash.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("AddWorksheet(duplicate) error = %v, want status 400", err)
	}
}

func testUnknownSheet(t *testing.T, a sheetdash.Adapter) {
	ctx := context.Background()
	if _, err := a.AddWorksheet(ctx, "Known", 3, 3); err != nil {
		t.Fatalf("AddWorksheet() error = %v", err)
	}

	gr, _ := sheetdash.GridRangeFromA1("A1", 987654)
	err := a.BatchUpdate(ctx, []*sheets.Request{{
		RepeatCell: &sheets.RepeatCellRequest{
			Range:  gr,
			Cell:   &sheets.CellData{UserEnteredFormat: sheetdash.Format{Bold: sheetdash.Bool(true)}.CellFormat()},
			Fields: "userEnteredFormat.textFormat",
		},
	}})
	if sheetdash.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("BatchUpdate(unknown sheet) error = %v, want status 400", err)
	}
	if sheetdash.IsRetryable(err) {
		t.Error("unknown sheet must not be retryable")
	}
}

func testSession(t *testing.T, a sheetdash.Adapter) {
	ctx := context.Background()
	ws, err := a.AddWorksheet(ctx, "Session", 8, 6)
	if err != nil {
		t.Fatalf("AddWorksheet() error = %v", err)
	}

	b := sheetdash.New(a, &sheetdash.Config{Sleep: func(context.Context, time.Duration) error { return nil }})
	b.RegisterWorksheet(ws)

	err = b.Session(ctx, func(b *sheetdash.Batcher) error {
		b.QueueValues(sheetdash.A1("Session", "B2"), sheetdash.Literal{
			{"Year", "Total"},
			{"2024", 12.5},
		})
		b.QueueValues(sheetdash.A1("Session", "B5"), sheetdash.Deferred(func() [][]interface{} {
			return [][]interface{}{{"Last updated", "2024-06-01 12:00:00"}}
		}))
		if err := b.QueueFormat(ctx, "B2:C2", sheetdash.Format{Bold: sheetdash.Bool(true), HorizontalAlignment: "CENTER"}, ws); err != nil {
			return err
		}
		if err := b.QueueBorder(ctx, "B2:C3", sheetdash.Borders{Bottom: &sheetdash.Border{}}, sheetdash.Title("Session")); err != nil {
			return err
		}
		if err := b.QueueColumnWidth(ctx, sheetdash.Letter("A"), 21, ws); err != nil {
			return err
		}
		if err := b.QueueColumnsAutoResize(ctx, 2, 4, ws); err != nil {
			return err
		}
		return b.QueueNotes(ctx, map[string]string{"C2": "Sum of all categories"}, sheetdash.SheetID(ws.ID))
	})
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
}

func testRefresh(t *testing.T, a sheetdash.Adapter) {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if existing, err := a.Worksheet(ctx, "Refresh"); err == nil {
			if err := a.DeleteWorksheet(ctx, existing.ID); err != nil {
				t.Fatalf("run %d: DeleteWorksheet() error = %v", i, err)
			}
		} else if !errors.Is(err, sheetdash.ErrWorksheetNotFound) {
			t.Fatalf("run %d: Worksheet() error = %v", i, err)
		}

		ws, err := a.AddWorksheet(ctx, "Refresh", 4, 4)
		if err != nil {
			t.Fatalf("run %d: AddWorksheet() error = %v", i, err)
		}
		if err := a.BatchUpdateValues(ctx, []*sheets.ValueRange{{
			Range:  sheetdash.A1(ws.Title, "A1"),
			Values: [][]interface{}{{"run", i}},
		}}); err != nil {
			t.Fatalf("run %d: BatchUpdateValues() error = %v", i, err)
		}
	}
}
