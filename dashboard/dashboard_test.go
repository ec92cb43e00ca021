package dashboard_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"reflect"
	"testing"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/ideamans/go-sheetdash"
	"github.com/ideamans/go-sheetdash/adapters/memory"
	"github.com/ideamans/go-sheetdash/dashboard"
	"github.com/ideamans/go-sheetdash/warehouse"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newBatcher(adapter sheetdash.Adapter) *sheetdash.Batcher {
	return sheetdash.New(adapter, &sheetdash.Config{MaxRetries: 3, Sleep: noSleep})
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

// spending returns the warehouse tables every page reads
func spending() *warehouse.Memory {
	src := warehouse.NewMemory()
	src.Put("yearly_level_dashboard", []string{"budget_year", "net_pay", "total_spend"},
		[]interface{}{"2023-01-01", 100.0, 40.0},
		[]interface{}{"2024-01-01", 120.0, math.NaN()},
	)
	src.Put("monthly_level_dashboard", []string{"budget_month", "net_pay", "total_spend"},
		[]interface{}{"2024-01-01", 10.0, 4.0},
		[]interface{}{"2024-02-01", 12.0, 5.0},
	)

	columns := []string{"category_name", "category_group", "budget_year", "spend", "assigned"}
	src.Put(dashboard.CategoryTable, columns,
		[]interface{}{"🏠 Rent", "Needs", "2024-01-01", 1200.0, 1200.0},
		[]interface{}{"🛒 Groceries", "Needs", "2024-01-01", 300.0, 350.0},
		[]interface{}{"Dining Out 🍕", "Wants", "2024-01-01", 80.0, 100.0},
		[]interface{}{"Emergency Fund", "Emergency Fund", "2024-01-01", 0.0, 500.0},
		[]interface{}{"Paycheck", "Income", "2024-01-01", 4000.0, 0.0},
		[]interface{}{"Visa", "Credit Card Payments", "2024-01-01", 900.0, 0.0},
		[]interface{}{"🏠 Rent", "Needs", "2023-01-01", 1100.0, 1100.0},
		[]interface{}{"Paycheck", "Income", "2023-01-01", 3500.0, nil},
	)
	src.Put(dashboard.CategoryOrderTable, []string{"id", "category_group", "subcategory_group", "category_name"},
		[]interface{}{int64(2), "Needs", "Home", "🛒 Groceries"},
		[]interface{}{int64(1), "Needs", "Home", "Rent"},
		[]interface{}{int64(3), "Wants", "Fun", "Dining Out"},
		[]interface{}{int64(4), "Emergency Fund", "", "Emergency Fund"},
	)
	return src
}

func TestSheetSize(t *testing.T) {
	tests := []struct {
		dataRows, dataCols int
		wantRows, wantCols int
	}{
		{0, 0, 3, 2},
		{10, 22, 13, 24},
	}
	for _, tt := range tests {
		rows, cols := dashboard.SheetSize(tt.dataRows, tt.dataCols)
		if rows != tt.wantRows || cols != tt.wantCols {
			t.Errorf("SheetSize(%d, %d) = %d, %d; want %d, %d",
				tt.dataRows, tt.dataCols, rows, cols, tt.wantRows, tt.wantCols)
		}
	}
}

func TestBlock_Range(t *testing.T) {
	tests := []struct {
		name    string
		block   dashboard.Block
		want    string
		wantErr bool
	}{
		{
			name:  "header and rows",
			block: dashboard.Block{Anchor: "F2", Header: []string{"Needs", "Assigned", "Spend"}, Rows: [][]interface{}{{"Rent", 1, 2}}},
			want:  "'2024 - Categories'!F2:H3",
		},
		{
			name:  "header only",
			block: dashboard.Block{Anchor: "B4", Header: []string{"", "Assigned", "Spend"}},
			want:  "'2024 - Categories'!B4:D4",
		},
		{
			name:  "ragged rows",
			block: dashboard.Block{Anchor: "B2", Rows: [][]interface{}{{1}, {1, 2, 3}}},
			want:  "'2024 - Categories'!B2:D3",
		},
		{name: "column anchor", block: dashboard.Block{Anchor: "B"}, wantErr: true},
		{name: "bad anchor", block: dashboard.Block{Anchor: "2B"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.block.Range("2024 - Categories")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Range() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Range() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRefreshWorksheet(t *testing.T) {
	ctx := context.Background()
	adapter := memory.New()
	b := newBatcher(adapter)

	first, err := dashboard.RefreshWorksheet(ctx, b, "Overview - Yearly", 5, 4)
	if err != nil {
		t.Fatalf("RefreshWorksheet() error = %v", err)
	}
	if err := adapter.BatchUpdateValues(ctx, []*sheets.ValueRange{{Range: "'Overview - Yearly'!A1", Values: [][]interface{}{{"stale"}}}}); err != nil {
		t.Fatal(err)
	}

	second, err := dashboard.RefreshWorksheet(ctx, b, "Overview - Yearly", 7, 4)
	if err != nil {
		t.Fatalf("RefreshWorksheet(existing) error = %v", err)
	}
	if second.ID == first.ID || second.Rows != 7 {
		t.Errorf("RefreshWorksheet(existing) = %+v, want a new 7 row sheet", second)
	}
	if grid := adapter.Grid("Overview - Yearly"); grid[0][0] != nil {
		t.Errorf("A1 = %v, want empty after refresh", grid[0][0])
	}

	// The batcher resolves the title to the new sheet without a lookup.
	lookups := adapter.Calls(memory.MethodWorksheet)
	id, err := b.WorksheetID(ctx, sheetdash.Title("Overview - Yearly"))
	if err != nil || id != second.ID {
		t.Errorf("WorksheetID() = %d, %v; want %d", id, err, second.ID)
	}
	if adapter.Calls(memory.MethodWorksheet) != lookups {
		t.Error("registered worksheet should not be looked up")
	}
}

func TestRefreshWorksheet_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("transient add is retried", func(t *testing.T) {
		adapter := memory.New()
		adapter.FailNext(memory.MethodAddWorksheet, http.StatusServiceUnavailable, 1)

		if _, err := dashboard.RefreshWorksheet(ctx, newBatcher(adapter), "Flaky", 3, 3); err != nil {
			t.Fatalf("RefreshWorksheet() error = %v", err)
		}
		if got := adapter.Calls(memory.MethodAddWorksheet); got != 2 {
			t.Errorf("add calls = %d, want 2", got)
		}
	})

	t.Run("rejected add is fatal", func(t *testing.T) {
		adapter := memory.New()
		adapter.FailNext(memory.MethodAddWorksheet, http.StatusBadRequest, 1)

		_, err := dashboard.RefreshWorksheet(ctx, newBatcher(adapter), "Rejected", 3, 3)
		if !errors.Is(err, dashboard.ErrWorksheetSetup) {
			t.Fatalf("RefreshWorksheet() error = %v, want ErrWorksheetSetup", err)
		}
		if sheetdash.StatusCode(err) != http.StatusBadRequest {
			t.Errorf("StatusCode() = %d, want 400", sheetdash.StatusCode(err))
		}
		if got := adapter.Calls(memory.MethodAddWorksheet); got != 1 {
			t.Errorf("add calls = %d, want 1", got)
		}
	})

	t.Run("re-fetch exhausted", func(t *testing.T) {
		failing := &failRefetch{Adapter: memory.New()}

		_, err := dashboard.RefreshWorksheet(ctx, newBatcher(failing), "Doomed", 3, 3)
		if !errors.Is(err, dashboard.ErrWorksheetSetup) {
			t.Fatalf("RefreshWorksheet() error = %v, want ErrWorksheetSetup", err)
		}
		if failing.refetches != 3 {
			t.Errorf("re-fetch attempts = %d, want 3", failing.refetches)
		}
	})
}

// failRefetch finds no worksheet before it is created and then fails
// every lookup with 503
type failRefetch struct {
	*memory.Adapter
	created   bool
	refetches int
}

func (f *failRefetch) AddWorksheet(ctx context.Context, title string, rows, cols int) (*sheetdash.Worksheet, error) {
	f.created = true
	return f.Adapter.AddWorksheet(ctx, title, rows, cols)
}

func (f *failRefetch) Worksheet(ctx context.Context, title string) (*sheetdash.Worksheet, error) {
	if !f.created {
		return f.Adapter.Worksheet(ctx, title)
	}
	f.refetches++
	return nil, &sheetdash.APIError{Code: http.StatusServiceUnavailable}
}

func TestQueueTimestamp(t *testing.T) {
	ctx := context.Background()
	adapter := memory.New()
	b := newBatcher(adapter)
	if _, err := dashboard.RefreshWorksheet(ctx, b, "Stamp", 3, 4); err != nil {
		t.Fatal(err)
	}

	calls := 0
	clock := func() time.Time {
		calls++
		return fixedClock()
	}
	dashboard.QueueTimestamp(b, "Stamp", "B3", clock)
	if calls != 0 {
		t.Fatalf("clock read %d times before flush", calls)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("clock read %d times, want 1", calls)
	}

	grid := adapter.Grid("Stamp")
	if grid[2][1] != dashboard.TimestampLabel || grid[2][2] != "2024-06-01 12:00:00" {
		t.Errorf("row 3 = %v", grid[2])
	}
}

func TestGrain(t *testing.T) {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		grain      dashboard.Grain
		wantTitle  string
		wantLabel  string
		wantTable  string
		wantPeriod string
	}{
		{dashboard.Yearly, "Overview - Yearly", "Year", "yearly_level_dashboard", "2024"},
		{dashboard.Monthly, "Overview - Monthly", "Month", "monthly_level_dashboard", "1/2024"},
	}
	for _, tt := range tests {
		t.Run(string(tt.grain), func(t *testing.T) {
			if got := tt.grain.Title(); got != tt.wantTitle {
				t.Errorf("Title() = %q, want %q", got, tt.wantTitle)
			}
			if got := tt.grain.Label(); got != tt.wantLabel {
				t.Errorf("Label() = %q, want %q", got, tt.wantLabel)
			}
			if got := tt.grain.Table(); got != tt.wantTable {
				t.Errorf("Table() = %q, want %q", got, tt.wantTable)
			}
			if got := tt.grain.Period(jan); got != tt.wantPeriod {
				t.Errorf("Period() = %q, want %q", got, tt.wantPeriod)
			}
		})
	}
}

func TestOverviewPage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		page   *dashboard.OverviewPage
		title  string
		header []interface{}
		rows   [][]interface{}
	}{
		{
			name:   "yearly with titles",
			page:   &dashboard.OverviewPage{Grain: dashboard.Yearly, Titles: []string{"Net Pay", "Total Spend"}},
			title:  "Overview - Yearly",
			header: []interface{}{nil, "Year", "Net Pay", "Total Spend", nil},
			rows: [][]interface{}{
				{nil, "2023", 100.0, 40.0, nil},
				{nil, "2024", 120.0, nil, nil},
			},
		},
		{
			name:   "monthly keeps table names when titles do not fit",
			page:   &dashboard.OverviewPage{Grain: dashboard.Monthly, Titles: []string{"only one"}},
			title:  "Overview - Monthly",
			header: []interface{}{nil, "Month", "net_pay", "total_spend", nil},
			rows: [][]interface{}{
				{nil, "1/2024", 10.0, 4.0, nil},
				{nil, "2/2024", 12.0, 5.0, nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := memory.New()
			b := newBatcher(adapter)

			worksheets, err := tt.page.Build(ctx, b, spending())
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if len(worksheets) != 1 || worksheets[0].Rows != 5 || worksheets[0].Cols != 5 {
				t.Fatalf("Build() = %+v, want one 5x5 sheet", worksheets)
			}
			if err := b.Flush(ctx); err != nil {
				t.Fatal(err)
			}

			grid := adapter.Grid(tt.title)
			if !reflect.DeepEqual(grid[1], tt.header) {
				t.Errorf("header = %v, want %v", grid[1], tt.header)
			}
			if !reflect.DeepEqual(grid[2:4], tt.rows) {
				t.Errorf("rows = %v, want %v", grid[2:4], tt.rows)
			}

			// Auto-resize of the data columns is the only structured request.
			s, _ := adapter.Sheet(tt.title)
			if len(s.Requests) != 1 || s.Requests[0].AutoResizeDimensions == nil {
				t.Fatalf("requests = %+v", s.Requests)
			}
			if dims := s.Requests[0].AutoResizeDimensions.Dimensions; dims.StartIndex != 1 || dims.EndIndex != 4 {
				t.Errorf("auto resize = [%d, %d), want [1, 4)", dims.StartIndex, dims.EndIndex)
			}
		})
	}
}

func TestOverviewPage_MissingTable(t *testing.T) {
	adapter := memory.New()
	_, err := (&dashboard.OverviewPage{Grain: dashboard.Yearly}).Build(context.Background(), newBatcher(adapter), warehouse.NewMemory())
	if !errors.Is(err, warehouse.ErrTableNotFound) {
		t.Fatalf("Build() error = %v, want ErrTableNotFound", err)
	}
	if got := adapter.Titles(); len(got) != 0 {
		t.Errorf("worksheets = %v, want none", got)
	}
}

func TestYearlyCategoryPages(t *testing.T) {
	ctx := context.Background()
	adapter := memory.New()
	b := newBatcher(adapter)

	worksheets, err := (&dashboard.YearlyCategoryPages{}).Build(ctx, b, spending())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if got := adapter.Titles(); !reflect.DeepEqual(got, []string{"2024 - Categories", "2023 - Categories"}) {
		t.Fatalf("Titles() = %v, newest first", got)
	}
	// 2024 needs the totals block below row 4: three groups plus two rows.
	for _, ws := range worksheets {
		if ws.Rows != 8 || ws.Cols != dashboard.CategorySheetCols {
			t.Errorf("%s size = %dx%d, want 8x17", ws.Title, ws.Rows, ws.Cols)
		}
	}

	grid := adapter.Grid("2024 - Categories")
	tests := []struct {
		cell string
		want interface{}
	}{
		{"F2", "Needs"},
		{"G2", "Assigned"},
		{"F3", "Rent"},
		{"G3", 1200.0},
		{"F4", "Groceries"},
		{"G4", 350.0},
		{"H4", 300.0},
		{"J2", "Wants"},
		{"J3", "Dining Out"},
		{"N2", "Other"},
		{"N3", "Emergency Fund"},
		{"O3", 500.0},
		{"P3", 0.0},
		{"B1", nil},
		{"B2", "Income"},
		{"C2", 4000.0},
		{"C4", "Assigned"},
		{"B5", "Needs"},
		{"C5", 1550.0},
		{"D5", 1500.0},
		{"B6", "Wants"},
		{"B7", "Emergency Fund"},
		{"B8", nil},
	}
	for _, tt := range tests {
		col, row, _ := sheetdash.ParseCell(tt.cell)
		if got := grid[row-1][col-1]; got != tt.want {
			t.Errorf("%s = %v, want %v", tt.cell, got, tt.want)
		}
	}

	older := adapter.Grid("2023 - Categories")
	if older[2][5] != "Rent" || older[1][2] != 3500.0 {
		t.Errorf("2023 sheet = %v", older)
	}
}

func TestYearlyCategoryPages_WithoutOrderTable(t *testing.T) {
	src := warehouse.NewMemory()
	src.Put(dashboard.CategoryTable, []string{"category_name", "category_group", "budget_year", "spend", "assigned"},
		[]interface{}{"Water", "Needs", int64(2024), 10.0, 10.0},
		[]interface{}{"Electric", "Needs", int64(2024), 20.0, 20.0},
	)

	adapter := memory.New()
	b := newBatcher(adapter)
	if _, err := (&dashboard.YearlyCategoryPages{}).Build(context.Background(), b, src); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	grid := adapter.Grid("2024 - Categories")
	if grid[2][5] != "Electric" || grid[3][5] != "Water" {
		t.Errorf("unranked categories should sort by name: %v, %v", grid[2][5], grid[3][5])
	}
}

func TestYearlyCategoryPages_NoData(t *testing.T) {
	src := warehouse.NewMemory()
	src.Put(dashboard.CategoryTable, []string{"category_name", "category_group", "budget_year", "spend", "assigned"})

	adapter := memory.New()
	page := &dashboard.YearlyCategoryPages{Now: fixedClock}
	worksheets, err := page.Build(context.Background(), newBatcher(adapter), src)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(worksheets) != 1 || worksheets[0].Title != "2024 - Categories" {
		t.Fatalf("Build() = %+v, want one empty 2024 sheet", worksheets)
	}
	if worksheets[0].Rows != 5 {
		t.Errorf("Rows = %d, want 5", worksheets[0].Rows)
	}
}

func TestStripEmoji(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"\U0001F3E0 Rent", "Rent"},
		{"Dining Out \U0001F355", "Dining Out"},
		{"\U0001F469\u200D\U0001F469\u200D\U0001F467 Family", "Family"},
		{"\U0001F44D\U0001F3FD Tips", "Tips"},
		{"\u2764\uFE0F Charity", "Charity"},
		{"Plain Groceries", "Plain Groceries"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := dashboard.StripEmoji(tt.in); got != tt.want {
			t.Errorf("StripEmoji(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
