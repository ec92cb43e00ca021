package warehouse_test

import (
	"math"
	"testing"
	"time"

	"github.com/ideamans/go-sheetdash/warehouse"
)

func TestRow_GetAs(t *testing.T) {
	row := &warehouse.Row{Values: map[string]interface{}{
		"name":    "Groceries",
		"count":   int64(12),
		"count_s": "7",
		"total":   12.5,
		"raw":     []byte("bytes"),
		"when":    "2024-03-01",
		"epoch":   int64(0),
		"nothing": nil,
	}}

	if got := row.GetAsString("name", ""); got != "Groceries" {
		t.Errorf("GetAsString(name) = %q", got)
	}
	if got := row.GetAsString("count", ""); got != "12" {
		t.Errorf("GetAsString(count) = %q", got)
	}
	if got := row.GetAsString("raw", ""); got != "bytes" {
		t.Errorf("GetAsString(raw) = %q", got)
	}
	if got := row.GetAsString("nothing", "default"); got != "default" {
		t.Errorf("GetAsString(nothing) = %q, want default", got)
	}
	if got := row.GetAsInt64("count_s", -1); got != 7 {
		t.Errorf("GetAsInt64(count_s) = %d", got)
	}
	if got := row.GetAsInt64("name", -1); got != -1 {
		t.Errorf("GetAsInt64(name) = %d, want -1", got)
	}
	if got := row.GetAsFloat64("count", 0); got != 12 {
		t.Errorf("GetAsFloat64(count) = %v", got)
	}
	if got := row.GetAsTime("when", time.Time{}); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("GetAsTime(when) = %v", got)
	}
	if got := row.GetAsTime("epoch", time.Time{}); !got.Equal(time.Unix(0, 0)) {
		t.Errorf("GetAsTime(epoch) = %v", got)
	}
	if _, ok := row.Get("missing"); ok {
		t.Error("Get(missing) reported ok")
	}
}

func TestTable_Grid(t *testing.T) {
	table := &warehouse.Table{
		Columns: []string{"month", "total", "when"},
		Rows: []*warehouse.Row{
			{Values: map[string]interface{}{"month": "2024-01", "total": 10.0, "when": time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)}},
			{Values: map[string]interface{}{"month": "2024-02", "total": math.NaN()}},
			{Values: map[string]interface{}{"month": "2024-03", "total": math.Inf(1)}},
		},
	}

	grid := table.Grid()
	if len(grid) != 3 || len(grid[0]) != 3 {
		t.Fatalf("Grid() = %v", grid)
	}
	if grid[0][2] != "2024-01-31" {
		t.Errorf("time cell = %v, want 2024-01-31", grid[0][2])
	}
	if grid[1][1] != nil || grid[2][1] != nil {
		t.Errorf("non-finite totals = %v, %v; want nil", grid[1][1], grid[2][1])
	}
	if grid[1][2] != nil {
		t.Errorf("missing cell = %v, want nil", grid[1][2])
	}

	sub := table.Grid("total", "month")
	if sub[0][0] != 10.0 || sub[0][1] != "2024-01" {
		t.Errorf("Grid(total, month)[0] = %v", sub[0])
	}
}

func TestTable_Filter(t *testing.T) {
	table := &warehouse.Table{
		Columns: []string{"category"},
		Rows: []*warehouse.Row{
			{Values: map[string]interface{}{"category": "Needs"}},
			{Values: map[string]interface{}{"category": "Wants"}},
		},
	}
	out := table.Filter(func(r *warehouse.Row) bool { return r.GetAsString("category", "") == "Wants" })
	if out.Len() != 1 || out.Rows[0].GetAsString("category", "") != "Wants" {
		t.Errorf("Filter() = %v", out.Rows)
	}
	if len(out.Columns) != 1 {
		t.Errorf("Columns = %v", out.Columns)
	}
}
