package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ideamans/go-sheetdash"
	"github.com/ideamans/go-sheetdash/layout"
	"github.com/ideamans/go-sheetdash/warehouse"
)

// Grain is the period an overview row covers
type Grain string

const (
	Yearly  Grain = "yearly"
	Monthly Grain = "monthly"
)

// OverviewAnchor is the top-left cell of the overview block
const OverviewAnchor = "B2"

// Table returns the warehouse table holding one row per period
func (g Grain) Table() string {
	return string(g) + "_level_dashboard"
}

// Label returns the header of the period column: "Year" or "Month"
func (g Grain) Label() string {
	s := strings.TrimSuffix(string(g), "ly")
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Title returns the worksheet title, for example "Overview - Yearly"
func (g Grain) Title() string {
	s := string(g)
	if s == "" {
		return "Overview"
	}
	return "Overview - " + strings.ToUpper(s[:1]) + s[1:]
}

// Period formats t for the grain: "2024" or "1/2024"
func (g Grain) Period(t time.Time) string {
	if g == Monthly {
		return fmt.Sprintf("%d/%d", int(t.Month()), t.Year())
	}
	return strconv.Itoa(t.Year())
}

// OverviewPage writes one row per period of <grain>_level_dashboard,
// with the period in the first column.
type OverviewPage struct {
	Grain  Grain
	Titles []string // headers for the columns after the period; table names when the count differs
	Layout *layout.Layout
}

var _ Page = (*OverviewPage)(nil)

// Name implements Page
func (p *OverviewPage) Name() string {
	return p.Grain.Title()
}

// Build implements Page
func (p *OverviewPage) Build(ctx context.Context, b *sheetdash.Batcher, src warehouse.Source) ([]*sheetdash.Worksheet, error) {
	if p.Grain != Yearly && p.Grain != Monthly {
		return nil, fmt.Errorf("unknown grain %q", p.Grain)
	}

	table, err := src.Fetch(ctx, p.Grain.Table(), warehouse.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.Grain.Table(), err)
	}
	block := p.block(table)

	rows, cols := SheetSize(len(block.Rows), block.Width())
	cols = max(cols, layoutCols(p.Layout))

	title := p.Grain.Title()
	ws, err := RefreshWorksheet(ctx, b, title, rows, cols)
	if err != nil {
		return nil, err
	}

	if err := QueueBlock(b, title, block); err != nil {
		return nil, err
	}
	if width := block.Width(); width > 0 {
		if err := b.QueueColumnsAutoResize(ctx, 2, width+2, ws); err != nil {
			return nil, err
		}
	}
	if err := QueueLayout(ctx, b, ws, p.Layout); err != nil {
		return nil, err
	}
	return []*sheetdash.Worksheet{ws}, nil
}

func (p *OverviewPage) block(table *warehouse.Table) Block {
	block := Block{Anchor: OverviewAnchor, Header: []string{p.Grain.Label()}}
	if len(table.Columns) == 0 {
		return block
	}

	period, rest := table.Columns[0], table.Columns[1:]
	if len(p.Titles) == len(rest) {
		block.Header = append(block.Header, p.Titles...)
	} else {
		block.Header = append(block.Header, rest...)
	}

	values := table.Grid(rest...)
	for i, row := range table.Rows {
		line := make([]interface{}, 0, len(table.Columns))
		line = append(line, p.periodCell(row, period))
		block.Rows = append(block.Rows, append(line, values[i]...))
	}
	return block
}

// periodCell relabels the period; values that are not dates pass through
func (p *OverviewPage) periodCell(row *warehouse.Row, col string) interface{} {
	if t := row.GetAsTime(col, time.Time{}); !t.IsZero() {
		return p.Grain.Period(t)
	}
	v, _ := row.Get(col)
	return v
}
