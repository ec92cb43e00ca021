package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ideamans/go-sheetdash"
	"github.com/ideamans/go-sheetdash/layout"
	"github.com/ideamans/go-sheetdash/warehouse"
)

const (
	CategoryTable      = "yearly_category_level_dashboard"
	CategoryOrderTable = "category_orders"

	// CategorySheetCols covers the three category blocks up to column P
	// and a margin column.
	CategorySheetCols = 17

	IncomeAnchor = "B1"
	TotalsAnchor = "B4"

	IncomeGroup = "Income"
)

// Columns of CategoryTable
const (
	colCategoryName  = "category_name"
	colCategoryGroup = "category_group"
	colBudgetYear    = "budget_year"
	colSpend         = "spend"
	colAssigned      = "assigned"
	colOrderID       = "id"
)

// CategoryBlock is one Category/Assigned/Spend block of a year sheet
type CategoryBlock struct {
	Label  string   // header of the category column
	Anchor string   // top-left cell
	Groups []string // category groups listed in the block
}

// CategoryBlocks are the blocks of every year sheet, left to right
var CategoryBlocks = []CategoryBlock{
	{Label: "Needs", Anchor: "F2", Groups: []string{"Needs"}},
	{Label: "Wants", Anchor: "J2", Groups: []string{"Wants"}},
	{Label: "Other", Anchor: "N2", Groups: []string{"Savings", "Emergency Fund", "Investments"}},
}

// TotalsExcluded are the groups left out of the group totals block
var TotalsExcluded = []string{IncomeGroup, "Credit Card Payments"}

// YearlyCategoryPages writes one "<year> - Categories" sheet per budget
// year, newest first. Every sheet has the same height so the layout
// lines up across years.
type YearlyCategoryPages struct {
	Layout *layout.Layout
	Now    func() time.Time // picks the year of the empty sheet when there is no data
}

var _ Page = (*YearlyCategoryPages)(nil)

// Name implements Page
func (p *YearlyCategoryPages) Name() string {
	return "Yearly Categories"
}

// CategoryTitle returns the worksheet title for year
func CategoryTitle(year int) string {
	return fmt.Sprintf("%d - Categories", year)
}

type categoryEntry struct {
	name     string
	group    string
	year     int
	spend    interface{}
	assigned interface{}
}

// Build implements Page
func (p *YearlyCategoryPages) Build(ctx context.Context, b *sheetdash.Batcher, src warehouse.Source) ([]*sheetdash.Worksheet, error) {
	table, err := src.Fetch(ctx, CategoryTable, warehouse.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", CategoryTable, err)
	}
	order, err := loadCategoryOrder(ctx, src)
	if err != nil {
		return nil, err
	}

	byYear := make(map[int][]categoryEntry)
	for _, row := range table.Rows {
		year, ok := yearOf(row, colBudgetYear)
		if !ok {
			continue
		}
		byYear[year] = append(byYear[year], categoryEntry{
			name:     StripEmoji(row.GetAsString(colCategoryName, "")),
			group:    row.GetAsString(colCategoryGroup, ""),
			year:     year,
			spend:    amount(row, colSpend),
			assigned: amount(row, colAssigned),
		})
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	if len(years) == 0 {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		years = []int{now().Year()}
	}

	dataRows := tallestBlock(nil)
	for _, entries := range byYear {
		dataRows = max(dataRows, tallestBlock(entries))
	}
	rows, _ := SheetSize(dataRows, 0)
	cols := max(CategorySheetCols, layoutCols(p.Layout))

	var worksheets []*sheetdash.Worksheet
	for _, year := range years {
		ws, err := p.buildYear(ctx, b, year, byYear[year], order, rows, cols)
		if err != nil {
			return worksheets, err
		}
		worksheets = append(worksheets, ws)
	}
	return worksheets, nil
}

func (p *YearlyCategoryPages) buildYear(ctx context.Context, b *sheetdash.Batcher, year int, entries []categoryEntry, order *categoryOrder, rows, cols int) (*sheetdash.Worksheet, error) {
	title := CategoryTitle(year)
	ws, err := RefreshWorksheet(ctx, b, title, rows, cols)
	if err != nil {
		return nil, err
	}

	for _, cb := range CategoryBlocks {
		block := Block{Anchor: cb.Anchor, Header: []string{cb.Label, "Assigned", "Spend"}}
		picked := filterGroups(entries, cb.Groups)
		order.sortByName(picked)
		for _, e := range picked {
			block.Rows = append(block.Rows, []interface{}{e.name, e.assigned, e.spend})
		}
		if err := QueueBlock(b, title, block); err != nil {
			return nil, err
		}
	}

	totals := groupTotals(entries)

	income := Block{Anchor: IncomeAnchor, Header: []string{"", ""}}
	for _, t := range totals {
		if t.group == IncomeGroup {
			income.Rows = append(income.Rows, []interface{}{t.group, t.spend})
		}
	}
	if err := QueueBlock(b, title, income); err != nil {
		return nil, err
	}

	summary := Block{Anchor: TotalsAnchor, Header: []string{"", "Assigned", "Spend"}}
	var kept []groupTotal
	for _, t := range totals {
		if !contains(TotalsExcluded, t.group) {
			kept = append(kept, t)
		}
	}
	order.sortGroups(kept)
	for _, t := range kept {
		summary.Rows = append(summary.Rows, []interface{}{t.group, t.assigned, t.spend})
	}
	if err := QueueBlock(b, title, summary); err != nil {
		return nil, err
	}

	if err := QueueLayout(ctx, b, ws, p.Layout); err != nil {
		return nil, err
	}
	return ws, nil
}

// tallestBlock returns the data rows a year sheet needs: the longest
// category block, or the totals block below row 4 with the row for the
// timestamp.
func tallestBlock(entries []categoryEntry) int {
	tallest := 0
	for _, cb := range CategoryBlocks {
		tallest = max(tallest, len(filterGroups(entries, cb.Groups)))
	}
	groups := 0
	for _, t := range groupTotals(entries) {
		if !contains(TotalsExcluded, t.group) {
			groups++
		}
	}
	return max(tallest, groups+2)
}

type groupTotal struct {
	group    string
	assigned float64
	spend    float64
}

// groupTotals sums assigned and spend per group, in first-seen order.
// Empty amounts count as zero.
func groupTotals(entries []categoryEntry) []groupTotal {
	index := make(map[string]int)
	var totals []groupTotal
	for _, e := range entries {
		i, ok := index[e.group]
		if !ok {
			i = len(totals)
			index[e.group] = i
			totals = append(totals, groupTotal{group: e.group})
		}
		if v, ok := e.assigned.(float64); ok {
			totals[i].assigned += v
		}
		if v, ok := e.spend.(float64); ok {
			totals[i].spend += v
		}
	}
	return totals
}

func filterGroups(entries []categoryEntry, groups []string) []categoryEntry {
	var out []categoryEntry
	for _, e := range entries {
		if contains(groups, e.group) {
			out = append(out, e)
		}
	}
	return out
}

// categoryOrder ranks category names and groups by their first row in
// the category_orders table. Unranked values sort after ranked ones, by
// name.
type categoryOrder struct {
	names  map[string]int
	groups map[string]int
}

func loadCategoryOrder(ctx context.Context, src warehouse.Source) (*categoryOrder, error) {
	order := &categoryOrder{names: make(map[string]int), groups: make(map[string]int)}

	table, err := src.Fetch(ctx, CategoryOrderTable, warehouse.Query{
		OrderBy: []warehouse.Order{{Column: colOrderID}},
	})
	if errors.Is(err, warehouse.ErrTableNotFound) {
		return order, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", CategoryOrderTable, err)
	}

	for i, row := range table.Rows {
		if name := StripEmoji(row.GetAsString(colCategoryName, "")); name != "" {
			if _, ok := order.names[name]; !ok {
				order.names[name] = i
			}
		}
		if group := row.GetAsString(colCategoryGroup, ""); group != "" {
			if _, ok := order.groups[group]; !ok {
				order.groups[group] = i
			}
		}
	}
	return order, nil
}

func (o *categoryOrder) sortByName(entries []categoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return o.less(o.names, entries[i].name, entries[j].name)
	})
}

func (o *categoryOrder) sortGroups(totals []groupTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		return o.less(o.groups, totals[i].group, totals[j].group)
	})
}

func (o *categoryOrder) less(rank map[string]int, a, b string) bool {
	ra, okA := rank[a]
	rb, okB := rank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// StripEmoji removes emoji and their joiners and modifiers from s and
// trims the result.
func StripEmoji(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !isEmoji(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isEmoji(r rune) bool {
	switch {
	case r == 0x200D, r == 0x20E3: // zero width joiner, keycap
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	}
	return unicode.Is(unicode.So, r)
}

// yearOf reads a budget year stored as a date, a timestamp or a bare
// year number.
func yearOf(row *warehouse.Row, col string) (int, bool) {
	switch v := row.Values[col].(type) {
	case int:
		if v > 0 && v < 10000 {
			return v, true
		}
	case int64:
		if v > 0 && v < 10000 {
			return int(v), true
		}
	case float64:
		if v > 0 && v < 10000 && v == math.Trunc(v) {
			return int(v), true
		}
	case string:
		if year, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && year > 0 && year < 10000 {
			return year, true
		}
	}
	if t := row.GetAsTime(col, time.Time{}); !t.IsZero() {
		return t.Year(), true
	}
	return 0, false
}

// amount reads a money column; missing and non-finite values are nil
func amount(row *warehouse.Row, col string) interface{} {
	if v, ok := row.Get(col); !ok || v == nil {
		return nil
	}
	f := row.GetAsFloat64(col, math.NaN())
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
