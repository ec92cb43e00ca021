package dashboard

import (
	"embed"
	"fmt"
	"time"

	"github.com/ideamans/go-sheetdash/layout"
)

//go:embed layouts/*.jsonc
var layouts embed.FS

// Built-in layout names
const (
	OverviewLayout   = "overview.jsonc"
	CategoriesLayout = "categories.jsonc"
)

// OverviewTitles are the headers of the 21 amount columns of the
// overview tables, after the period column.
var OverviewTitles = []string{
	"Pre-Tax Earnings",
	"Pre-Tax Deductions",
	"Taxes",
	"Retirement Fund Contribution",
	"HSA Contribution",
	"Post-Tax Deductions",
	"Total Deductions",
	"Net Pay",
	"Reimbursed Income",
	"Miscellaneous Income",
	"Total Income (Net to Account)",
	"Needs Spend",
	"Wants Spend",
	"Savings Spend",
	"Emergency Fund Spend",
	"Savings Saved",
	"Emergency Fund Saved",
	"Investments Saved",
	"Emergency Fund in HSA",
	"Total Spend",
	"Net Income",
}

// DefaultLayout loads one of the built-in layouts
func DefaultLayout(name string) (*layout.Layout, error) {
	l, err := layout.Load(layouts, "layouts/"+name)
	if err != nil {
		return nil, fmt.Errorf("built-in layout: %w", err)
	}
	return l, nil
}

// LayoutOverrides replaces built-in layouts with documents from disk.
// Empty paths keep the built-in one.
type LayoutOverrides struct {
	Overview   string
	Categories string
}

// DefaultPages returns the yearly and monthly overviews followed by the
// yearly category sheets. now picks the year of the empty category
// sheet when there is no data.
func DefaultPages(overrides LayoutOverrides, now func() time.Time) ([]Page, error) {
	overview, err := loadLayout(overrides.Overview, OverviewLayout)
	if err != nil {
		return nil, err
	}
	categories, err := loadLayout(overrides.Categories, CategoriesLayout)
	if err != nil {
		return nil, err
	}

	return []Page{
		&OverviewPage{Grain: Yearly, Titles: OverviewTitles, Layout: overview},
		&OverviewPage{Grain: Monthly, Titles: OverviewTitles, Layout: overview},
		&YearlyCategoryPages{Layout: categories, Now: now},
	}, nil
}

func loadLayout(path, builtin string) (*layout.Layout, error) {
	if path == "" {
		return DefaultLayout(builtin)
	}
	return layout.LoadFile(path)
}
