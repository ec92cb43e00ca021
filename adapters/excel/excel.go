// Package excel provides a sheetdash.Adapter that renders dashboards into
// a local .xlsx workbook. Values, formats, borders, column widths and
// notes are applied with the closest Excel equivalent. The workbook is
// saved after every mutating call and reloaded from disk.
package excel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"

	"github.com/ideamans/go-sheetdash"
)

// worksheet tracks the sheetId and creation size the workbook cannot store
type worksheet struct {
	id   int64
	name string
	rows int
	cols int
}

// Adapter implements the sheetdash.Adapter interface for Excel files
type Adapter struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	file   *excelize.File
	sheets []*worksheet
	nextID int64
}

var _ sheetdash.Adapter = (*Adapter)(nil)

// New opens the workbook at config.FilePath, or starts a new one holding
// a single "Sheet1". Existing tabs get sheetIds in tab order.
func New(config *Config) (*Adapter, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &Adapter{config: *config, logger: config.Logger}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.config.Author == "" {
		a.config.Author = "sheetdash"
	}

	if _, err := os.Stat(config.FilePath); err == nil {
		f, err := excelize.OpenFile(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open Excel file: %w", err)
		}
		a.file = f
	} else {
		a.file = excelize.NewFile()
	}

	for _, name := range a.file.GetSheetList() {
		rows, cols := a.usedSize(name)
		a.sheets = append(a.sheets, &worksheet{id: a.nextID, name: name, rows: rows, cols: cols})
		a.nextID++
	}
	return a, nil
}

// Close releases the workbook
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// Worksheet implements sheetdash.Adapter
func (a *Adapter) Worksheet(ctx context.Context, title string) (*sheetdash.Worksheet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ws := a.byTitle(title)
	if ws == nil {
		return nil, fmt.Errorf("%w: %s", sheetdash.ErrWorksheetNotFound, title)
	}
	return ws.handle(), nil
}

// AddWorksheet implements sheetdash.Adapter
func (a *Adapter) AddWorksheet(ctx context.Context, title string, rows, cols int) (*sheetdash.Worksheet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.byTitle(title) != nil {
		return nil, badRequest("a sheet with the name %q already exists", title)
	}
	if rows <= 0 || cols <= 0 {
		return nil, badRequest("invalid grid size %dx%d", rows, cols)
	}

	index, err := a.file.NewSheet(title)
	if err != nil {
		return nil, badRequest("failed to create sheet %q: %v", title, err)
	}
	a.file.SetActiveSheet(index)

	ws := &worksheet{id: a.nextID, name: title, rows: rows, cols: cols}
	a.nextID++
	a.sheets = append(a.sheets, ws)

	if err := a.save(); err != nil {
		return nil, err
	}
	a.logger.Debug("worksheet added", "title", title, "id", ws.id)
	return ws.handle(), nil
}

// DeleteWorksheet implements sheetdash.Adapter. Like Sheets, a workbook
// keeps at least one tab.
func (a *Adapter) DeleteWorksheet(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	i := a.indexOf(id)
	if i < 0 {
		return badRequest("no grid with id: %d", id)
	}
	if len(a.sheets) == 1 {
		return badRequest("can't remove all the sheets in a document")
	}

	if err := a.file.DeleteSheet(a.sheets[i].name); err != nil {
		return fmt.Errorf("failed to delete sheet %q: %w", a.sheets[i].name, err)
	}
	a.sheets = append(a.sheets[:i], a.sheets[i+1:]...)
	return a.save()
}

// BatchUpdateValues implements sheetdash.Adapter
func (a *Adapter) BatchUpdateValues(ctx context.Context, data []*sheets.ValueRange) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, vr := range data {
		if err := a.write(vr.Range, vr.Values); err != nil {
			return err
		}
	}
	return a.save()
}

// BatchUpdate implements sheetdash.Adapter. The batch is validated before
// anything is applied.
func (a *Adapter) BatchUpdate(ctx context.Context, requests []*sheets.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	targets := make([]*worksheet, len(requests))
	for i, r := range requests {
		id, ok := sheetdash.RequestSheetID(r)
		if !ok {
			return badRequest("%v at index %d", ErrUnsupportedRequest, i)
		}
		if targets[i] = a.byID(id); targets[i] == nil {
			return badRequest("no grid with id: %d", id)
		}
	}

	for i, r := range requests {
		if err := a.apply(targets[i], r); err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
	}
	return a.save()
}

// write places a 2D block of values starting at the top-left cell of rng
func (a *Adapter) write(rng string, values [][]interface{}) error {
	title, cells := sheetdash.SplitSheet(rng)
	ws := a.byTitle(title)
	if ws == nil {
		return badRequest("unable to parse range: %s", rng)
	}

	start, _, _ := strings.Cut(cells, ":")
	col, row, err := sheetdash.ParseCell(start)
	if err != nil {
		return badRequest("unable to parse range: %s", rng)
	}
	if col == 0 {
		col = 1
	}
	if row == 0 {
		row = 1
	}

	for i, line := range values {
		for j, v := range line {
			cell := sheetdash.CellName(col+j, row+i)
			if err := a.setCell(ws.name, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", ws.name, cell, err)
			}
		}
	}
	return nil
}

// setCell stores v the way USER_ENTERED input is interpreted: formulas,
// numbers and booleans typed as text become typed cells.
func (a *Adapter) setCell(sheet, cell string, v interface{}) error {
	s, ok := v.(string)
	if !ok {
		return a.file.SetCellValue(sheet, cell, v)
	}

	switch {
	case s == "":
		return a.file.SetCellValue(sheet, cell, nil)
	case strings.HasPrefix(s, "="):
		return a.file.SetCellFormula(sheet, cell, s[1:])
	case strings.EqualFold(s, "TRUE"), strings.EqualFold(s, "FALSE"):
		return a.file.SetCellBool(sheet, cell, strings.EqualFold(s, "TRUE"))
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return a.file.SetCellFloat(sheet, cell, f, -1, 64)
	}
	return a.file.SetCellStr(sheet, cell, s)
}

func (a *Adapter) save() error {
	if err := os.MkdirAll(filepath.Dir(a.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := a.file.SaveAs(a.config.FilePath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	// An excelize.File is written once. Later calls work on the saved
	// workbook so styles from earlier calls are merged, not dropped.
	f, err := excelize.OpenFile(a.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to reopen Excel file: %w", err)
	}
	if err := a.file.Close(); err != nil {
		a.logger.Warn("failed to close workbook", "path", a.config.FilePath, "error", err)
	}
	a.file = f
	return nil
}

// usedSize returns the populated extent of a sheet
func (a *Adapter) usedSize(name string) (rows, cols int) {
	all, err := a.file.GetRows(name)
	if err != nil {
		return 0, 0
	}
	for _, r := range all {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return len(all), cols
}

func (a *Adapter) byTitle(title string) *worksheet {
	for _, ws := range a.sheets {
		if strings.EqualFold(ws.name, title) {
			return ws
		}
	}
	return nil
}

func (a *Adapter) byID(id int64) *worksheet {
	if i := a.indexOf(id); i >= 0 {
		return a.sheets[i]
	}
	return nil
}

func (a *Adapter) indexOf(id int64) int {
	for i, ws := range a.sheets {
		if ws.id == id {
			return i
		}
	}
	return -1
}

func (ws *worksheet) handle() *sheetdash.Worksheet {
	return &sheetdash.Worksheet{ID: ws.id, Title: ws.name, Rows: ws.rows, Cols: ws.cols}
}

func badRequest(format string, args ...interface{}) error {
	return &sheetdash.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}
