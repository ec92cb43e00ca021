// Package memory provides an in-memory sheetdash.Adapter. It keeps a
// value grid per worksheet, records every call, and can be told to fail
// upcoming calls with a status code.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/ideamans/go-sheetdash"
	"google.golang.org/api/sheets/v4"
)

// Method names used in the call log and for fault injection
const (
	MethodWorksheet         = "Worksheet"
	MethodAddWorksheet      = "AddWorksheet"
	MethodDeleteWorksheet   = "DeleteWorksheet"
	MethodBatchUpdateValues = "BatchUpdateValues"
	MethodBatchUpdate       = "BatchUpdate"
)

// Call is one recorded adapter call
type Call struct {
	Method string
	Size   int // ranges or requests carried by the call
}

// Sheet is the stored state of one worksheet
type Sheet struct {
	ID       int64
	Title    string
	Rows     int
	Cols     int
	Cells    map[[2]int]interface{} // [row, col], 0-based
	Requests []*sheets.Request
}

// Adapter implements sheetdash.Adapter in memory
type Adapter struct {
	mu     sync.Mutex
	nextID int64
	sheets map[int64]*Sheet
	calls  []Call
	faults map[string][]int
}

// New creates an empty in-memory spreadsheet
func New() *Adapter {
	return &Adapter{
		nextID: 1,
		sheets: make(map[int64]*Sheet),
		faults: make(map[string][]int),
	}
}

// FailNext makes the next n calls to method fail with status
func (a *Adapter) FailNext(method string, status, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < n; i++ {
		a.faults[method] = append(a.faults[method], status)
	}
}

// Calls returns the number of calls made to method
func (a *Adapter) Calls(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, c := range a.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// CallLog returns a copy of every recorded call in order
func (a *Adapter) CallLog() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Call(nil), a.calls...)
}

// Sheet returns a copy of the stored worksheet with the given title
func (a *Adapter) Sheet(title string) (*Sheet, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.byTitle(title)
	if s == nil {
		return nil, false
	}

	c := *s
	c.Cells = make(map[[2]int]interface{}, len(s.Cells))
	for k, v := range s.Cells {
		c.Cells[k] = v
	}
	c.Requests = append([]*sheets.Request(nil), s.Requests...)
	return &c, true
}

// Titles returns the worksheet titles in creation order
func (a *Adapter) Titles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]int64, 0, len(a.sheets))
	for id := range a.sheets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	titles := make([]string, len(ids))
	for i, id := range ids {
		titles[i] = a.sheets[id].Title
	}
	return titles
}

// Grid renders a stored worksheet as a Rows x Cols grid, with nil for
// empty cells.
func (a *Adapter) Grid(title string) [][]interface{} {
	s, ok := a.Sheet(title)
	if !ok {
		return nil
	}

	grid := make([][]interface{}, s.Rows)
	for r := range grid {
		grid[r] = make([]interface{}, s.Cols)
		for c := range grid[r] {
			grid[r][c] = s.Cells[[2]int{r, c}]
		}
	}
	return grid
}

// Worksheet implements sheetdash.Adapter
func (a *Adapter) Worksheet(_ context.Context, title string) (*sheetdash.Worksheet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.record(MethodWorksheet, 1); err != nil {
		return nil, err
	}

	s := a.byTitle(title)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", sheetdash.ErrWorksheetNotFound, title)
	}
	return handle(s), nil
}

// AddWorksheet implements sheetdash.Adapter
func (a *Adapter) AddWorksheet(_ context.Context, title string, rows, cols int) (*sheetdash.Worksheet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.record(MethodAddWorksheet, 1); err != nil {
		return nil, err
	}
	if a.byTitle(title) != nil {
		return nil, &sheetdash.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf("a sheet with the name %q already exists", title)}
	}
	if rows < 1 || cols < 1 {
		return nil, &sheetdash.APIError{Code: http.StatusBadRequest, Message: "grid size must be positive"}
	}

	s := &Sheet{
		ID:    a.nextID,
		Title: title,
		Rows:  rows,
		Cols:  cols,
		Cells: make(map[[2]int]interface{}),
	}
	a.nextID++
	a.sheets[s.ID] = s
	return handle(s), nil
}

// DeleteWorksheet implements sheetdash.Adapter
func (a *Adapter) DeleteWorksheet(_ context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.record(MethodDeleteWorksheet, 1); err != nil {
		return err
	}
	if _, ok := a.sheets[id]; !ok {
		return fmt.Errorf("%w: id %d", sheetdash.ErrWorksheetNotFound, id)
	}
	delete(a.sheets, id)
	return nil
}

// BatchUpdateValues implements sheetdash.Adapter
func (a *Adapter) BatchUpdateValues(_ context.Context, data []*sheets.ValueRange) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.record(MethodBatchUpdateValues, len(data)); err != nil {
		return err
	}
	for _, vr := range data {
		if err := a.write(vr.Range, vr.Values); err != nil {
			return err
		}
	}
	return nil
}

// BatchUpdate implements sheetdash.Adapter. Requests are stored against
// their target sheet; none of them change cell values.
func (a *Adapter) BatchUpdate(_ context.Context, requests []*sheets.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.record(MethodBatchUpdate, len(requests)); err != nil {
		return err
	}

	// Validate all first so a bad request leaves the batch unapplied.
	targets := make([]*Sheet, len(requests))
	for i, r := range requests {
		id, ok := sheetdash.RequestSheetID(r)
		if !ok {
			return &sheetdash.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf("unsupported request at index %d", i)}
		}
		s, exists := a.sheets[id]
		if !exists {
			return &sheetdash.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf("no grid with id: %d", id)}
		}
		targets[i] = s
	}
	for i, r := range requests {
		targets[i].Requests = append(targets[i].Requests, r)
	}
	return nil
}

// record logs the call and pops a pending fault for method
func (a *Adapter) record(method string, size int) error {
	a.calls = append(a.calls, Call{Method: method, Size: size})

	if pending := a.faults[method]; len(pending) > 0 {
		status := pending[0]
		a.faults[method] = pending[1:]
		return &sheetdash.APIError{Code: status}
	}
	return nil
}

func (a *Adapter) write(rng string, values [][]interface{}) error {
	title, cells := sheetdash.SplitSheet(rng)
	s := a.byTitle(title)
	if s == nil {
		return &sheetdash.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf("unable to parse range: %s", rng)}
	}

	gr, err := sheetdash.GridRangeFromA1(cells, s.ID)
	if err != nil {
		return &sheetdash.APIError{Code: http.StatusBadRequest, Message: err.Error()}
	}

	for r, row := range values {
		for c, v := range row {
			rowIndex := int(gr.StartRowIndex) + r
			colIndex := int(gr.StartColumnIndex) + c
			if rowIndex >= s.Rows || colIndex >= s.Cols {
				return &sheetdash.APIError{Code: http.StatusBadRequest, Message: fmt.Sprintf("range %s exceeds grid limits", rng)}
			}
			if v == nil || v == "" {
				delete(s.Cells, [2]int{rowIndex, colIndex})
				continue
			}
			s.Cells[[2]int{rowIndex, colIndex}] = v
		}
	}
	return nil
}

func (a *Adapter) byTitle(title string) *Sheet {
	for _, s := range a.sheets {
		if s.Title == title {
			return s
		}
	}
	return nil
}

func handle(s *Sheet) *sheetdash.Worksheet {
	return &sheetdash.Worksheet{ID: s.ID, Title: s.Title, Rows: s.Rows, Cols: s.Cols}
}
