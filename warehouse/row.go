package warehouse

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Row is one result row keyed by column name
type Row struct {
	Values map[string]interface{}
}

// Get returns the raw value of col
func (r *Row) Get(col string) (interface{}, bool) {
	v, ok := r.Values[col]
	return v, ok
}

// GetAsString returns the value as string or defaultValue if not found
func (r *Row) GetAsString(col string, defaultValue string) string {
	v, ok := r.Values[col]
	if !ok || v == nil {
		return defaultValue
	}

	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// GetAsInt64 returns the value as int64 or defaultValue if not found
func (r *Row) GetAsInt64(col string, defaultValue int64) int64 {
	switch val := r.Values[col].(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetAsFloat64 returns the value as float64 or defaultValue if not found
func (r *Row) GetAsFloat64(col string, defaultValue float64) float64 {
	switch val := r.Values[col].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetAsTime returns the value as time.Time or defaultValue if not found.
// Text values are parsed as RFC 3339, "2006-01-02 15:04:05" or
// "2006-01-02"; integers are Unix seconds.
func (r *Row) GetAsTime(col string, defaultValue time.Time) time.Time {
	switch val := r.Values[col].(type) {
	case time.Time:
		return val
	case int64:
		return time.Unix(val, 0).UTC()
	case string:
		formats := []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02",
		}
		for _, format := range formats {
			if t, err := time.Parse(format, val); err == nil {
				return t
			}
		}
	}
	return defaultValue
}

// Table is the result of a fetch: ordered column names and rows
type Table struct {
	Columns []string
	Rows    []*Row
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Grid returns the rows as a 2D array in the order of columns. With no
// columns given, every table column is used.
func (t *Table) Grid(columns ...string) [][]interface{} {
	if len(columns) == 0 {
		columns = t.Columns
	}

	grid := make([][]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		line := make([]interface{}, len(columns))
		for j, col := range columns {
			line[j] = cellValue(row.Values[col])
		}
		grid[i] = line
	}
	return grid
}

// Filter returns a table holding the rows for which keep is true
func (t *Table) Filter(keep func(*Row) bool) *Table {
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// cellValue normalizes a value for a spreadsheet cell. Non-finite
// floats become empty cells.
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02")
	}
	return v
}
