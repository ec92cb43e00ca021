package warehouse

import (
	"fmt"
	"sort"
	"strings"
)

// Condition represents a single query condition
type Condition struct {
	Column   string      // Column name
	Operator string      // ==, !=, >, >=, <, <=, in, between
	Value    interface{} // []interface{} for in, [2]interface{} for between
}

// Order sorts results by one column
type Order struct {
	Column string
	Desc   bool
}

// Query filters and orders the rows of a table. Conditions are ANDed.
type Query struct {
	Conditions []Condition
	OrderBy    []Order
	Limit      int
	Offset     int
}

// Where is shorthand for a Query with only conditions
func Where(conditions ...Condition) Query {
	return Query{Conditions: conditions}
}

var validOperators = []string{"==", "!=", ">", ">=", "<", "<=", "in", "between"}

// evalCondition evaluates a single condition against a row
func evalCondition(row *Row, condition Condition) bool {
	// A missing column compares as null.
	value := row.Values[condition.Column]

	switch condition.Operator {
	case "==":
		return compareEqual(value, condition.Value)
	case "!=":
		return !compareEqual(value, condition.Value)
	case ">":
		return compareOrdered(value, condition.Value, func(c int) bool { return c > 0 })
	case ">=":
		return compareOrdered(value, condition.Value, func(c int) bool { return c >= 0 })
	case "<":
		return compareOrdered(value, condition.Value, func(c int) bool { return c < 0 })
	case "<=":
		return compareOrdered(value, condition.Value, func(c int) bool { return c <= 0 })
	case "in":
		return compareIn(value, condition.Value)
	case "between":
		return compareBetween(value, condition.Value)
	default:
		return false
	}
}

// Matches checks if a row matches all conditions in the query
func (r *Row) Matches(query Query) bool {
	for _, condition := range query.Conditions {
		if !evalCondition(r, condition) {
			return false
		}
	}
	return true
}

// compareEqual compares two values for equality
func compareEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if isNumeric(a) && isNumeric(b) {
		return toFloat64(a) == toFloat64(b)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues orders two values: numbers numerically, strings
// lexically. ok is false when they cannot be compared.
func compareValues(a, b interface{}) (c int, ok bool) {
	if isNumeric(a) && isNumeric(b) {
		x, y := toFloat64(a), toFloat64(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}

	x, aok := a.(string)
	y, bok := b.(string)
	if aok && bok {
		return strings.Compare(x, y), true
	}
	return 0, false
}

func compareOrdered(a, b interface{}, accept func(int) bool) bool {
	c, ok := compareValues(a, b)
	return ok && accept(c)
}

// compareIn checks if a is in the list b
func compareIn(a, b interface{}) bool {
	list, ok := b.([]interface{})
	if !ok {
		return false
	}

	for _, item := range list {
		if compareEqual(a, item) {
			return true
		}
	}
	return false
}

// compareBetween checks if a is between b[0] and b[1], inclusive
func compareBetween(a, b interface{}) bool {
	min, max, ok := bounds(b)
	if !ok {
		return false
	}
	return compareOrdered(a, min, func(c int) bool { return c >= 0 }) &&
		compareOrdered(a, max, func(c int) bool { return c <= 0 })
}

func bounds(v interface{}) (min, max interface{}, ok bool) {
	switch b := v.(type) {
	case [2]interface{}:
		return b[0], b[1], true
	case []interface{}:
		if len(b) == 2 {
			return b[0], b[1], true
		}
	}
	return nil, nil, false
}

// isNumeric checks if a value is numeric
func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// toFloat64 converts a numeric value to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}

// Apply filters, orders and pages rows in memory
func Apply(rows []*Row, query Query) []*Row {
	results := []*Row{}
	for _, row := range rows {
		if row.Matches(query) {
			results = append(results, row)
		}
	}

	if len(query.OrderBy) > 0 {
		sort.SliceStable(results, func(i, j int) bool {
			for _, o := range query.OrderBy {
				c, ok := compareValues(results[i].Values[o.Column], results[j].Values[o.Column])
				if !ok || c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if query.Offset > 0 {
		if query.Offset >= len(results) {
			return []*Row{}
		}
		results = results[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results
}

// Validate checks the query structure
func (q Query) Validate() error {
	for i, cond := range q.Conditions {
		valid := false
		for _, op := range validOperators {
			if cond.Operator == op {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: invalid operator '%s' in condition %d", ErrInvalidQuery, cond.Operator, i)
		}

		if cond.Operator == "in" {
			if _, ok := cond.Value.([]interface{}); !ok {
				return fmt.Errorf("%w: operator 'in' requires []interface{} value in condition %d", ErrInvalidQuery, i)
			}
		}
		if cond.Operator == "between" {
			if _, _, ok := bounds(cond.Value); !ok {
				return fmt.Errorf("%w: operator 'between' requires two bounds in condition %d", ErrInvalidQuery, i)
			}
		}
		if cond.Column == "" {
			return fmt.Errorf("%w: empty column name in condition %d", ErrInvalidQuery, i)
		}
	}

	for i, o := range q.OrderBy {
		if o.Column == "" {
			return fmt.Errorf("%w: empty column name in order %d", ErrInvalidQuery, i)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be non-negative", ErrInvalidQuery)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative", ErrInvalidQuery)
	}
	return nil
}
