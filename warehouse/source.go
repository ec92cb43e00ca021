// Package warehouse provides the tables the dashboards are built from.
//
// A Source answers Fetch(table, query) with a Table of rows. SQLite reads
// a local warehouse file; Memory serves tables held in memory.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrInvalidName   = errors.New("invalid identifier")
)

// Source is a queryable set of named tables
type Source interface {
	Fetch(ctx context.Context, table string, query Query) (*Table, error)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validName rejects anything that is not a plain SQL identifier
func validName(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Memory is a Source over tables held in memory
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewMemory creates an empty in-memory source
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*Table)}
}

// Put stores a table under name, replacing any previous one
func (m *Memory) Put(name string, columns []string, rows ...[]interface{}) {
	table := &Table{Columns: columns}
	for _, values := range rows {
		row := &Row{Values: make(map[string]interface{}, len(columns))}
		for i, col := range columns {
			if i < len(values) {
				row.Values[col] = values[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = table
}

// Fetch implements Source
func (m *Memory) Fetch(ctx context.Context, name string, query Query) (*Table, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := validName(name); err != nil {
		return nil, err
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	table, ok := m.tables[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	return &Table{Columns: table.Columns, Rows: Apply(table.Rows, query)}, nil
}
