package warehouse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteConfig holds the parameters for opening a warehouse file
type SQLiteConfig struct {
	// Path is the warehouse database file. ":memory:" requires PoolSize 1.
	Path string

	// PoolSize is the number of connections (default: 2)
	PoolSize int

	// Logger receives open/close and query messages (default: discard)
	Logger *slog.Logger

	// OnConnect runs once per connection, e.g. to create tables in tests
	OnConnect func(conn *sqlite.Conn) error
}

// SQLite is a Source backed by an SQLite warehouse file
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens the warehouse in read/write mode with a small pool
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("warehouse: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil); err != nil {
				return err
			}
			if cfg.OnConnect != nil {
				return cfg.OnConnect(conn)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse: opening %s: %w", cfg.Path, err)
	}

	logger.Info("warehouse opened", "path", cfg.Path, "pool_size", poolSize)
	return &SQLite{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Close closes every connection in the pool
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("warehouse: closing %s: %w", s.path, err)
	}
	s.logger.Info("warehouse closed", "path", s.path)
	return nil
}

// ExecScript runs a multi-statement SQL script, for loading tables
func (s *SQLite) ExecScript(ctx context.Context, script string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("warehouse: take: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, script, nil); err != nil {
		return fmt.Errorf("warehouse: script: %w", err)
	}
	return nil
}

// Fetch implements Source. The query is compiled to a parameterized
// SELECT; non-finite floats come back as nil.
func (s *SQLite) Fetch(ctx context.Context, table string, query Query) (*Table, error) {
	stmtText, args, err := compileSelect(table, query)
	if err != nil {
		return nil, err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("warehouse: take: %w", err)
	}
	defer s.pool.Put(conn)

	// Prepare first so column names are known even for empty results.
	stmt, err := conn.Prepare(stmtText)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		return nil, fmt.Errorf("warehouse: prepare %s: %w", table, err)
	}
	result := &Table{Columns: make([]string, stmt.ColumnCount())}
	for i := range result.Columns {
		result.Columns[i] = stmt.ColumnName(i)
	}

	err = sqlitex.Execute(conn, stmtText, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := &Row{Values: make(map[string]interface{}, len(result.Columns))}
			for i, col := range result.Columns {
				row.Values[col] = columnValue(stmt, i)
			}
			result.Rows = append(result.Rows, row)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse: fetch %s: %w", table, err)
	}

	s.logger.Debug("fetched table", "table", table, "rows", len(result.Rows))
	return result, nil
}

func columnValue(stmt *sqlite.Stmt, i int) interface{} {
	switch stmt.ColumnType(i) {
	case sqlite.TypeInteger:
		return stmt.ColumnInt64(i)
	case sqlite.TypeFloat:
		f := stmt.ColumnFloat(i)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case sqlite.TypeText, sqlite.TypeBlob:
		return stmt.ColumnText(i)
	default:
		return nil
	}
}

// compileSelect builds the SELECT statement and its arguments
func compileSelect(table string, query Query) (string, []interface{}, error) {
	if err := validName(table); err != nil {
		return "", nil, err
	}
	if err := query.Validate(); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var args []interface{}

	sb.WriteString(`SELECT * FROM "` + table + `"`)

	for i, cond := range query.Conditions {
		if err := validName(cond.Column); err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}

		col := `"` + cond.Column + `"`
		switch cond.Operator {
		case "==":
			if cond.Value == nil {
				sb.WriteString(col + " IS NULL")
				continue
			}
			sb.WriteString(col + " = ?")
			args = append(args, sqlArg(cond.Value))
		case "!=":
			if cond.Value == nil {
				sb.WriteString(col + " IS NOT NULL")
				continue
			}
			sb.WriteString(col + " <> ?")
			args = append(args, sqlArg(cond.Value))
		case ">", ">=", "<", "<=":
			sb.WriteString(col + " " + cond.Operator + " ?")
			args = append(args, sqlArg(cond.Value))
		case "in":
			list := cond.Value.([]interface{})
			if len(list) == 0 {
				sb.WriteString("0")
				continue
			}
			sb.WriteString(col + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ") + ")")
			for _, v := range list {
				args = append(args, sqlArg(v))
			}
		case "between":
			min, max, _ := bounds(cond.Value)
			sb.WriteString(col + " BETWEEN ? AND ?")
			args = append(args, sqlArg(min), sqlArg(max))
		}
	}

	for i, o := range query.OrderBy {
		if err := validName(o.Column); err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(`"` + o.Column + `"`)
		if o.Desc {
			sb.WriteString(" DESC")
		}
	}

	if query.Limit > 0 || query.Offset > 0 {
		limit := int64(-1)
		if query.Limit > 0 {
			limit = int64(query.Limit)
		}
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, int64(query.Offset))
	}

	return sb.String(), args, nil
}

// sqlArg narrows Go values to the kinds SQLite binds directly
func sqlArg(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, []byte, bool, int64, float64:
		return val
	case float32:
		return float64(val)
	}
	if isNumeric(v) {
		if f := toFloat64(v); f == math.Trunc(f) {
			return int64(f)
		}
		return toFloat64(v)
	}
	return fmt.Sprintf("%v", v)
}
