package sheetdash

// Values is the payload of a queued value write: either Literal rows or
// a Deferred producer evaluated at flush time.
type Values interface {
	resolve() [][]interface{}
}

// Literal is a grid of cell values known at enqueue time
type Literal [][]interface{}

// Deferred produces a grid of cell values when its chunk is sent. It is
// called exactly once, never at enqueue time.
type Deferred func() [][]interface{}

func (l Literal) resolve() [][]interface{} { return l }

func (d Deferred) resolve() [][]interface{} { return d() }

// Column addresses one column for a width update: Letter or Index.
type Column interface {
	index() (int64, error)
}

// Letter is a column letter such as "A" or "AB"
type Letter string

// Index is a 0-based column index
type Index int64

func (l Letter) index() (int64, error) {
	i, err := ColumnLetterToIndex(string(l))
	if err != nil {
		return 0, err
	}
	// ColumnLetterToIndex is 1-based; grid indexes are 0-based.
	return int64(i - 1), nil
}

func (i Index) index() (int64, error) {
	if i < 0 {
		return 0, ErrInvalidColumn
	}
	return int64(i), nil
}
