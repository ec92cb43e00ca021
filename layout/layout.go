// Package layout loads the static presentation data of a dashboard page:
// cell formats and borders keyed by A1 range, notes keyed by cell, and
// column widths keyed by column letter.
//
// Documents are JSON with comments (.json, .jsonc) or YAML (.yaml, .yml).
// Any object key starting with CommentPrefix is removed at every depth
// before decoding, so a document can carry annotations such as
//
//	{
//	  "_comment": "header row",
//	  "formats": {"B2:W2": {"bold": true, "horizontalAlignment": "CENTER"}},
//	  "columnWidths": {"A": 21, "B": 60}
//	}
//
// Decoding is strict: a key that is not part of the layout or of a
// format is an error naming the key.
package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ideamans/go-sheetdash"
)

// CommentPrefix marks keys that are dropped before decoding
const CommentPrefix = "_comment"

var ErrUnsupportedFormat = errors.New("unsupported layout format")

// Layout is the decoded presentation data of one page
type Layout struct {
	Formats      map[string]sheetdash.Format  `json:"formats,omitempty"`
	Borders      map[string]sheetdash.Borders `json:"borders,omitempty"`
	Notes        map[string]string            `json:"notes,omitempty"`
	ColumnWidths map[string]int               `json:"columnWidths,omitempty"`
}

// Load reads name from fsys and decodes it by extension
func Load(fsys fs.FS, name string) (*Layout, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading layout %s: %w", name, err)
	}

	l, err := Parse(data, filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return l, nil
}

// LoadFile reads a layout document from disk
func LoadFile(path string) (*Layout, error) {
	return Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// Parse decodes a layout document. ext selects the syntax and includes
// the leading dot.
func Parse(data []byte, ext string) (*Layout, error) {
	var doc interface{}

	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("parsing layout: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing layout: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	// Re-encode the cleaned tree so both syntaxes share one strict decoder.
	clean, err := json.Marshal(StripComments(doc))
	if err != nil {
		return nil, fmt.Errorf("encoding layout: %w", err)
	}

	l := &Layout{}
	if string(clean) == "null" {
		return l, nil
	}
	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	if err := dec.Decode(l); err != nil {
		return nil, fmt.Errorf("decoding layout: %w", err)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// StripComments removes CommentPrefix keys from every object in v. v is
// modified in place and returned.
func StripComments(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if strings.HasPrefix(k, CommentPrefix) {
				delete(node, k)
				continue
			}
			node[k] = StripComments(child)
		}
	case []interface{}:
		for i, child := range node {
			node[i] = StripComments(child)
		}
	}
	return v
}

// Validate checks that every key addresses a cell, range or column
func (l *Layout) Validate() error {
	for rng := range l.Formats {
		if _, err := sheetdash.GridRangeFromA1(rng, 0); err != nil {
			return fmt.Errorf("formats: %w", err)
		}
	}
	for rng := range l.Borders {
		if _, err := sheetdash.GridRangeFromA1(rng, 0); err != nil {
			return fmt.Errorf("borders: %w", err)
		}
	}
	for cell := range l.Notes {
		if _, _, err := sheetdash.ParseCell(cell); err != nil {
			return fmt.Errorf("notes: %w", err)
		}
	}
	for col, width := range l.ColumnWidths {
		if _, err := sheetdash.ColumnLetterToIndex(col); err != nil {
			return fmt.Errorf("columnWidths: %w", err)
		}
		if width <= 0 {
			return fmt.Errorf("columnWidths: %s: width must be positive, got %d", col, width)
		}
	}
	return nil
}

// FormatRanges returns the keys of Formats in sorted order
func (l *Layout) FormatRanges() []string {
	return sortedKeys(l.Formats)
}

// BorderRanges returns the keys of Borders in sorted order
func (l *Layout) BorderRanges() []string {
	return sortedKeys(l.Borders)
}

// Columns returns the keys of ColumnWidths in column order (A, B, ..., AA)
func (l *Layout) Columns() []string {
	cols := sortedKeys(l.ColumnWidths)
	sort.SliceStable(cols, func(i, j int) bool {
		a, _ := sheetdash.ColumnLetterToIndex(cols[i])
		b, _ := sheetdash.ColumnLetterToIndex(cols[j])
		return a < b
	})
	return cols
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
