package excel

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"

	"github.com/ideamans/go-sheetdash"
)

// builtinNumFmts maps Sheets number format types to Excel built-in ids,
// used when no pattern is given.
var builtinNumFmts = map[string]int{
	"TEXT":       49,
	"NUMBER":     4,
	"PERCENT":    10,
	"CURRENCY":   7,
	"DATE":       14,
	"TIME":       21,
	"DATE_TIME":  22,
	"SCIENTIFIC": 11,
}

var borderStyles = map[string]int{
	"DOTTED":       4,
	"DASHED":       3,
	"SOLID":        1,
	"SOLID_MEDIUM": 2,
	"SOLID_THICK":  5,
	"DOUBLE":       6,
}

var horizontal = map[string]string{"LEFT": "left", "CENTER": "center", "RIGHT": "right"}

var vertical = map[string]string{"TOP": "top", "MIDDLE": "center", "BOTTOM": "bottom"}

// apply performs one structured request against ws
func (a *Adapter) apply(ws *worksheet, r *sheets.Request) error {
	switch {
	case r.RepeatCell != nil:
		return a.repeatCell(ws, r.RepeatCell)
	case r.UpdateBorders != nil:
		return a.updateBorders(ws, r.UpdateBorders)
	case r.UpdateDimensionProperties != nil:
		return a.columnWidth(ws, r.UpdateDimensionProperties)
	case r.AutoResizeDimensions != nil:
		return a.autoResize(ws, r.AutoResizeDimensions.Dimensions)
	case r.UpdateCells != nil:
		return a.note(ws, r.UpdateCells)
	}
	return ErrUnsupportedRequest
}

// bounds resolves unset sides of a grid range to the sheet extent as
// 1-based inclusive coordinates.
func (a *Adapter) bounds(ws *worksheet, gr *sheets.GridRange) (c1, r1, c2, r2 int) {
	usedRows, usedCols := a.usedSize(ws.name)
	rows, cols := max(ws.rows, usedRows, 1), max(ws.cols, usedCols, 1)

	c1, r1, c2, r2 = 1, 1, cols, rows
	for _, f := range gr.ForceSendFields {
		switch f {
		case "StartRowIndex":
			r1 = int(gr.StartRowIndex) + 1
		case "EndRowIndex":
			r2 = int(gr.EndRowIndex)
		case "StartColumnIndex":
			c1 = int(gr.StartColumnIndex) + 1
		case "EndColumnIndex":
			c2 = int(gr.EndColumnIndex)
		}
	}
	return c1, r1, c2, r2
}

// restyle replaces the style of each cell produced by cells with
// edit(existing). Identical source styles share one new style.
func (a *Adapter) restyle(sheet string, cells []string, edit func(*excelize.Style)) error {
	derived := make(map[int]int)
	for _, cell := range cells {
		old, err := a.file.GetCellStyle(sheet, cell)
		if err != nil {
			return err
		}

		id, ok := derived[old]
		if !ok {
			style := &excelize.Style{}
			if old != 0 {
				if existing, err := a.file.GetStyle(old); err == nil && existing != nil {
					style = existing
				}
			}
			edit(style)
			if id, err = a.file.NewStyle(style); err != nil {
				return err
			}
			derived[old] = id
		}

		if err := a.file.SetCellStyle(sheet, cell, cell, id); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) repeatCell(ws *worksheet, req *sheets.RepeatCellRequest) error {
	var format *sheets.CellFormat
	if req.Cell != nil {
		format = req.Cell.UserEnteredFormat
	}
	if format == nil {
		format = &sheets.CellFormat{}
	}

	mask := make(map[string]bool)
	for _, f := range strings.Split(req.Fields, ",") {
		f = strings.TrimSpace(f)
		if f == "userEnteredFormat" || f == "*" {
			for _, c := range []string{"textFormat", "numberFormat", "horizontalAlignment", "verticalAlignment", "wrapStrategy"} {
				mask[c] = true
			}
			continue
		}
		mask[strings.TrimPrefix(f, "userEnteredFormat.")] = true
	}

	c1, r1, c2, r2 := a.bounds(ws, req.Range)
	return a.restyle(ws.name, cellsIn(c1, r1, c2, r2), func(s *excelize.Style) {
		if mask["textFormat"] {
			font := &excelize.Font{}
			if s.Font != nil {
				copied := *s.Font
				font = &copied
			}
			tf := format.TextFormat
			if tf == nil {
				tf = &sheets.TextFormat{}
			}
			font.Bold, font.Italic = tf.Bold, tf.Italic
			if tf.FontSize > 0 {
				font.Size = float64(tf.FontSize)
			}
			s.Font = font
		}
		if mask["numberFormat"] {
			s.NumFmt, s.CustomNumFmt = 0, nil
			if nf := format.NumberFormat; nf != nil {
				if nf.Pattern != "" {
					pattern := nf.Pattern
					s.CustomNumFmt = &pattern
				} else {
					s.NumFmt = builtinNumFmts[nf.Type]
				}
			}
		}
		if mask["horizontalAlignment"] || mask["verticalAlignment"] || mask["wrapStrategy"] {
			align := &excelize.Alignment{}
			if s.Alignment != nil {
				copied := *s.Alignment
				align = &copied
			}
			if mask["horizontalAlignment"] {
				align.Horizontal = horizontal[format.HorizontalAlignment]
			}
			if mask["verticalAlignment"] {
				align.Vertical = vertical[format.VerticalAlignment]
			}
			if mask["wrapStrategy"] {
				align.WrapText = format.WrapStrategy == "WRAP" || format.WrapStrategy == "LEGACY_WRAP"
			}
			s.Alignment = align
		}
	})
}

func (a *Adapter) updateBorders(ws *worksheet, req *sheets.UpdateBordersRequest) error {
	c1, r1, c2, r2 := a.bounds(ws, req.Range)

	sides := []struct {
		side  string
		edge  *sheets.Border
		cells []string
	}{
		{"top", req.Top, cellsIn(c1, r1, c2, r1)},
		{"bottom", req.Bottom, cellsIn(c1, r2, c2, r2)},
		{"left", req.Left, cellsIn(c1, r1, c1, r2)},
		{"right", req.Right, cellsIn(c2, r1, c2, r2)},
	}
	for _, s := range sides {
		if s.edge == nil {
			continue
		}
		border := excelBorder(s.side, s.edge)
		err := a.restyle(ws.name, s.cells, func(style *excelize.Style) {
			kept := style.Border[:0:0]
			for _, b := range style.Border {
				if b.Type != s.side {
					kept = append(kept, b)
				}
			}
			if border != nil {
				kept = append(kept, *border)
			}
			style.Border = kept
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// excelBorder converts a Sheets border; NONE yields nil
func excelBorder(side string, b *sheets.Border) *excelize.Border {
	style, ok := borderStyles[b.Style]
	if !ok {
		return nil
	}
	color := "000000"
	if c := b.Color; c != nil {
		color = fmt.Sprintf("%02X%02X%02X", channel(c.Red), channel(c.Green), channel(c.Blue))
	}
	return &excelize.Border{Type: side, Color: color, Style: style}
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// pixelsToWidth converts a pixel width to Excel character units for the
// default 11pt font (7px per character plus 5px padding).
func pixelsToWidth(px int64) float64 {
	return math.Max(0, float64(px-5)/7)
}

func (a *Adapter) columnWidth(ws *worksheet, req *sheets.UpdateDimensionPropertiesRequest) error {
	if req.Range.Dimension != "COLUMNS" || req.Properties == nil {
		return ErrUnsupportedRequest
	}
	start := sheetdash.ColumnIndexToLetter(int(req.Range.StartIndex) + 1)
	end := sheetdash.ColumnIndexToLetter(int(req.Range.EndIndex))
	return a.file.SetColWidth(ws.name, start, end, pixelsToWidth(req.Properties.PixelSize))
}

// autoResize sizes each column to its longest rendered value
func (a *Adapter) autoResize(ws *worksheet, dims *sheets.DimensionRange) error {
	if dims.Dimension != "COLUMNS" {
		return ErrUnsupportedRequest
	}

	rows, err := a.file.GetRows(ws.name)
	if err != nil {
		return err
	}
	for col := int(dims.StartIndex); col < int(dims.EndIndex); col++ {
		longest := 0
		for _, row := range rows {
			if col < len(row) {
				longest = max(longest, utf8.RuneCountInString(row[col]))
			}
		}
		if longest == 0 {
			continue
		}
		letter := sheetdash.ColumnIndexToLetter(col + 1)
		if err := a.file.SetColWidth(ws.name, letter, letter, math.Min(255, float64(longest)+2)); err != nil {
			return err
		}
	}
	return nil
}

// note sets the comment of the first cell of an UpdateCells request
func (a *Adapter) note(ws *worksheet, req *sheets.UpdateCellsRequest) error {
	if req.Fields != "note" || req.Range == nil || len(req.Rows) == 0 || len(req.Rows[0].Values) == 0 {
		return ErrUnsupportedRequest
	}
	cell := sheetdash.CellName(int(req.Range.StartColumnIndex)+1, int(req.Range.StartRowIndex)+1)
	text := req.Rows[0].Values[0].Note

	// Replacing a note means dropping the old comment first.
	_ = a.file.DeleteComment(ws.name, cell)
	if text == "" {
		return nil
	}
	return a.file.AddComment(ws.name, excelize.Comment{
		Cell:   cell,
		Author: a.config.Author,
		Text:   text,
	})
}

// cellsIn lists the cells of a 1-based inclusive rectangle
func cellsIn(c1, r1, c2, r2 int) []string {
	var cells []string
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			cells = append(cells, sheetdash.CellName(c, r))
		}
	}
	return cells
}
