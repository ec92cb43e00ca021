package sheetdash

import (
	"strings"

	"google.golang.org/api/sheets/v4"
)

// TextFormat holds the text style keys
type TextFormat struct {
	Bold     *bool  `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic   *bool  `json:"italic,omitempty" yaml:"italic,omitempty"`
	FontSize *int64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
}

// NumberFormat is a Sheets number format such as {CURRENCY, "$#,##0.00"}
type NumberFormat struct {
	Type    string `json:"type" yaml:"type"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Format describes a cell format. Only these keys are recognized;
// each non-empty key touches exactly one userEnteredFormat category.
// Bold, Italic and FontSize are shorthands; TextFormat overrides them.
type Format struct {
	Bold                 *bool         `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic               *bool         `json:"italic,omitempty" yaml:"italic,omitempty"`
	FontSize             *int64        `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	TextFormat           *TextFormat   `json:"textFormat,omitempty" yaml:"textFormat,omitempty"`
	NumberFormat         *NumberFormat `json:"numberFormat,omitempty" yaml:"numberFormat,omitempty"`
	HorizontalAlignment  string        `json:"horizontalAlignment,omitempty" yaml:"horizontalAlignment,omitempty"`
	VerticalAlignment    string        `json:"verticalAlignment,omitempty" yaml:"verticalAlignment,omitempty"`
	WrapStrategy         string        `json:"wrapStrategy,omitempty" yaml:"wrapStrategy,omitempty"`
	HyperlinkDisplayType string        `json:"hyperlinkDisplayType,omitempty" yaml:"hyperlinkDisplayType,omitempty"`
}

// Bool returns a pointer to v, for Format literals
func Bool(v bool) *bool { return &v }

// Int64 returns a pointer to v, for Format literals
func Int64(v int64) *int64 { return &v }

// textFormat merges TextFormat over the shorthands, so a key set in
// both takes the TextFormat value. It returns nil when no text key is
// set.
func (f Format) textFormat() *sheets.TextFormat {
	merged := TextFormat{Bold: f.Bold, Italic: f.Italic, FontSize: f.FontSize}
	if tf := f.TextFormat; tf != nil {
		if tf.Bold != nil {
			merged.Bold = tf.Bold
		}
		if tf.Italic != nil {
			merged.Italic = tf.Italic
		}
		if tf.FontSize != nil {
			merged.FontSize = tf.FontSize
		}
	}
	if merged.Bold == nil && merged.Italic == nil && merged.FontSize == nil {
		return nil
	}

	tf := &sheets.TextFormat{}
	if merged.Bold != nil {
		tf.Bold = *merged.Bold
		tf.ForceSendFields = append(tf.ForceSendFields, "Bold")
	}
	if merged.Italic != nil {
		tf.Italic = *merged.Italic
		tf.ForceSendFields = append(tf.ForceSendFields, "Italic")
	}
	if merged.FontSize != nil {
		tf.FontSize = *merged.FontSize
		tf.ForceSendFields = append(tf.ForceSendFields, "FontSize")
	}
	return tf
}

// CellFormat converts f into a Sheets CellFormat
func (f Format) CellFormat() *sheets.CellFormat {
	cf := &sheets.CellFormat{
		TextFormat:           f.textFormat(),
		HorizontalAlignment:  f.HorizontalAlignment,
		VerticalAlignment:    f.VerticalAlignment,
		WrapStrategy:         f.WrapStrategy,
		HyperlinkDisplayType: f.HyperlinkDisplayType,
	}
	if f.NumberFormat != nil {
		cf.NumberFormat = &sheets.NumberFormat{
			Type:    f.NumberFormat.Type,
			Pattern: f.NumberFormat.Pattern,
		}
	}
	return cf
}

// Categories lists the userEnteredFormat categories the format touches,
// in a fixed order.
func (f Format) Categories() []string {
	var categories []string
	if f.textFormat() != nil {
		categories = append(categories, "textFormat")
	}
	if f.NumberFormat != nil {
		categories = append(categories, "numberFormat")
	}
	if f.HorizontalAlignment != "" {
		categories = append(categories, "horizontalAlignment")
	}
	if f.VerticalAlignment != "" {
		categories = append(categories, "verticalAlignment")
	}
	if f.WrapStrategy != "" {
		categories = append(categories, "wrapStrategy")
	}
	if f.HyperlinkDisplayType != "" {
		categories = append(categories, "hyperlinkDisplayType")
	}
	return categories
}

// Fields returns the repeatCell fields mask. It never widens past the
// touched categories; an empty format yields "userEnteredFormat".
func (f Format) Fields() string {
	categories := f.Categories()
	if len(categories) == 0 {
		return "userEnteredFormat"
	}
	fields := make([]string, len(categories))
	for i, c := range categories {
		fields[i] = "userEnteredFormat." + c
	}
	return strings.Join(fields, ",")
}

// Color is an RGB color with components in [0, 1]
type Color struct {
	Red   float64 `json:"red" yaml:"red"`
	Green float64 `json:"green" yaml:"green"`
	Blue  float64 `json:"blue" yaml:"blue"`
}

// Border styles one side of a range. Zero fields take the defaults
// SOLID and black.
type Border struct {
	Style string `json:"style,omitempty" yaml:"style,omitempty"`
	Color *Color `json:"color,omitempty" yaml:"color,omitempty"`
}

// Borders holds the sides to update. Nil sides are left untouched.
type Borders struct {
	Top    *Border `json:"top,omitempty" yaml:"top,omitempty"`
	Bottom *Border `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Left   *Border `json:"left,omitempty" yaml:"left,omitempty"`
	Right  *Border `json:"right,omitempty" yaml:"right,omitempty"`
}

func (b *Border) toSheets() *sheets.Border {
	if b == nil {
		return nil
	}

	style := b.Style
	if style == "" {
		style = "SOLID"
	}
	var c Color
	if b.Color != nil {
		c = *b.Color
	}
	return &sheets.Border{
		Style: style,
		Color: &sheets.Color{
			Red:             c.Red,
			Green:           c.Green,
			Blue:            c.Blue,
			ForceSendFields: []string{"Red", "Green", "Blue"},
		},
	}
}
