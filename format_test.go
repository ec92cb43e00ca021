package sheetdash_test

import (
	"testing"

	"github.com/ideamans/go-sheetdash"
)

func TestFormat_TextFormatMerge(t *testing.T) {
	tests := []struct {
		name       string
		format     sheetdash.Format
		wantBold   bool
		wantItalic bool
		wantSize   int64
	}{
		{
			name:     "shorthand only",
			format:   sheetdash.Format{Bold: sheetdash.Bool(true), FontSize: sheetdash.Int64(10)},
			wantBold: true,
			wantSize: 10,
		},
		{
			name: "textFormat overrides shorthand",
			format: sheetdash.Format{
				Bold:       sheetdash.Bool(true),
				FontSize:   sheetdash.Int64(10),
				TextFormat: &sheetdash.TextFormat{Bold: sheetdash.Bool(false), FontSize: sheetdash.Int64(14)},
			},
			wantBold: false,
			wantSize: 14,
		},
		{
			name: "keys from both are combined",
			format: sheetdash.Format{
				Bold:       sheetdash.Bool(true),
				TextFormat: &sheetdash.TextFormat{Italic: sheetdash.Bool(true)},
			},
			wantBold:   true,
			wantItalic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf := tt.format.CellFormat().TextFormat
			if tf == nil {
				t.Fatal("TextFormat = nil")
			}
			if tf.Bold != tt.wantBold || tf.Italic != tt.wantItalic || tf.FontSize != tt.wantSize {
				t.Errorf("TextFormat = {Bold:%v Italic:%v FontSize:%d}, want {%v %v %d}",
					tf.Bold, tf.Italic, tf.FontSize, tt.wantBold, tt.wantItalic, tt.wantSize)
			}
		})
	}
}

func TestFormat_NoTextKeys(t *testing.T) {
	f := sheetdash.Format{HorizontalAlignment: "CENTER", TextFormat: &sheetdash.TextFormat{}}
	if tf := f.CellFormat().TextFormat; tf != nil {
		t.Errorf("TextFormat = %+v, want nil", tf)
	}
}
