package sheetdash

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// ColumnLetterToIndex converts a column letter to its 1-based index
// (A -> 1, Z -> 26, AA -> 27).
func ColumnLetterToIndex(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("%w: empty column letter", ErrInvalidColumn)
	}

	index := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidColumn, letter)
		}
		index = index*26 + int(r-'A'+1)
	}
	return index, nil
}

// ColumnIndexToLetter converts a 1-based column index to its letter
// (1 -> A, 26 -> Z, 27 -> AA).
func ColumnIndexToLetter(index int) string {
	result := ""
	for index > 0 {
		index--
		result = string(rune('A'+index%26)) + result
		index /= 26
	}
	return result
}

// CellName returns the A1 name of a 1-based column and row
func CellName(col, row int) string {
	return ColumnIndexToLetter(col) + strconv.Itoa(row)
}

// ParseCell splits an A1 cell reference such as "B12" into its 1-based
// column and row. Either part may be absent ("B" or "12"); the missing
// part is returned as 0.
func ParseCell(ref string) (col, row int, err error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "$", ""))
	i := 0
	for i < len(ref) && isLetter(ref[i]) {
		i++
	}
	letters, digits := ref[:i], ref[i:]
	if letters == "" && digits == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, ref)
	}

	if letters != "" {
		if col, err = ColumnLetterToIndex(letters); err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, ref)
		}
	}
	if digits != "" {
		row, err = strconv.Atoi(digits)
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, ref)
		}
	}
	return col, row, nil
}

// SplitSheet separates an optional sheet prefix from an A1 range.
// "'My Sheet'!A1:B2" returns ("My Sheet", "A1:B2").
func SplitSheet(a1 string) (sheet, rng string) {
	i := strings.LastIndex(a1, "!")
	if i < 0 {
		return "", a1
	}
	sheet = a1[:i]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, a1[i+1:]
}

// QuoteSheet returns the sheet name in the form accepted before "!"
func QuoteSheet(name string) string {
	for _, r := range name {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

// A1 joins a sheet name and a range into a full A1 reference
func A1(sheet, rng string) string {
	if sheet == "" {
		return rng
	}
	return QuoteSheet(sheet) + "!" + rng
}

// GridRangeFromA1 converts an A1 range into a zero-based, half-open grid
// range on the given sheet. Any sheet prefix in a1 is ignored; the sheetId
// decides the target. Unbounded sides ("A:B", "3:5", "B2:C") stay unset.
func GridRangeFromA1(a1 string, sheetID int64) (*sheets.GridRange, error) {
	_, rng := SplitSheet(a1)
	start, end, found := strings.Cut(rng, ":")
	if !found {
		end = start
	}

	startCol, startRow, err := ParseCell(start)
	if err != nil {
		return nil, err
	}
	endCol, endRow, err := ParseCell(end)
	if err != nil {
		return nil, err
	}

	gr := &sheets.GridRange{SheetId: sheetID}
	gr.ForceSendFields = append(gr.ForceSendFields, "SheetId")

	if startRow > 0 {
		gr.StartRowIndex = int64(startRow - 1)
		gr.ForceSendFields = append(gr.ForceSendFields, "StartRowIndex")
	}
	if endRow > 0 {
		gr.EndRowIndex = int64(endRow)
		gr.ForceSendFields = append(gr.ForceSendFields, "EndRowIndex")
	}
	if startCol > 0 {
		gr.StartColumnIndex = int64(startCol - 1)
		gr.ForceSendFields = append(gr.ForceSendFields, "StartColumnIndex")
	}
	if endCol > 0 {
		gr.EndColumnIndex = int64(endCol)
		gr.ForceSendFields = append(gr.ForceSendFields, "EndColumnIndex")
	}

	if endRow > 0 && startRow > endRow || endCol > 0 && startCol > endCol {
		return nil, fmt.Errorf("%w: %q is reversed", ErrInvalidRange, a1)
	}
	return gr, nil
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
