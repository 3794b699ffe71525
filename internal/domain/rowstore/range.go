package rowstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a parsed A1 range such as "portal!A:D" or "portal!B5:B5".
// Columns are 0-based; rows are 1-based and 0 means open-ended.
type Range struct {
	Sheet    string
	StartCol int
	EndCol   int
	StartRow int
	EndRow   int
}

// ParseRange parses "Sheet!A1:D9", "Sheet!A:D", "'My sheet'!B2" and friends.
func ParseRange(spec string) (Range, error) {
	bang := strings.LastIndexByte(spec, '!')
	if bang <= 0 || bang == len(spec)-1 {
		return Range{}, fmt.Errorf("range %q: expected Sheet!A1 notation", spec)
	}
	sheet := spec[:bang]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}

	cells := strings.SplitN(spec[bang+1:], ":", 2)
	startCol, startRow, err := parseCell(cells[0])
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", spec, err)
	}
	endCol, endRow := startCol, startRow
	if len(cells) == 2 {
		if endCol, endRow, err = parseCell(cells[1]); err != nil {
			return Range{}, fmt.Errorf("range %q: %w", spec, err)
		}
	}
	if startCol < 0 || endCol < 0 {
		return Range{}, fmt.Errorf("range %q: column required", spec)
	}
	if endCol < startCol || (endRow != 0 && endRow < startRow) {
		return Range{}, fmt.Errorf("range %q: end before start", spec)
	}
	return Range{Sheet: sheet, StartCol: startCol, EndCol: endCol, StartRow: startRow, EndRow: endRow}, nil
}

func parseCell(cell string) (col, row int, err error) {
	cell = strings.ToUpper(strings.TrimSpace(cell))
	i := 0
	col = -1
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		if col < 0 {
			col = 0
		}
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	if col > 0 {
		col--
	}
	if i < len(cell) {
		row, err = strconv.Atoi(cell[i:])
		if err != nil || row <= 0 {
			return 0, 0, fmt.Errorf("bad row in %q", cell)
		}
	}
	return col, row, nil
}

// ColumnName converts a 0-based column index to letters (0 → A, 26 → AA).
func ColumnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}

// RowRange builds "Sheet!<col><n>:<col><n>" for a single cell span in one row.
func RowRange(sheet string, startCol, endCol, row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", sheet, ColumnName(startCol), row, ColumnName(endCol), row)
}

func (r Range) String() string {
	start := ColumnName(r.StartCol)
	end := ColumnName(r.EndCol)
	if r.StartRow > 0 {
		start += strconv.Itoa(r.StartRow)
	}
	if r.EndRow > 0 {
		end += strconv.Itoa(r.EndRow)
	}
	return r.Sheet + "!" + start + ":" + end
}

// Cell returns row[i], or "" when the cell is absent.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
