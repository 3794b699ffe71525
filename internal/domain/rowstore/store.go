// Package rowstore reads and writes spreadsheet-style rows addressed by A1 ranges.
package rowstore

import (
	"context"
)

// Store is the tabular system of record. Rows come back in sheet order as
// string cells; trailing empty cells may be omitted by a driver.
type Store interface {
	GetRows(ctx context.Context, rangeSpec string) ([][]string, error)
	// UpdateRow writes values into a single-row range, left to right.
	UpdateRow(ctx context.Context, rangeSpec string, values []string) error
	Close() error
}

// window slices rows to the columns and rows selected by r. rows[0] is row 1.
func window(rows [][]string, r Range) [][]string {
	first := 0
	if r.StartRow > 0 {
		first = r.StartRow - 1
	}
	last := len(rows)
	if r.EndRow > 0 && r.EndRow < last {
		last = r.EndRow
	}
	if first >= last {
		return [][]string{}
	}

	out := make([][]string, 0, last-first)
	for _, row := range rows[first:last] {
		var cells []string
		if r.StartCol < len(row) {
			end := r.EndCol + 1
			if end > len(row) {
				end = len(row)
			}
			cells = append([]string(nil), row[r.StartCol:end]...)
		}
		out = append(out, trimTrailing(cells))
	}
	return out
}

func trimTrailing(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	if n == 0 {
		return []string{}
	}
	return cells[:n]
}
