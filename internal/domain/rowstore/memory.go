package rowstore

import (
	"context"
	"fmt"
	"sync"
)

type memoryStore struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

// NewMemory returns a store seeded with a copy of sheets (sheet name → rows, row 1 first).
func NewMemory(sheets map[string][][]string) Store {
	s := &memoryStore{sheets: make(map[string][][]string, len(sheets))}
	for name, rows := range sheets {
		copied := make([][]string, len(rows))
		for i, row := range rows {
			copied[i] = append([]string(nil), row...)
		}
		s.sheets[name] = copied
	}
	return s
}

func (s *memoryStore) GetRows(ctx context.Context, rangeSpec string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := ParseRange(rangeSpec)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.sheets[r.Sheet], r), nil
}

func (s *memoryStore) UpdateRow(ctx context.Context, rangeSpec string, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := ParseRange(rangeSpec)
	if err != nil {
		return err
	}
	if err := checkWritable(r, values); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets[r.Sheet]
	for len(rows) < r.StartRow {
		rows = append(rows, []string{})
	}
	row := rows[r.StartRow-1]
	for len(row) < r.StartCol+len(values) {
		row = append(row, "")
	}
	copy(row[r.StartCol:], values)
	rows[r.StartRow-1] = row
	s.sheets[r.Sheet] = rows
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

func checkWritable(r Range, values []string) error {
	if r.StartRow == 0 || (r.EndRow != 0 && r.EndRow != r.StartRow) {
		return fmt.Errorf("range %s: update must target exactly one row", r)
	}
	if len(values) > r.EndCol-r.StartCol+1 {
		return fmt.Errorf("range %s: %d values exceed %d columns", r, len(values), r.EndCol-r.StartCol+1)
	}
	return nil
}
