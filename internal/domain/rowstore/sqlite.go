package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tms-server/internal/platform/storage"
)

type sqliteStore struct {
	db    *gorm.DB
	owned bool
}

// NewSQLite keeps rows in the sheet_rows table, one JSON cell array per row.
// The caller keeps ownership of db.
func NewSQLite(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite row store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

// OpenSQLite opens dsn and returns a store that closes the database with itself.
func OpenSQLite(dsn string) (Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite row store requires a dsn")
	}
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{db: db, owned: true}, nil
}

func (s *sqliteStore) GetRows(ctx context.Context, rangeSpec string) ([][]string, error) {
	r, err := ParseRange(rangeSpec)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("sheet = ?", r.Sheet)
	if r.EndRow > 0 {
		q = q.Where("position <= ?", r.EndRow)
	}
	var records []storage.SheetRow
	if err := q.Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return [][]string{}, nil
	}

	// Positions may be sparse; materialise gaps as empty rows.
	rows := make([][]string, records[len(records)-1].RowNumber)
	for i := range rows {
		rows[i] = []string{}
	}
	for _, rec := range records {
		var cells []string
		if err := json.Unmarshal(rec.Cells, &cells); err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.RowNumber, err)
		}
		rows[rec.RowNumber-1] = cells
	}
	return window(rows, r), nil
}

func (s *sqliteStore) UpdateRow(ctx context.Context, rangeSpec string, values []string) error {
	r, err := ParseRange(rangeSpec)
	if err != nil {
		return err
	}
	if err := checkWritable(r, values); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec storage.SheetRow
		var cells []string
		err := tx.Where("sheet = ? AND position = ?", r.Sheet, r.StartRow).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = storage.SheetRow{Sheet: r.Sheet, RowNumber: r.StartRow}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(rec.Cells, &cells); err != nil {
				return err
			}
		}

		for len(cells) < r.StartCol+len(values) {
			cells = append(cells, "")
		}
		copy(cells[r.StartCol:], values)
		raw, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		rec.Cells = datatypes.JSON(raw)
		return tx.Save(&rec).Error
	})
}

// Seed appends rows to a sheet after its last stored row.
func (s *sqliteStore) Seed(ctx context.Context, sheet string, rows [][]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&storage.SheetRow{}).Where("sheet = ?", sheet).
			Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return err
		}
		for i, row := range rows {
			raw, err := json.Marshal(row)
			if err != nil {
				return err
			}
			rec := storage.SheetRow{Sheet: sheet, RowNumber: last + i + 1, Cells: datatypes.JSON(raw)}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteStore) Close() error {
	if !s.owned {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seeder is implemented by drivers that can bulk-load rows.
type Seeder interface {
	Seed(ctx context.Context, sheet string, rows [][]string) error
}
