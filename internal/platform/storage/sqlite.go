package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LoginAttempt is the persisted form of a rate-limit window.
type LoginAttempt struct {
	AttemptKey    string    `gorm:"column:attempt_key;primaryKey"`
	Count         int       `gorm:"column:attempt_count;not null"`
	WindowResetAt time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time
}

// SheetRow stores one spreadsheet row as a JSON array of cells.
type SheetRow struct {
	ID        uint           `gorm:"primaryKey"`
	Sheet     string         `gorm:"not null;uniqueIndex:idx_sheet_rows_position"`
	RowNumber int            `gorm:"column:position;not null;uniqueIndex:idx_sheet_rows_position"`
	Cells     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// OpenSQLite opens (and migrates) a SQLite database. File DSNs get their
// parent directory created.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn required")
	}
	if path := filePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func filePath(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
