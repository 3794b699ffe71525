package rowstore

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	DriverSheets = "sheets"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type Config struct {
	Driver    string
	Sheets    SheetsConfig
	SQLiteDSN string
	// Seed preloads the memory driver.
	Seed map[string][][]string
}

type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New creates a row store for cfg.Driver.
func New(ctx context.Context, cfg Config, deps Dependencies) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSheets, "":
		return NewSheets(ctx, cfg.Sheets)
	case DriverSQLite:
		if deps.SQLiteDB != nil {
			return NewSQLite(deps.SQLiteDB)
		}
		return OpenSQLite(cfg.SQLiteDSN)
	case DriverMemory:
		return NewMemory(cfg.Seed), nil
	default:
		return nil, fmt.Errorf("unsupported row store driver: %s", cfg.Driver)
	}
}
