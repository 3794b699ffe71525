package attempts

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tms-server/internal/platform/storage"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies carries handles shared with other components.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New creates an attempt store for cfg.Driver.
func New(ctx context.Context, cfg Config, deps Dependencies) (Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverSQLite:
		if deps.SQLiteDB != nil {
			return NewSQLite(deps.SQLiteDB, cfg)
		}
		if cfg.SQLite == nil || cfg.SQLite.DSN == "" {
			return nil, fmt.Errorf("sqlite driver requires database handle or dsn")
		}
		db, err := storage.OpenSQLite(cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		return &sqliteStore{cfg: cfg, db: db, owned: true}, nil
	case DriverRedis:
		return NewRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported attempt store driver: %s", cfg.Driver)
	}
}
