package attempts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tms-server/internal/platform/storage"
)

type sqliteStore struct {
	cfg Config
	db  *gorm.DB
	// owned is set when the store opened db itself and must close it.
	owned bool
}

// NewSQLite builds a store over an already migrated database handle.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{cfg: cfg, db: db}, nil
}

func (s *sqliteStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (Record, bool, error) {
	var (
		rec     Record
		allowed bool
	)
	now := s.cfg.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row storage.LoginAttempt
		err := tx.Where("attempt_key = ?", key).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = storage.LoginAttempt{AttemptKey: key}
		case err != nil:
			return err
		}

		rec, allowed = apply(toRecord(row), now, limit, window)
		row.Count = rec.Count
		row.WindowResetAt = rec.WindowResetAt
		return tx.Save(&row).Error
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("sqlite hit: %w", err)
	}
	rec.Key = key
	return rec, allowed, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (Record, error) {
	var row storage.LoginAttempt
	err := s.db.WithContext(ctx).Where("attempt_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{Key: key}, nil
	}
	if err != nil {
		return Record{}, err
	}
	return toRecord(row), nil
}

func (s *sqliteStore) Reset(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("attempt_key = ?", key).Delete(&storage.LoginAttempt{}).Error
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("window_reset_at < ?", s.cfg.now()).
		Delete(&storage.LoginAttempt{}).
		Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.LoginAttempt{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  DriverSQLite,
		"total": total,
	}, nil
}

// Close releases the database only when the store opened it; a shared
// handle belongs to whoever passed it in.
func (s *sqliteStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(row storage.LoginAttempt) Record {
	return Record{
		Key:           row.AttemptKey,
		Count:         row.Count,
		WindowResetAt: row.WindowResetAt,
	}
}
