// Package attempts keeps per-client login attempt counters in fixed windows.
package attempts

import (
	"context"
	"time"
)

// Record is the state of one client's current window.
type Record struct {
	Key           string
	Count         int
	WindowResetAt time.Time
}

// Store counts attempts per key. Hit must be atomic per key: concurrent hits
// may not corrupt the counter.
type Store interface {
	// Hit starts a fresh window when the current one has passed, then denies
	// without counting if the limit is reached, otherwise counts and allows.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Record, bool, error)
	Get(ctx context.Context, key string) (Record, error)
	Reset(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver string
	Prefix string
	Clock  func() time.Time
	Redis  *RedisConfig
	SQLite *SQLiteConfig
	Memory *MemoryConfig
}

type MemoryConfig struct {
	GCInterval time.Duration
}

type SQLiteConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

func (c Config) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// apply runs the window rule on rec at time now.
func apply(rec Record, now time.Time, limit int, window time.Duration) (Record, bool) {
	if rec.WindowResetAt.IsZero() || now.After(rec.WindowResetAt) {
		rec.Count = 0
		rec.WindowResetAt = now.Add(window)
	}
	if rec.Count >= limit {
		return rec, false
	}
	rec.Count++
	return rec, true
}
