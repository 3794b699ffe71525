package config

import (
	"net"
	"runtime"
	"strconv"
	"time"
)

// DefaultConfig returns the configuration used when nothing else is provided.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:             "0.0.0.0",
			Port:           3000,
			PublicDir:      "public",
			PanelDir:       "private/admin",
			BodyLimitBytes: 50 * 1024,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			ShutdownGrace:  10 * time.Second,
		},
		Log: LogConfig{
			Level:      "INFO",
			Dir:        "data/logs",
			File:       "server.log",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
		Auth: AuthConfig{
			CookieName:  "tms_admin",
			SessionTTL:  2 * time.Hour,
			RememberTTL: 30 * 24 * time.Hour,
			LoginPage:   "/admin.html",
			PanelPath:   "/admin/panel",
		},
		RateLimit: RateLimitConfig{
			Window:          10 * time.Minute,
			Limit:           20,
			PortalPerMinute: 30,
			PortalBurst:     10,
			Store: AttemptStoreCfg{
				Type:    "memory",
				Prefix:  "tms:login:",
				Cleanup: time.Minute,
				SQLite:  SQLiteStore{DSN: "data/attempts.db"},
			},
		},
		Portal: PortalConfig{
			Range:             "portal!A:D",
			IdentityMarker:    "TMSP",
			MinPasswordLength: 8,
			BcryptCost:        12,
			HashConcurrency:   runtime.GOMAXPROCS(0),
		},
		RowStore: RowStoreConfig{
			Type:    "sheets",
			Timeout: 10 * time.Second,
			SQLite:  SQLiteStore{DSN: "data/rows.db"},
		},
		Relay: RelayConfig{
			Timeout: 15 * time.Second,
		},
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
