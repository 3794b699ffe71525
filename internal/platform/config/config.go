package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Portal    PortalConfig    `yaml:"portal"`
	RowStore  RowStoreConfig  `yaml:"row_store"`
	Relay     RelayConfig     `yaml:"relay"`
}

type ServerConfig struct {
	IP             string        `yaml:"ip"`
	Port           int           `yaml:"port"`
	Production     bool          `yaml:"production"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
	FrontendOrigin string        `yaml:"frontend_origin"`
	PublicDir      string        `yaml:"public_dir"`
	PanelDir       string        `yaml:"panel_dir"`
	BodyLimitBytes int64         `yaml:"body_limit_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type LogConfig struct {
	Level      string `yaml:"log_level"`
	Dir        string `yaml:"log_dir"`
	File       string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type AuthConfig struct {
	AdminSecret   string        `yaml:"admin_secret"`
	SessionSecret string        `yaml:"session_secret"`
	CookieName    string        `yaml:"cookie_name"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	RememberTTL   time.Duration `yaml:"remember_ttl"`
	LoginPage     string        `yaml:"login_page"`
	PanelPath     string        `yaml:"panel_path"`
}

type RateLimitConfig struct {
	Window time.Duration   `yaml:"window"`
	Limit  int             `yaml:"limit"`
	Store  AttemptStoreCfg `yaml:"store"`
	// Portal endpoints get an additional token bucket per client.
	PortalPerMinute int `yaml:"portal_per_minute"`
	PortalBurst     int `yaml:"portal_burst"`
}

type AttemptStoreCfg struct {
	Type    string        `yaml:"type"`
	Prefix  string        `yaml:"prefix"`
	Cleanup time.Duration `yaml:"cleanup"`
	Redis   RedisStore    `yaml:"redis,omitempty"`
	SQLite  SQLiteStore   `yaml:"sqlite,omitempty"`
}

type RedisStore struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type SQLiteStore struct {
	DSN string `yaml:"dsn,omitempty"`
}

type PortalConfig struct {
	Range             string `yaml:"range"`
	IdentityMarker    string `yaml:"identity_marker"`
	MinPasswordLength int    `yaml:"min_password_length"`
	BcryptCost        int    `yaml:"bcrypt_cost"`
	HashConcurrency   int    `yaml:"hash_concurrency"`
}

type RowStoreConfig struct {
	Type            string        `yaml:"type"`
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Timeout         time.Duration `yaml:"timeout"`
	SQLite          SQLiteStore   `yaml:"sqlite,omitempty"`
}

type RelayConfig struct {
	WebhookURL    string        `yaml:"webhook_url"`
	SigningSecret string        `yaml:"signing_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.IP, s.Port)
}
