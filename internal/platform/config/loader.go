package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "tms-server/internal/platform/errors"
)

const DefaultPath = "config.yaml"

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Loader layers defaults, an optional YAML file, an optional .env file and the
// process environment, in that order of increasing precedence.
type Loader struct {
	path       string
	pathForced bool
	dotEnv     string
	lookup     LookupFunc
}

// NewLoader creates a loader that reads config.yaml and .env from the working directory.
func NewLoader() *Loader {
	return &Loader{
		path:   DefaultPath,
		dotEnv: ".env",
		lookup: os.LookupEnv,
	}
}

// WithPath sets the YAML file. A missing explicit path is an error.
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
		l.pathForced = true
	}
	return l
}

// WithDotEnv sets the .env file; an empty name disables it.
func (l *Loader) WithDotEnv(name string) *Loader {
	l.dotEnv = name
	return l
}

// WithLookup overrides environment access (useful for tests).
func (l *Loader) WithLookup(lookup LookupFunc) *Loader {
	if lookup != nil {
		l.lookup = lookup
	}
	return l
}

// Result captures the loaded configuration, its origin path and non-fatal findings.
type Result struct {
	Config   *Config
	Path     string
	Warnings []string
}

func (l *Loader) Load() (*Result, error) {
	cfg := DefaultConfig()
	res := &Result{Config: cfg}

	raw, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.KindConfig, "config.load", "parse "+l.path, err)
		}
		res.Path = l.path
	case errors.Is(err, fs.ErrNotExist) && !l.pathForced:
	default:
		return nil, apperrors.Wrap(apperrors.KindConfig, "config.load", "read "+l.path, err)
	}

	dotenv := map[string]string{}
	if l.dotEnv != "" {
		values, err := godotenv.Read(l.dotEnv)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.KindConfig, "config.load", "read "+l.dotEnv, err)
		}
		if values != nil {
			dotenv = values
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := l.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	warnings, err := l.validate(cfg)
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return apperrors.Wrap(apperrors.KindConfig, "config.env", "PORT must be a number", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("NODE_ENV"); ok {
		cfg.Server.Production = strings.EqualFold(strings.TrimSpace(v), "production")
	}
	str("FRONTEND_ORIGIN", &cfg.Server.FrontendOrigin)
	if v, ok := lookup("TRUSTED_PROXIES"); ok {
		cfg.Server.TrustedProxies = splitList(v)
	}

	// Secrets are taken verbatim; surrounding whitespace may be intentional.
	if v, ok := lookup("ADMIN_PASS"); ok {
		cfg.Auth.AdminSecret = v
	}
	if v, ok := lookup("SESSION_SECRET"); ok {
		cfg.Auth.SessionSecret = v
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_DIR", &cfg.Log.Dir)

	str("ROW_STORE_DRIVER", &cfg.RowStore.Type)
	str("SHEET_ID", &cfg.RowStore.SpreadsheetID)
	str("GOOGLE_SHEET_KEY_FILE_PATH", &cfg.RowStore.CredentialsFile)
	str("SQLITE_DSN", &cfg.RowStore.SQLite.DSN)

	str("ATTEMPT_STORE_DRIVER", &cfg.RateLimit.Store.Type)
	str("REDIS_ADDR", &cfg.RateLimit.Store.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.RateLimit.Store.Redis.Password)

	str("MAKE_WEBHOOK_URL", &cfg.Relay.WebhookURL)
	if v, ok := lookup("MAKE_SIGNING_SECRET"); ok {
		cfg.Relay.SigningSecret = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *Loader) validate(cfg *Config) ([]string, error) {
	var warnings []string
	fail := func(format string, args ...any) error {
		return apperrors.New(apperrors.KindConfig, "config.validate", fmt.Sprintf(format, args...))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fail("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.BodyLimitBytes <= 0 {
		return nil, fail("body_limit_bytes must be positive")
	}

	switch {
	case cfg.Auth.SessionSecret == "":
		return nil, fail("SESSION_SECRET is required")
	case len(cfg.Auth.SessionSecret) < 32 && cfg.Server.Production:
		return nil, fail("SESSION_SECRET must be at least 32 bytes in production")
	case len(cfg.Auth.SessionSecret) < 32:
		warnings = append(warnings, "SESSION_SECRET is shorter than 32 bytes")
	}
	if cfg.Auth.AdminSecret == "" {
		warnings = append(warnings, "ADMIN_PASS is not set, admin login is disabled")
	}
	if cfg.Auth.CookieName == "" {
		return nil, fail("auth.cookie_name is required")
	}
	if cfg.Auth.SessionTTL <= 0 || cfg.Auth.RememberTTL <= 0 {
		return nil, fail("session TTLs must be positive")
	}

	if cfg.RateLimit.Window <= 0 || cfg.RateLimit.Limit <= 0 {
		return nil, fail("rate_limit window and limit must be positive")
	}
	switch strings.ToLower(cfg.RateLimit.Store.Type) {
	case "memory":
	case "redis":
		if cfg.RateLimit.Store.Redis.Addr == "" {
			return nil, fail("rate_limit.store.redis.addr is required for the redis driver")
		}
	case "sqlite":
		if cfg.RateLimit.Store.SQLite.DSN == "" {
			return nil, fail("rate_limit.store.sqlite.dsn is required for the sqlite driver")
		}
	default:
		return nil, fail("unknown attempt store driver %q", cfg.RateLimit.Store.Type)
	}

	switch strings.ToLower(cfg.RowStore.Type) {
	case "sheets":
		if cfg.RowStore.SpreadsheetID == "" {
			return nil, fail("SHEET_ID is required for the sheets row store")
		}
	case "sqlite":
		if cfg.RowStore.SQLite.DSN == "" {
			return nil, fail("row_store.sqlite.dsn is required for the sqlite driver")
		}
	case "memory":
		warnings = append(warnings, "memory row store selected, data is not persisted")
	default:
		return nil, fail("unknown row store driver %q", cfg.RowStore.Type)
	}

	// The sheet name comes from the range itself.
	if i := strings.IndexByte(cfg.Portal.Range, '!'); i <= 0 || i == len(cfg.Portal.Range)-1 {
		return nil, fail("portal.range must name a sheet and columns, got %q", cfg.Portal.Range)
	}
	if cfg.Portal.MinPasswordLength <= 0 {
		return nil, fail("portal.min_password_length must be positive")
	}
	if cfg.Portal.BcryptCost < 4 || cfg.Portal.BcryptCost > 31 {
		return nil, fail("portal.bcrypt_cost out of range: %d", cfg.Portal.BcryptCost)
	}
	if cfg.Portal.HashConcurrency <= 0 {
		cfg.Portal.HashConcurrency = 1
	}

	if cfg.Relay.WebhookURL == "" {
		warnings = append(warnings, "MAKE_WEBHOOK_URL is not set, admin actions will fail")
	}
	if cfg.Relay.Timeout <= 0 {
		cfg.Relay.Timeout = 15 * time.Second
	}
	return warnings, nil
}
