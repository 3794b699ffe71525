package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tms-server/internal/domain/auth"
	"tms-server/internal/domain/auth/attempts"
	"tms-server/internal/domain/eventbus"
	"tms-server/internal/domain/rowstore"
	platformconfig "tms-server/internal/platform/config"
	platformerrors "tms-server/internal/platform/errors"
	platformlogging "tms-server/internal/platform/logging"
	"tms-server/internal/platform/observability"
	platformstorage "tms-server/internal/platform/storage"
	httptransport "tms-server/internal/transport/http"
	httpadmin "tms-server/internal/transport/http/admin"
	httpportal "tms-server/internal/transport/http/portal"
)

// Options selects where configuration comes from.
type Options struct {
	ConfigPath string
	DotEnv     string
	Lookup     platformconfig.LookupFunc
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts       Options
	config     *platformconfig.Config
	configPath string
	warnings   []string
	logger     *platformlogging.Logger
	obsStop    observability.ShutdownFunc

	bus       *eventbus.Bus
	databases map[string]*gorm.DB
	rows      rowstore.Store
	attempts  attempts.Store

	codec    *auth.TokenCodec
	verifier *auth.CredentialVerifier
	cookie   auth.SessionCookie
	gate     *auth.Gate
	limiter  *auth.LoginLimiter
	admin    *auth.AdminService
	portal   *auth.PortalService
}

// Run loads configuration, builds every component in dependency order and
// serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}
	defer state.close()

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		if state.logger != nil {
			state.logger.ErrorTag("BOOT", "startup failed: %v", err)
		}
		return err
	}

	logger := state.logger
	logBootstrapGraph(logger, steps)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	// A server that fails to bind cancels groupCtx; stop waiting for a signal then.
	go func() {
		<-groupCtx.Done()
		stop()
	}()

	return waitForShutdown(signalCtx, cancel, logger, group, state.config.Server.ShutdownGrace)
}

func logBootstrapGraph(logger *platformlogging.Logger, steps []initStep) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "init graph")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "  %s: %s", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "  %s: %s (after %s)", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Install metrics recorder",
			DependsOn: []string{"logging:init-provider"},
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Start audit event bus",
			DependsOn: []string{"logging:init-provider"},
			Execute:   initEventBusStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Open embedded database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "rowstore:init",
			Title:     "Connect row store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initRowStoreStep,
		},
		{
			ID:        "attempts:init-store",
			Title:     "Initialise login attempt store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initAttemptStoreStep,
		},
		{
			ID:        "auth:init-services",
			Title:     "Initialise auth services",
			DependsOn: []string{"eventbus:init", "rowstore:init", "attempts:init-store"},
			Execute:   initAuthStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader()
	if state.opts.ConfigPath != "" {
		loader = loader.WithPath(state.opts.ConfigPath)
	}
	if state.opts.DotEnv != "" {
		loader = loader.WithDotEnv(state.opts.DotEnv)
	}
	if state.opts.Lookup != nil {
		loader = loader.WithLookup(state.opts.Lookup)
	}

	result, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	state.warnings = result.Warnings
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}
	cfg := state.config.Log
	logger, err := platformlogging.New(platformlogging.Config{
		Level:      cfg.Level,
		Dir:        cfg.Dir,
		Filename:   cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults+env"
	}
	logger.InfoTag("BOOT", "logging ready [%s] config=%s", cfg.Level, source)
	for _, w := range state.warnings {
		logger.WarnTag("CONFIG", "%s", w)
	}
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	stop, err := observability.Setup(ctx, observability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to install recorder", err)
	}
	state.obsStop = stop
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.New(2, 256)
	if err := eventbus.SubscribeAuditLog(bus, state.logger); err != nil {
		bus.Stop()
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:init", "failed to subscribe audit log", err)
	}
	state.bus = bus
	return nil
}

// initDatabaseStep opens one gorm handle per sqlite DSN in use so the row
// store and attempt store share it when configured alike.
func initDatabaseStep(_ context.Context, state *appState) error {
	state.databases = make(map[string]*gorm.DB)
	var dsns []string
	if strings.EqualFold(state.config.RowStore.Type, rowstore.DriverSQLite) {
		dsns = append(dsns, state.config.RowStore.SQLite.DSN)
	}
	if strings.EqualFold(state.config.RateLimit.Store.Type, attempts.DriverSQLite) {
		dsns = append(dsns, state.config.RateLimit.Store.SQLite.DSN)
	}
	for _, dsn := range dsns {
		if _, ok := state.databases[dsn]; ok {
			continue
		}
		db, err := platformstorage.OpenSQLite(dsn)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to open sqlite "+dsn, err)
		}
		state.databases[dsn] = db
		state.logger.InfoTag("STORAGE", "sqlite ready at %s", dsn)
	}
	return nil
}

func initRowStoreStep(ctx context.Context, state *appState) error {
	cfg := state.config.RowStore
	store, err := rowstore.New(ctx, rowstore.Config{
		Driver: cfg.Type,
		Sheets: rowstore.SheetsConfig{
			SpreadsheetID:   cfg.SpreadsheetID,
			CredentialsFile: cfg.CredentialsFile,
			Timeout:         cfg.Timeout,
		},
		SQLiteDSN: cfg.SQLite.DSN,
	}, rowstore.Dependencies{SQLiteDB: state.databases[cfg.SQLite.DSN]})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "rowstore:init", "failed to create row store", err)
	}
	state.rows = store
	state.logger.InfoTag("STORAGE", "row store driver %s", cfg.Type)
	return nil
}

func initAttemptStoreStep(ctx context.Context, state *appState) error {
	cfg := state.config.RateLimit.Store
	store, err := attempts.New(ctx, attempts.Config{
		Driver: cfg.Type,
		Prefix: cfg.Prefix,
		Redis: &attempts.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		SQLite: &attempts.SQLiteConfig{DSN: cfg.SQLite.DSN},
		Memory: &attempts.MemoryConfig{GCInterval: cfg.Cleanup},
	}, attempts.Dependencies{SQLiteDB: state.databases[cfg.SQLite.DSN]})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "attempts:init-store", "failed to create attempt store", err)
	}
	state.attempts = store
	state.logger.InfoTag("STORAGE", "attempt store driver %s", cfg.Type)
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	cfg := state.config

	codec, err := auth.NewTokenCodec(cfg.Auth.SessionSecret)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "auth:init-services", "invalid session secret", err)
	}
	verifier := auth.NewCredentialVerifier(auth.VerifierConfig{
		AdminSecret:     cfg.Auth.AdminSecret,
		BcryptCost:      cfg.Portal.BcryptCost,
		HashConcurrency: cfg.Portal.HashConcurrency,
	})
	cookie := auth.SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Server.Production}

	portal, err := auth.NewPortalService(state.rows, verifier, auth.PortalConfig{
		Range:             cfg.Portal.Range,
		IdentityMarker:    cfg.Portal.IdentityMarker,
		MinPasswordLength: cfg.Portal.MinPasswordLength,
	}, state.bus, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "auth:init-services", "invalid portal configuration", err)
	}

	state.codec = codec
	state.verifier = verifier
	state.cookie = cookie
	state.gate = auth.NewGate(codec, cookie)
	state.limiter = auth.NewLoginLimiter(state.attempts, auth.LimiterConfig{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	}, state.logger)
	state.admin = auth.NewAdminService(verifier, codec, auth.AdminConfig{
		SessionTTL:  cfg.Auth.SessionTTL,
		RememberTTL: cfg.Auth.RememberTTL,
	}, state.bus, state.logger)
	state.portal = portal
	return nil
}

// buildHandler assembles the router with every route group mounted.
func buildHandler(ctx context.Context, state *appState) (http.Handler, error) {
	cfg := state.config
	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: state.logger})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	adminService, err := httpadmin.NewService(httpadmin.Options{
		Sessions: state.admin,
		Limiter:  state.limiter,
		Gate:     state.gate,
		Cookie:   state.cookie,
		Relay: httpadmin.NewRelay(httpadmin.RelayConfig{
			WebhookURL:    cfg.Relay.WebhookURL,
			SigningSecret: cfg.Relay.SigningSecret,
			Timeout:       cfg.Relay.Timeout,
		}),
		Bus:       state.bus,
		Attempts:  state.attempts,
		Logger:    state.logger,
		LoginPage: cfg.Auth.LoginPage,
		PanelPath: cfg.Auth.PanelPath,
		PanelDir:  cfg.Server.PanelDir,
	})
	if err != nil {
		return nil, err
	}

	throttle := httptransport.NewThrottle(
		cfg.RateLimit.PortalPerMinute,
		cfg.RateLimit.PortalBurst,
		httpportal.RateLimitedHook(state.bus),
	)
	portalService, err := httpportal.NewService(state.portal, throttle, state.logger)
	if err != nil {
		return nil, err
	}

	if err := adminService.Register(ctx, router.Engine); err != nil {
		return nil, err
	}
	if err := portalService.Register(ctx, router.Engine); err != nil {
		return nil, err
	}
	return router.Engine, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	cfg := state.config.Server
	logger := state.logger

	handler, err := buildHandler(groupCtx, state)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on %s", cfg.Addr())

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

// startAttemptJanitor prunes passed windows from stores that do not expire
// them on their own.
func startAttemptJanitor(state *appState, g *errgroup.Group, groupCtx context.Context) {
	cfg := state.config.RateLimit.Store
	if !strings.EqualFold(cfg.Type, attempts.DriverSQLite) || cfg.Cleanup <= 0 {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Cleanup)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if err := state.attempts.CleanupExpired(groupCtx); err != nil {
					state.logger.WarnTag("STORAGE", "attempt cleanup failed: %v", err)
				}
			}
		}
	})
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	startAttemptJanitor(state, g, groupCtx)
	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
	grace time.Duration,
) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutting down: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	if grace <= 0 {
		grace = 10 * time.Second
	}
	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "shutdown finished with error: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(grace + 5*time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}

// close releases everything the init steps opened, in reverse order.
func (s *appState) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.attempts != nil {
		if err := s.attempts.Close(ctx); err != nil && s.logger != nil {
			s.logger.WarnTag("STORAGE", "attempt store close: %v", err)
		}
	}
	if s.rows != nil {
		if err := s.rows.Close(); err != nil && s.logger != nil {
			s.logger.WarnTag("STORAGE", "row store close: %v", err)
		}
	}
	for dsn, db := range s.databases {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && s.logger != nil {
				s.logger.WarnTag("STORAGE", "close sqlite %s: %v", dsn, err)
			}
		}
	}
	s.bus.Stop()
	if s.obsStop != nil {
		_ = s.obsStop(ctx)
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}
