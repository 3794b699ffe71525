package httptransport

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/swaggo/swag"

	"tms-server/internal/domain/auth"
	"tms-server/internal/platform/config"
	"tms-server/internal/platform/logging"
	"tms-server/internal/platform/observability"
	_ "tms-server/internal/transport/http/docs"
)

const RequestIDHeader = "X-Request-ID"

// Options configures the HTTP router builder.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
}

// Router bundles the gin engine with the /api group.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine with recovery, request ids, access logging,
// security headers, CORS, a body limit and the public static mount.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	cfg := opts.Config.Server
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if strings.EqualFold(opts.Config.Log.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorTag("HTTP", "panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{Error: "Internal Server Error"})
	}))
	engine.Use(requestContextMiddleware())
	engine.Use(loggingMiddleware(logger))
	engine.Use(observabilityMiddleware())
	engine.Use(securityHeadersMiddleware())

	// An empty list trusts no proxy, so ClientIP is the socket peer.
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	if cfg.FrontendOrigin != "" {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     []string{cfg.FrontendOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	if cfg.BodyLimitBytes > 0 {
		engine.Use(bodyLimitMiddleware(cfg.BodyLimitBytes))
	}

	if dirExists(cfg.PublicDir) {
		engine.Use(noStoreHTML(), static.Serve("/", static.LocalFile(cfg.PublicDir, false)))
	}

	engine.GET("/api/openapi.json", openAPIHandler(logger))
	engine.NoRoute(notFoundHandler(cfg.PublicDir))

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

// requestContextMiddleware tags every request with an id and carries the
// client address into the request context for audit events.
func requestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(auth.WithClient(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		logger.InfoTag(
			"HTTP",
			"%s %s -> %d (%s) client=%s id=%s",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
			c.ClientIP(),
			c.GetString("request_id"),
		)
	}
}

// observabilityMiddleware counts requests per route and status.
func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := map[string]string{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		ctx := c.Request.Context()
		observability.RecordMetric(ctx, "http.requests", 1, labels)
		observability.RecordMetric(ctx, "http.request.duration_ms", float64(time.Since(start).Milliseconds()), labels)
	}
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// noStoreHTML keeps browsers from caching HTML pages.
func noStoreHTML() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasSuffix(p, ".html") || strings.HasSuffix(p, "/") {
			c.Header("Cache-Control", "no-store")
		}
		c.Next()
	}
}

// openAPIHandler serves the registered swagger document.
func openAPIHandler(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "render openapi document: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorBody{Error: "Internal Server Error"})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func notFoundHandler(publicDir string) gin.HandlerFunc {
	page := ""
	if publicDir != "" {
		page = filepath.Join(publicDir, "404.html")
	}
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, ErrorBody{Error: "Not found"})
			return
		}
		if page != "" {
			if body, err := os.ReadFile(page); err == nil {
				c.Data(http.StatusNotFound, "text/html; charset=utf-8", body)
				return
			}
		}
		c.String(http.StatusNotFound, "Not found")
	}
}

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
