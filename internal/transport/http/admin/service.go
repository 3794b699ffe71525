package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"tms-server/internal/domain/auth"
	"tms-server/internal/domain/auth/attempts"
	"tms-server/internal/domain/eventbus"
	apperrors "tms-server/internal/platform/errors"
	"tms-server/internal/platform/logging"
	"tms-server/internal/platform/observability"
	httptransport "tms-server/internal/transport/http"
)

type Options struct {
	Sessions  *auth.AdminService
	Limiter   *auth.LoginLimiter
	Gate      *auth.Gate
	Cookie    auth.SessionCookie
	Relay     *Relay
	Bus       *eventbus.Bus
	Attempts  attempts.Store
	Logger    *logging.Logger
	LoginPage string
	PanelPath string
	PanelDir  string
}

// Service is the HTTP surface of the admin area: session endpoints, the
// guarded action relay and the panel pages.
type Service struct {
	opts   Options
	logger *logging.Logger
}

func NewService(opts Options) (*Service, error) {
	const op = "admin.new"
	if opts.Sessions == nil || opts.Limiter == nil || opts.Gate == nil {
		return nil, apperrors.New(apperrors.KindConfig, op, "sessions, limiter and gate are required")
	}
	if opts.Relay == nil {
		return nil, apperrors.New(apperrors.KindConfig, op, "relay is required")
	}
	if opts.LoginPage == "" {
		opts.LoginPage = "/admin.html"
	}
	if opts.PanelPath == "" {
		opts.PanelPath = "/admin/panel"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{opts: opts, logger: logger}, nil
}

// Register mounts the admin routes on the engine root.
func (s *Service) Register(_ context.Context, router gin.IRouter) error {
	api := router.Group("/api/admin")
	api.POST("/login", s.handleLogin)
	api.GET("/session", s.handleSession)
	api.POST("/logout", s.handleLogout)

	actions := api.Group("", httptransport.RequireAdminForAPI(s.opts.Gate))
	for _, action := range relayActions {
		actions.POST("/"+action.path, s.handleRelay(action))
	}
	actions.GET("/stats", s.handleStats)

	router.GET("/admin", s.handleAdminEntry)

	panel := router.Group(s.opts.PanelPath, httptransport.RequireAdminForPage(s.opts.Gate, s.opts.LoginPage))
	panel.GET("/*filepath", s.handlePanel())

	s.logger.InfoTag("HTTP", "admin routes registered, panel at %s", s.opts.PanelPath)
	return nil
}

type loginRequest struct {
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// @Summary Admin login
// @Tags admin
// @Accept json
// @Produce json
// @Param body body admin.loginRequest true "admin password and remember flag"
// @Success 200 {object} object "session cookie set"
// @Failure 401 {object} httptransport.ErrorBody
// @Failure 429 {object} httptransport.ErrorBody
// @Router /api/admin/login [post]
func (s *Service) handleLogin(c *gin.Context) {
	decision := s.opts.Limiter.Check(c.Request.Context(), c.ClientIP())
	if !decision.Allowed {
		s.opts.Bus.PublishAsync(eventbus.EventRateLimited, eventbus.AuthEvent{
			Topic:   eventbus.EventRateLimited,
			Outcome: eventbus.OutcomeDenied,
			Client:  c.ClientIP(),
			Subject: auth.AdminSubject,
			Reason:  "admin login window exhausted",
			At:      time.Now(),
		})
		httptransport.TooManyRequests(c, decision.RetryAfter)
		return
	}

	var req loginRequest
	if !httptransport.BindJSON(c, &req) {
		return
	}

	session, err := s.opts.Sessions.Login(c.Request.Context(), req.Password, req.Remember)
	if err != nil {
		httptransport.RespondError(c, s.logger, err, "Internal Server Error")
		return
	}
	s.opts.Cookie.Write(c.Writer, session.Token, session.TTL)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Report whether the caller holds an admin session
// @Tags admin
// @Produce json
// @Success 200 {object} object
// @Router /api/admin/session [get]
func (s *Service) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": s.opts.Gate.IsAuthenticatedAdmin(c.Request)})
}

// @Summary Clear the admin session cookie
// @Tags admin
// @Produce json
// @Success 200 {object} object
// @Router /api/admin/logout [post]
func (s *Service) handleLogout(c *gin.Context) {
	s.opts.Cookie.Clear(c.Writer)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleStats reports attempt store state, audit bus drops and request counters.
//
// @Summary Attempt store, audit bus and request counters
// @Tags admin
// @Produce json
// @Success 200 {object} object
// @Failure 401 {object} object
// @Router /api/admin/stats [get]
func (s *Service) handleStats(c *gin.Context) {
	resp := gin.H{"metrics": observability.Snapshot()}

	if s.opts.Attempts != nil {
		stats, err := s.opts.Attempts.Stats(c.Request.Context())
		if err != nil {
			s.logger.WarnTag("HTTP", "attempt store stats: %v", err)
			stats = map[string]any{"error": "unavailable"}
		}
		resp["attempts"] = stats
	}
	if s.opts.Bus != nil {
		resp["audit_dropped"] = s.opts.Bus.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) handleAdminEntry(c *gin.Context) {
	if s.opts.Gate.IsAuthenticatedAdmin(c.Request) {
		c.Redirect(http.StatusFound, s.opts.PanelPath)
		return
	}
	c.Redirect(http.StatusFound, s.opts.LoginPage)
}

// handlePanel serves the panel directory. Extensionless paths fall back to
// the matching .html file and HTML is never cached.
func (s *Service) handlePanel() gin.HandlerFunc {
	if s.opts.PanelDir == "" {
		return func(c *gin.Context) {
			c.String(http.StatusNotFound, "Not found")
		}
	}
	fs := static.LocalFile(s.opts.PanelDir, false)
	files := http.StripPrefix(s.opts.PanelPath, http.FileServer(fs))

	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if !fs.Exists(s.opts.PanelPath, p) {
			if strings.Contains(p[strings.LastIndex(p, "/")+1:], ".") || !fs.Exists(s.opts.PanelPath, p+".html") {
				c.String(http.StatusNotFound, "Not found")
				return
			}
			p += ".html"
			c.Request.URL.Path = p
		}
		if strings.HasSuffix(p, ".html") || strings.HasSuffix(p, "/") {
			c.Header("Cache-Control", "no-store")
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}
