package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tms-server/internal/domain/auth"
	"tms-server/internal/domain/eventbus"
	apperrors "tms-server/internal/platform/errors"
	"tms-server/internal/platform/logging"
	httptransport "tms-server/internal/transport/http"
)

// Service exposes the portal endpoints.
type Service struct {
	portal   *auth.PortalService
	throttle *httptransport.Throttle
	logger   *logging.Logger
}

// NewService wires the portal flow. A nil throttle disables per-client throttling.
func NewService(portal *auth.PortalService, throttle *httptransport.Throttle, logger *logging.Logger) (*Service, error) {
	if portal == nil {
		return nil, apperrors.New(apperrors.KindConfig, "portal.new", "portal service is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{portal: portal, throttle: throttle, logger: logger}, nil
}

// RateLimitedHook publishes an audit event for throttled portal requests.
func RateLimitedHook(bus *eventbus.Bus) httptransport.ThrottleOption {
	return httptransport.OnLimited(func(c *gin.Context) {
		bus.PublishAsync(eventbus.EventRateLimited, eventbus.AuthEvent{
			Topic:   eventbus.EventRateLimited,
			Outcome: eventbus.OutcomeDenied,
			Client:  c.ClientIP(),
			Reason:  "portal throttle " + c.Request.URL.Path,
			At:      time.Now(),
		})
	})
}

func (s *Service) Register(_ context.Context, router gin.IRouter) error {
	router.POST("/check-email", s.handleCheckEmail)

	limited := router.Group("")
	if s.throttle != nil {
		limited.Use(s.throttle.Middleware())
	}
	limited.POST("/login", s.handleLogin)
	limited.POST("/set-password", s.handleSetPassword)

	s.logger.InfoTag("HTTP", "portal routes registered")
	return nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary Report whether a portal account exists and has a password
// @Tags portal
// @Accept json
// @Produce json
// @Success 200 {object} object
// @Failure 400 {object} httptransport.ErrorBody
// @Router /check-email [post]
func (s *Service) handleCheckEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !httptransport.BindJSON(c, &req) {
		return
	}
	status, err := s.portal.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		httptransport.RespondError(c, s.logger, err, "Internal Server Error")
		return
	}
	if !status.Exists {
		c.JSON(http.StatusOK, gin.H{"exists": false})
		return
	}
	var username any
	if status.Username != "" {
		username = status.Username
	}
	c.JSON(http.StatusOK, gin.H{
		"exists":      true,
		"hasPassword": status.HasPassword,
		"username":    username,
	})
}

// @Summary Portal login
// @Tags portal
// @Accept json
// @Produce json
// @Param body body portal.credentialsRequest true "email and password"
// @Success 200 {object} object "username and key"
// @Failure 401 {object} httptransport.ErrorBody
// @Failure 403 {object} httptransport.ErrorBody
// @Failure 429 {object} httptransport.ErrorBody
// @Router /login [post]
func (s *Service) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if !httptransport.BindJSON(c, &req) {
		return
	}
	id, err := s.portal.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httptransport.RespondError(c, s.logger, err, "Internal Server Error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": id.Username, "key": id.Key})
}

// @Summary Set a portal password
// @Tags portal
// @Accept json
// @Produce json
// @Param body body portal.credentialsRequest true "email and new password"
// @Success 200 {object} object
// @Failure 400 {object} httptransport.ErrorBody
// @Failure 404 {object} httptransport.ErrorBody
// @Failure 429 {object} httptransport.ErrorBody
// @Router /set-password [post]
func (s *Service) handleSetPassword(c *gin.Context) {
	var req credentialsRequest
	if !httptransport.BindJSON(c, &req) {
		return
	}
	id, err := s.portal.SetPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httptransport.RespondError(c, s.logger, err, "Failed to update password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "username": id.Username, "key": id.Key})
}
