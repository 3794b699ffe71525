package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tms-server/internal/platform/errors"
	"tms-server/internal/platform/logging"
)

const TooManyAttempts = "Too many attempts. Try again later."

// ErrorBody is the JSON shape of every error answered by the API.
type ErrorBody struct {
	Error string `json:"error"`
}

// RespondError maps err onto its status code and public message. Internal
// kinds answer with fallback and are logged with their cause.
func RespondError(c *gin.Context, logger *logging.Logger, err error, fallback string) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorTag("HTTP", "%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: apperrors.PublicMessage(err, fallback)})
}

// BindJSON decodes the request body into dst. A missing or malformed body
// leaves dst zero-valued so handlers report missing fields; only an
// oversized body is answered here. It reports whether the handler may continue.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorBody{Error: "Payload too large"})
			return false
		}
	}
	return true
}
