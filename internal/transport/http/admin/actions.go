package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httptransport "tms-server/internal/transport/http"
)

type relayAction struct {
	path     string
	request  string
	required []string
	fields   []string
	stamp    string
}

var relayActions = []relayAction{
	{
		path:     "remove",
		request:  "remove user",
		required: []string{"user_id", "email"},
		fields:   []string{"user_id", "email"},
		stamp:    "requested_at_iso",
	},
	{
		path:     "add-user",
		request:  "add user",
		required: []string{"email", "payment_method", "payment_platform"},
		fields: []string{
			"email", "total_paid_usd", "track_count", "date",
			"services", "services_raw", "payment_method", "payment_platform",
		},
		stamp: "created_at_iso",
	},
	{
		path:     "reset-password",
		request:  "reset password",
		required: []string{"user_id", "email"},
		fields:   []string{"user_id", "email"},
		stamp:    "requested_at_iso",
	},
	{
		path:     "unblock",
		request:  "unblock user",
		required: []string{"user_id", "email"},
		fields:   []string{"user_id", "email", "reason"},
		stamp:    "requested_at_iso",
	},
	{
		path:     "block",
		request:  "block user",
		required: []string{"user_id", "email", "reason"},
		fields:   []string{"user_id", "email", "reason"},
		stamp:    "requested_at_iso",
	},
}

// present treats null, false, zero and "" as missing.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}

// @Summary Relay a signed admin action to the automation webhook
// @Tags admin
// @Accept json
// @Produce plain
// @Param action path string true "remove, add-user, reset-password, unblock or block"
// @Success 200 {string} string "approved"
// @Failure 400 {object} httptransport.ErrorBody
// @Failure 401 {object} object
// @Failure 502 {string} string "upstream rejection"
// @Router /api/admin/{action} [post]
func (s *Service) handleRelay(action relayAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if !httptransport.BindJSON(c, &body) {
			return
		}
		for _, name := range action.required {
			if !present(body[name]) {
				c.JSON(http.StatusBadRequest, httptransport.ErrorBody{Error: "Missing fields"})
				return
			}
		}

		fields := make(map[string]any, len(action.fields)+1)
		for _, name := range action.fields {
			if v, ok := body[name]; ok && v != nil {
				fields[name] = v
			}
		}
		fields[action.stamp] = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

		out, err := s.opts.Relay.Forward(c.Request.Context(), action.request, fields)
		if err != nil {
			s.logger.ErrorTag("RELAY", "%s failed: %v", action.request, err)
			c.JSON(http.StatusInternalServerError, httptransport.ErrorBody{Error: "server error"})
			return
		}
		if !out.Approved {
			s.logger.WarnTag("RELAY", "%s not approved: upstream %d", action.request, out.Status)
			c.String(http.StatusBadGateway, "upstream %d: %s", out.Status, out.Text)
			return
		}
		s.logger.InfoTag("RELAY", "%s approved", action.request)
		c.String(http.StatusOK, "approved")
	}
}
