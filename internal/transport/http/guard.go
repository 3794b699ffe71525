package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tms-server/internal/domain/auth"
)

// Denial is what a guard does with a request that is not an authenticated admin.
type Denial interface {
	deny(c *gin.Context)
}

// Reject answers with a status and JSON body. Used by programmatic callers.
type Reject struct {
	Status int
	Body   any
}

func (r Reject) deny(c *gin.Context) {
	c.AbortWithStatusJSON(r.Status, r.Body)
}

// Redirect sends a browser to Location.
type Redirect struct {
	Location string
}

func (r Redirect) deny(c *gin.Context) {
	c.Redirect(http.StatusFound, r.Location)
	c.Abort()
}

// Unauthorized is the body API guards reject with.
type Unauthorized struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func guard(gate *auth.Gate, denial Denial) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gate.IsAuthenticatedAdmin(c.Request) {
			c.Next()
			return
		}
		denial.deny(c)
	}
}

// RequireAdminForAPI guards JSON endpoints: 401 with a machine-readable body.
func RequireAdminForAPI(gate *auth.Gate) gin.HandlerFunc {
	return guard(gate, Reject{Status: http.StatusUnauthorized, Body: Unauthorized{OK: false, Error: "Unauthorized"}})
}

// RequireAdminForPage guards browser pages: 302 to the login page.
func RequireAdminForPage(gate *auth.Gate, loginPage string) gin.HandlerFunc {
	return guard(gate, Redirect{Location: loginPage})
}
