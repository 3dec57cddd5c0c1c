// Package middleware holds the Control Service's gin middleware chain:
// HTTP Basic auth and ferrors-to-HTTP-status error mapping, grounded on
// the teacher's router/middleware package (AMD-AGI-Primus-SaFE Lens
// core pkg/router/middleware): one gin.HandlerFunc per concern,
// abort with a status (and a plain-text body for errors) on failure,
// c.Next() otherwise.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// adminUser is the single shared Basic-auth username every falconeri
// client uses (spec §6: "a single shared credential user=falconeri,
// password = the Postgres password; this is a deliberate simplification").
const adminUser = "falconeri"

// BasicAuth returns a middleware requiring HTTP Basic auth with user
// "falconeri" and the given password. Constant-time comparison avoids
// leaking the password via response-timing.
func BasicAuth(password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(adminUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="falconeri"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
