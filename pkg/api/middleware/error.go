package middleware

import (
	"net/http"

	"github.com/faradayio/falconeri/pkg/ferrors"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/gin-gonic/gin"
)

// HandleErrors drains c.Errors after the handler chain runs and writes a
// plain-text response, mapping ferrors.Code to an HTTP status per spec
// §7 ("plain-text body, 5xx for server errors, 4xx for auth and
// validation"). Grounded on the teacher's HandleErrors (AMD-AGI-Primus-
// SaFE Lens core pkg/router/middleware/handle-error.go): inspect
// c.Errors[0], abort with the mapped status.
func HandleErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors[0].Err
		status := statusForCode(ferrors.CodeOf(err))
		log.Errorf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.Abort()
		c.String(status, err.Error())
	}
}

func statusForCode(code ferrors.Code) int {
	switch code {
	case ferrors.CodeValidation:
		return http.StatusBadRequest
	case ferrors.CodeAuth:
		return http.StatusUnauthorized
	case ferrors.CodeNotFound:
		return http.StatusNotFound
	case ferrors.CodeStateMachine:
		return http.StatusConflict
	case ferrors.CodeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
