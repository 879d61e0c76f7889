package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/geopulselabs/geopulse/internal/observability/context"
)

const userIDHeader = "X-User-Id"

// requireUser extracts the authenticated caller identity supplied by
// the upstream auth layer. Requests without it never reach a handler.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			AbortWithError(c, newValidationError("user", "unauthenticated", "missing "+userIDHeader+" header"))
			return
		}
		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return obscontext.UserIDFromGin(c)
}
