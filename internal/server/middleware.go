package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tiffin/internal/observability/context"
	"github.com/smallbiznis/tiffin/internal/usercontext"
)

// UserRequired resolves the caller from the X-User-Id header and stores it
// on the request context. Requests without a parseable user id are rejected
// before any handler runs.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), userID)
		ctx = obscontext.WithUserID(ctx, raw)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
