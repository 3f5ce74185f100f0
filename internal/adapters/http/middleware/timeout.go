package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// errRequestTimeout is the cause attached to deadlines set by Timeout.
var errRequestTimeout = errors.New("request timeout exceeded")

// Timeout bounds the request context. When its own deadline fires before the
// handler wrote a response the request ends with 504 TIMEOUT. Deadlines set by
// anyone else are left to the handler.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeoutCause(c.Request.Context(), timeout, errRequestTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if c.Writer.Written() || !errors.Is(context.Cause(ctx), errRequestTimeout) {
			return
		}

		logging.FromContext(ctx).WarnContext(ctx, "request timed out",
			slog.String("route", c.FullPath()),
			slog.Duration("timeout", timeout),
		)

		dto.AbortWithErrorCode(c, dto.ErrorCodeTimeout, errRequestTimeout.Error())
	}
}
