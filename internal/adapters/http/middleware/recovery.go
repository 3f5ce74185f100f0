package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// Recovery converts a handler panic into a 500 INTERNAL_ERROR and logs the stack.
// It goes first in the chain so it also covers the other middleware.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				recovered(c, logger, r)
			}
		}()

		c.Next()
	}
}

func recovered(c *gin.Context, logger *slog.Logger, panicValue any) {
	ctx := c.Request.Context()

	logging.FromContextOr(ctx, logger).ErrorContext(ctx, "panic recovered",
		slog.Any("panic", panicValue),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("trace_id", dto.GetTraceID(c)),
		slog.String("stack", string(debug.Stack())),
	)

	if c.Writer.Written() {
		// The status line is already out.
		c.Abort()
		return
	}

	dto.AbortWithErrorCode(c, dto.ErrorCodeInternal, "an internal error occurred")
}
