package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// probePrefix marks the operational endpoints, which are polled too often to log.
const probePrefix = "/-/"

// Logging writes one "request completed" line per API request.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, probePrefix) {
			c.Next()
			return
		}

		started := time.Now()
		ctx := c.Request.Context()
		log := logging.FromContextOr(ctx, logger)

		log.DebugContext(ctx, "request started",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		elapsed := time.Since(started)
		status := c.Writer.Status()

		attrs := make([]slog.Attr, 0, 9)
		attrs = append(attrs,
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", elapsed),
			slog.Int64("latency_ms", elapsed.Milliseconds()),
			slog.Int("bytes", c.Writer.Size()),
		)

		if q := c.Request.URL.RawQuery; q != "" {
			attrs = append(attrs, slog.String("query", q))
		}

		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			attrs = append(attrs, slog.Any("errors", errs.Errors()))
		}

		log.LogAttrs(ctx, statusLevel(status), "request completed", attrs...)
	}
}

// statusLevel logs client errors at warn and server errors at error.
func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
