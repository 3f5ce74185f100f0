package telemetry

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

const (
	// HeaderTraceID echoes the active trace id back to the caller.
	HeaderTraceID = "X-Trace-ID"

	// ContextKeyTraceID is the gin context key error responses read the trace id from.
	ContextKeyTraceID = "trace_id"

	probePrefix = "/-/"
)

// Middleware returns the tracing handlers for the API: an otelgin server span
// per request (probes excluded) followed by a handler that publishes the
// trace id to the response, the gin context and the request logger.
// otelgin also records the http.server.* metrics.
func Middleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, probePrefix)
		})),
		traceID,
	}
}

func traceID(c *gin.Context) {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		c.Next()
		return
	}

	id := sc.TraceID().String()

	c.Header(HeaderTraceID, id)
	c.Set(ContextKeyTraceID, id)
	c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), id))

	c.Next()
}
