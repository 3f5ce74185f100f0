// Package middleware provides the Gin middleware chain of the quotes API.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

const (
	// HeaderRequestID identifies a single request.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID follows a transaction across services. The store
	// client forwards it.
	HeaderCorrelationID = "X-Correlation-ID"

	// Gin context keys holding the identifiers.
	ContextKeyRequestID     = logging.RequestIDKey
	ContextKeyCorrelationID = logging.CorrelationIDKey
)

// idKey keys an identifier in a request context.
type idKey string

const (
	requestIDKey     idKey = ContextKeyRequestID
	correlationIDKey idKey = ContextKeyCorrelationID
)

// identifier is one header-propagated id: where it lives and which logger
// attribute it becomes.
type identifier struct {
	header  string
	key     idKey
	withLog func(context.Context, string) context.Context
}

var (
	requestIdentifier     = identifier{HeaderRequestID, requestIDKey, logging.WithRequestID}
	correlationIdentifier = identifier{HeaderCorrelationID, correlationIDKey, logging.WithCorrelationID}
)

// RequestID reuses the caller's X-Request-ID or mints a UUID v4. The id is
// echoed on the response, stored in the request context and added to its logger.
func RequestID() gin.HandlerFunc {
	return requestIdentifier.middleware()
}

// CorrelationID does the same for X-Correlation-ID.
func CorrelationID() gin.HandlerFunc {
	return correlationIdentifier.middleware()
}

func (id identifier) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.GetHeader(id.header)
		if value == "" {
			value = uuid.NewString()
		}

		c.Set(string(id.key), value)
		c.Header(id.header, value)

		ctx := context.WithValue(c.Request.Context(), id.key, value)
		c.Request = c.Request.WithContext(id.withLog(ctx, value))

		c.Next()
	}
}

// GetRequestID returns the request ID, or "" outside the middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetCorrelationID returns the correlation ID, or "" outside the middleware.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	return valueOf(ctx, requestIDKey)
}

// CorrelationIDFromContext returns the correlation ID carried by ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return valueOf(ctx, correlationIDKey)
}

// ContextWithRequestID is used by callers outside an HTTP request, such as tests.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func valueOf(ctx context.Context, key idKey) string {
	if ctx == nil {
		return ""
	}

	v, _ := ctx.Value(key).(string)

	return v
}
