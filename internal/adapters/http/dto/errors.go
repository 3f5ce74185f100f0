// Package dto holds the HTTP request and response shapes and the error envelope.
package dto

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// ErrorResponse is the body of every non-2xx response:
//
//	{"error":{"code":"NOT_FOUND","message":"...","details":{...}},"traceId":"..."}
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail carries a machine-readable code and a message for people.
// Details maps request parameters to what was wrong with them.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes.
const (
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeBadRequest   = "BAD_REQUEST"
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	ErrorCodeForbidden    = "FORBIDDEN"
	ErrorCodeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout      = "TIMEOUT"
	ErrorCodeStore        = "STORE_ERROR"
	ErrorCodeStats        = "STATS_ERROR"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

const (
	internalErrorMessage = "an internal error occurred"
	traceIDKey           = "trace_id"
	requestIDHeader      = "X-Request-ID"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:     http.StatusNotFound,
	ErrorCodeValidation:   http.StatusBadRequest,
	ErrorCodeBadRequest:   http.StatusBadRequest,
	ErrorCodeUnauthorized: http.StatusUnauthorized,
	ErrorCodeForbidden:    http.StatusForbidden,
	ErrorCodeUnavailable:  http.StatusServiceUnavailable,
	ErrorCodeTimeout:      http.StatusGatewayTimeout,
	ErrorCodeStore:        http.StatusInternalServerError,
	ErrorCodeStats:        http.StatusInternalServerError,
	ErrorCodeInternal:     http.StatusInternalServerError,
}

// domainCodes is checked in order. Aggregation failures wrap store failures,
// so they come first.
var domainCodes = []struct {
	kind error
	code string
}{
	{domain.ErrNotFound, ErrorCodeNotFound},
	{domain.ErrValidation, ErrorCodeValidation},
	{domain.ErrForbidden, ErrorCodeForbidden},
	{domain.ErrUnavailable, ErrorCodeUnavailable},
	{domain.ErrAggregation, ErrorCodeStats},
	{domain.ErrStore, ErrorCodeStore},
}

func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.Error.Details = details

	return resp
}

func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode returns the status for an error code. Unknown codes are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// MapDomainError picks the status and body for err. Domain errors keep their
// message; anything unclassified gets a generic one so internals do not leak.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	for _, dc := range domainCodes {
		if !errors.Is(err, dc.kind) {
			continue
		}

		resp := NewErrorResponse(dc.code, clientMessage(err))

		var invalid *domain.ValidationError
		if errors.As(err, &invalid) && invalid.Field != "" {
			resp.Error.Details = map[string]string{invalid.Field: invalid.Message}
		}

		return HTTPStatusFromCode(dc.code), resp
	}

	return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, internalErrorMessage)
}

// clientMessage is the text of the classified error inside err, without the
// operation and step wrapping added above the domain layer.
func clientMessage(err error) string {
	var classified *domain.Error
	if errors.As(err, &classified) {
		return classified.Error()
	}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}

	return err.Error()
}

// GetTraceID returns the id that correlates an error body with logs and traces:
// the gin "trace_id" key, else the active span, else the X-Request-ID header.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		id, _ := v.(string)
		return id
	}

	if c.Request == nil {
		return ""
	}

	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return c.GetHeader(requestIDHeader)
}

// HandleError writes the response for err. 5xx responses are logged with the cause.
func HandleError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	resp.TraceID = GetTraceID(c)

	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "request failed",
			"error", err.Error(),
			"status", status,
			"code", resp.Error.Code,
		)
	}

	c.JSON(status, resp)
}

// RespondWithErrorCode writes an error that did not come from the domain,
// such as an unparseable parameter.
func RespondWithErrorCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}

// RespondWithValidationErrors writes a 400 listing each rejected parameter.
func RespondWithValidationErrors(c *gin.Context, fieldErrors map[string]string) {
	resp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", fieldErrors)
	c.JSON(http.StatusBadRequest, resp.WithTraceID(GetTraceID(c)))
}

// AbortWithError stops the handler chain and writes the response for err.
func AbortWithError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	c.AbortWithStatusJSON(status, resp.WithTraceID(GetTraceID(c)))
}

// AbortWithErrorCode stops the handler chain with a fixed code.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}
