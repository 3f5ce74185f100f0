// Package clients provides the resilient HTTP transport the PostgREST store runs on.
package clients

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport failures. Callers translate these into store errors.
var (
	// ErrCircuitOpen is returned without contacting the upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRetriesExhausted wraps the last failure once every attempt has been spent.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// StatusError records an upstream response that was worth retrying but kept failing.
type StatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// retryableStatus reports whether a response status is transient.
// PostgREST answers 503 while its schema cache reloads and the Supabase gateway sheds load with 429.
func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}
