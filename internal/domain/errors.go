// Package domain holds the quote model and its failure taxonomy.
// Nothing here knows about HTTP; adapters translate these errors at the edge.
package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. Match them with errors.Is or the Is helpers.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("unavailable")
	ErrStore       = errors.New("store error")
	ErrAggregation = errors.New("statistics computation error")
)

var errUnknown = errors.New("unknown failure")

// Error is a classified failure. Kind is one of the sentinels above and Cause,
// when set, is the lower-level error that produced it. Both match errors.Is.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}

	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

// NewNotFoundError reports a missing entity. id may be empty, e.g. when a
// random pick finds the collection empty.
func NewNotFoundError(entity, id string) error {
	msg := entity + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s with id %q not found", entity, id)
	}

	return &Error{Kind: ErrNotFound, Message: msg}
}

// NewForbiddenError reports an operation the caller may not perform.
func NewForbiddenError(operation, reason string) error {
	msg := fmt.Sprintf("operation %q forbidden", operation)
	if reason != "" {
		msg += ": " + reason
	}

	return &Error{Kind: ErrForbidden, Message: msg}
}

// NewUnavailableError reports a dependency that cannot be reached.
func NewUnavailableError(service, reason string) error {
	msg := fmt.Sprintf("service %q unavailable", service)
	if reason != "" {
		msg += ": " + reason
	}

	return &Error{Kind: ErrUnavailable, Message: msg}
}

// NewStoreError reports a store call that failed. The cause text is kept in
// the message because clients see it in STORE_ERROR responses.
func NewStoreError(operation string, cause error) error {
	msg := "database error"
	if operation != "" {
		msg += " during " + operation
	}

	return &Error{Kind: ErrStore, Message: msg, Cause: orUnknown(cause)}
}

// NewAggregationError reports that statistics could not be computed.
func NewAggregationError(cause error) error {
	return &Error{Kind: ErrAggregation, Message: ErrAggregation.Error(), Cause: orUnknown(cause)}
}

func orUnknown(err error) error {
	if err == nil {
		return errUnknown
	}

	return err
}

// ValidationError is a rejected input. Field names the request parameter and
// becomes the key of the response details.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}

	return "validation failed for " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue also records the rejected value for logging.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool  { return errors.Is(err, ErrValidation) }
func IsForbidden(err error) bool   { return errors.Is(err, ErrForbidden) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
func IsStore(err error) bool       { return errors.Is(err, ErrStore) }
func IsAggregation(err error) bool { return errors.Is(err, ErrAggregation) }
