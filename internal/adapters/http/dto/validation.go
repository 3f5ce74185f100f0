package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/quotes-api/internal/app"
)

// Request decoding failures. Both are answered with 400.
var (
	// ErrValidation wraps struct tag failures; ValidationErrors extracts the per-field detail.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps malformed JSON bodies and query values of the wrong type.
	ErrBinding = errors.New("binding failed")
)

// timestampLayouts are the created_at bound formats accepted by date_from and date_to.
var timestampLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// fieldMessages maps validation tags to the detail shown for a field.
var fieldMessages = map[string]string{
	"required": "this field is required",
	"notblank": "must not be blank",
	"isodate":  "must be an ISO-8601 date or timestamp",
	"taglist":  "must list at least one non-empty tag",
}

var requestValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(parameterName)

	custom := map[string]validator.Func{
		"notblank": notBlank,
		"isodate":  isoTimestamp,
		"taglist":  nonEmptyTagList,
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering %s validation: %v", tag, err))
		}
	}

	return v
})

// Validate checks a request struct against its validate tags.
func Validate(v any) error {
	if err := requestValidator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// ValidationErrors returns one message per failing parameter, keyed by its
// query or JSON name. Errors that carry no field detail yield an empty map.
func ValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return out
	}

	for _, fe := range fieldErrs {
		out[fe.Field()] = fieldMessage(fe)
	}

	return out
}

// IsValidationError reports whether err carries field-level validation detail.
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param() + unitSuffix(fe.Kind())
	case "max":
		return "must be at most " + fe.Param() + unitSuffix(fe.Kind())
	}

	if msg, ok := fieldMessages[fe.Tag()]; ok {
		return msg
	}

	return "failed validation: " + fe.Tag()
}

func unitSuffix(kind reflect.Kind) string {
	if kind == reflect.String {
		return " characters"
	}

	return ""
}

// parameterName reports fields under their query name, else their JSON name.
func parameterName(f reflect.StructField) string {
	for _, key := range []string{"form", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}

		if name != "" {
			return name
		}
	}

	return f.Name
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func isoTimestamp(fl validator.FieldLevel) bool {
	value := fl.Field().String()

	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}

	return false
}

func nonEmptyTagList(fl validator.FieldLevel) bool {
	return len(app.ParseTags(fl.Field().String())) > 0
}
