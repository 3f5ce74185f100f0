package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError lists every problem found, each prefixed with its koanf key.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrInvalid.Error() + ":\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

var configValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" {
			return strings.ToLower(f.Name)
		}

		return name
	})

	return v
})

// Validate reports all tag violations and backend requirements together.
// The service refuses to start on any of them.
func (c *Config) Validate() error {
	var problems []string

	var fieldErrs validator.ValidationErrors
	if err := configValidator().Struct(c); err != nil {
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}

		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	problems = append(problems, c.Store.backendProblems()...)

	if len(problems) == 0 {
		return nil
	}

	return &ValidationError{Problems: problems}
}

// backendProblems checks the settings the selected backend cannot run without.
func (s *StoreConfig) backendProblems() []string {
	switch {
	case s.Backend == BackendPostgREST && s.PostgREST.URL == "":
		return []string{"store.postgrest.url is required when store.backend is postgrest (set SUPABASE_URL)"}
	case s.Backend == BackendPostgres && s.Postgres.DSN == "":
		return []string{"store.postgres.dsn is required when store.backend is postgres"}
	}

	return nil
}

func describe(fe validator.FieldError) string {
	key := configKey(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		field, value, _ := strings.Cut(fe.Param(), " ")
		return fmt.Sprintf("%s is required when %s is %s", key, strings.ToLower(field), value)
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", key, fe.Value())
	}

	return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
}

// configKey drops the root type from a validator namespace:
// "Config.client.retry.max_attempts" becomes "client.retry.max_attempts".
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}

	return namespace
}
