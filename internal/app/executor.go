package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

// ExecutionStep names one stage of a mutation.
//
// Mutations run validate, perform, verify, archive and respond in that order.
// Validate rejects input before the store is touched. Verify inspects the row the
// store returned. Archive publishes change events once the write is confirmed.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the operation and step a mutation stopped at.
// Domain errors stay reachable through Unwrap.
type ExecutionError struct {
	Op   string
	Step ExecutionStep
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}

	return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FailedStep reports the step at which err stopped a mutation.
func FailedStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		return "", false
	}

	return execErr.Step, true
}

// Executor runs Operations with per-step logging.
type Executor struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger, now: time.Now}
}

// Operation is a mutation split into steps. I is the input, P what the store
// returned, V the verified result and O the response. Nil steps are skipped and
// pass the zero value along.
type Operation[I, P, V, O any] struct {
	Name string

	Validate func(ctx context.Context, in I) error
	Perform  func(ctx context.Context, in I) (P, error)
	Verify   func(ctx context.Context, in I, performed P) (V, error)
	Archive  func(ctx context.Context, in I, verified V) error
	Respond  func(ctx context.Context, in I, verified V) (O, error)
}

// Execute runs op on in. The first failing step ends the run with an *ExecutionError.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], in I) (O, error) {
	var zero O

	logger := logging.FromContextOr(ctx, exec.logger).With(slog.String("operation", op.Name))
	started := exec.now()

	run := stepRunner(ctx, logger, op.Name)

	if op.Validate != nil {
		if err := run(StepValidate, func() error { return op.Validate(ctx, in) }); err != nil {
			return zero, err
		}
	}

	var performed P
	if op.Perform != nil {
		err := run(StepPerform, func() (err error) {
			performed, err = op.Perform(ctx, in)
			return err
		})
		if err != nil {
			return zero, err
		}
	}

	var verified V
	if op.Verify != nil {
		err := run(StepVerify, func() (err error) {
			verified, err = op.Verify(ctx, in, performed)
			return err
		})
		if err != nil {
			return zero, err
		}
	}

	if op.Archive != nil {
		if err := run(StepArchive, func() error { return op.Archive(ctx, in, verified) }); err != nil {
			return zero, err
		}
	}

	var out O
	if op.Respond != nil {
		err := run(StepRespond, func() (err error) {
			out, err = op.Respond(ctx, in, verified)
			return err
		})
		if err != nil {
			return zero, err
		}
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", exec.now().Sub(started)))

	return out, nil
}

// stepRunner returns a func running one step and wrapping its failure.
// Failures the caller caused log at warn.
func stepRunner(ctx context.Context, logger *slog.Logger, op string) func(ExecutionStep, func() error) error {
	return func(step ExecutionStep, fn func() error) error {
		logger.DebugContext(ctx, "step started", slog.String("step", string(step)))

		err := fn()
		if err == nil {
			return nil
		}

		level := slog.LevelError
		if step == StepValidate || callerFault(err) {
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, "step failed", slog.String("step", string(step)), slog.Any("error", err))

		return &ExecutionError{Op: op, Step: step, Err: err}
	}
}

func callerFault(err error) bool {
	return domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsForbidden(err)
}
