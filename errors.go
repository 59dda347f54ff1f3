// Package coopsched error types support cause chains via errors.Is/errors.As.
package coopsched

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrSchedulerRunning is returned when RunUntilIdle or RunForever is
	// called while a driver loop is already running.
	ErrSchedulerRunning = errors.New("coopsched: scheduler is already running")

	// ErrSchedulerTerminated is returned when operations are attempted on a
	// terminated scheduler.
	ErrSchedulerTerminated = errors.New("coopsched: scheduler has been terminated")

	// ErrReentrantRun is returned when a run entry point is called from a
	// task executing on the driver goroutine itself.
	ErrReentrantRun = errors.New("coopsched: cannot run the driver from within the driver")

	// ErrAlreadySettled is returned by ResolveFunc and RejectFunc when the
	// future has already been settled. Settling twice is a programming
	// error; it is signaled rather than silently ignored to aid debugging.
	ErrAlreadySettled = errors.New("coopsched: future is already settled")

	// ErrNoInput is the rejection reason used by Race and Any when called
	// with zero input futures, for which no winner is defined.
	ErrNoInput = errors.New("coopsched: no input futures")

	// ErrChainCycle is the rejection reason used when a future would adopt
	// itself as its own result.
	ErrChainCycle = errors.New("coopsched: chaining cycle detected")
)

// PanicError wraps a value recovered from a panicking task or settlement
// handler. It is the rejection reason of a chained future whose handler
// panicked, and the value reported through the unhandled-failure callback
// when a plain task panics.
type PanicError struct {
	// Value is the recovered panic value.
	Value Result
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("coopsched: recovered panic: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] through the cause chain.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// AggregateError is the rejection reason used by [Scheduler.Any] when every
// input future rejected.
//
// The Errors field contains the rejection reasons from all inputs, in input
// order (not settlement order).
type AggregateError struct {
	// Message is the human-readable summary.
	Message string
	// Errors contains all rejection reasons, in input order.
	Errors []error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "coopsched: all futures were rejected"
}

// Unwrap returns the errors slice for multi-error unwrapping (Go 1.20+).
// This enables [errors.Is] and [errors.As] to check against all errors
// in the aggregate.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValueError wraps a non-error rejection reason as an error, so that
// arbitrary rejection values can participate in an [AggregateError].
type ValueError struct {
	// Value is the original non-error rejection reason.
	Value Result
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return fmt.Sprintf("%v", e.Value)
}

// asError converts a rejection reason to an error, wrapping non-error
// values in ValueError.
func asError(reason Result) error {
	if err, ok := reason.(error); ok {
		return err
	}
	return &ValueError{Value: reason}
}
