// This file contains panic recovery utilities used around model fitting so that
// a panic inside an estimator aborts only the current classify action.

package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error that was created from a recovered panic.
// It includes the original panic value and stack trace information.
type PanicError struct {
	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string

	// Operation identifies where the panic was recovered
	Operation string
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover is meant to be deferred with a pointer to the named error result of
// the enclosing function. A recovered panic becomes a *PanicError; if the
// function had already set an error, both are kept in a wrapped error.
//
// Usage:
//
//	func (c *SVC) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "SVC.Fit")
//	    ...
//	}
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		panicErr := NewPanicError(operation, r)

		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)",
				operation, r, *err)
		} else {
			*err = panicErr
		}
	}
}

// SafeExecute runs fn and converts any panic into a *PanicError.
//
//	err := errors.SafeExecute("RandomForestClassifier.Fit", func() error {
//	    return forest.Fit(X, y)
//	})
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
