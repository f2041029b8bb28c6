package zonepromise

import (
	"errors"
	"fmt"
)

// TypeError reports that a value was not of the type a Promise/A+ operation
// requires, chiefly promise self-resolution (spec 2.3.1).
type TypeError struct {
	Cause   error
	Message string
}

func (e *TypeError) Error() string {
	if e.Message == "" {
		return "type error"
	}
	return e.Message
}

func (e *TypeError) Unwrap() error { return e.Cause }

// RangeError reports that a value fell outside the range an operation
// accepts, e.g. a negative long-stack depth.
type RangeError struct {
	Cause   error
	Message string
}

func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

func (e *RangeError) Unwrap() error { return e.Cause }

// PanicError wraps a panic value recovered from a handler running on the
// microtask queue, or from a [Loop.Promisify] goroutine.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("zonepromise: handler panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is itself an error, so that
// errors.Is/errors.As can see through a recovered panic.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrNoPromiseResolved supplies the message of the [AggregateError] that
// [Any] rejects with when it is given no input promises. That
// AggregateError does not wrap ErrNoPromiseResolved; when every input of a
// non-empty call rejects, the AggregateError carries its own message.
var ErrNoPromiseResolved = errors.New("zonepromise: no promise was fulfilled")

// AggregateError collects every rejection reason from a failed combinator
// call, notably [Any].
type AggregateError struct {
	Message string
	Errors  []error
}

func (e *AggregateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("zonepromise: %d errors occurred", len(e.Errors))
}

// Unwrap exposes every aggregated error to errors.Is/errors.As (Go 1.20+).
func (e *AggregateError) Unwrap() []error { return e.Errors }

// ErrGoexit rejects a [Loop.Promisify] promise whose goroutine exited via
// runtime.Goexit instead of returning or panicking.
var ErrGoexit = errors.New("zonepromise: goroutine exited via runtime.Goexit")

// ErrLoopTerminated is returned by operations submitted to a [Loop] that has
// already shut down.
var ErrLoopTerminated = errors.New("zonepromise: loop terminated")

// WrapError wraps cause with a message, preserving it for errors.Is/errors.As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
