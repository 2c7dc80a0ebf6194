package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput    = errors.New("missing input table")
	ErrMalformedData   = errors.New("malformed data")
	ErrEngineExecution = errors.New("engine execution failed")
	ErrUnknownQuestion = errors.New("unknown question")
)

// MissingInputError reports a required named table that was not supplied.
type MissingInputError struct {
	Operation string
	Table     string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: required table %q not supplied", e.Operation, e.Table)
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// MalformedDataError reports an absent column or a value of the wrong type.
// Row is -1 when the problem is not tied to a single row.
type MalformedDataError struct {
	Operation string
	Table     string
	Column    string
	Row       int
	Reason    string
}

func (e *MalformedDataError) Error() string {
	msg := "malformed data"
	if e.Operation != "" {
		msg = e.Operation + ": " + msg
	}
	if e.Table != "" {
		msg += fmt.Sprintf(" in table %q", e.Table)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Row >= 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *MalformedDataError) Is(target error) bool { return target == ErrMalformedData }

// EngineExecutionError wraps a failure inside the computation engine.
type EngineExecutionError struct {
	Operation string
	Err       error
}

func (e *EngineExecutionError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("engine execution failed: %v", e.Err)
	}
	return fmt.Sprintf("%s: engine execution failed: %v", e.Operation, e.Err)
}

func (e *EngineExecutionError) Unwrap() error { return e.Err }

func (e *EngineExecutionError) Is(target error) bool { return target == ErrEngineExecution }

// WithOperation stamps an operation name onto taxonomy errors that lack one.
// Other errors are returned unchanged.
func WithOperation(err error, operation string) error {
	var malformed *MalformedDataError
	if errors.As(err, &malformed) && malformed.Operation == "" {
		cp := *malformed
		cp.Operation = operation
		return &cp
	}
	var engineErr *EngineExecutionError
	if errors.As(err, &engineErr) && engineErr.Operation == "" {
		cp := *engineErr
		cp.Operation = operation
		return &cp
	}
	return err
}
