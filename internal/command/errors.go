package command

import (
	"errors"
	"fmt"
)

var (
	ErrCommandNotFound     = errors.New("command not found")
	ErrCommandTypeNotFound = errors.New("command type not found")
	ErrFaceNotFound        = errors.New("face not found")
	ErrFacesRequired       = errors.New("run condition requires at least one face")
	ErrInvalidCommand      = errors.New("invalid command")
)

// ExecutionError wraps any failure raised by a command handler. Name is the
// kind of the underlying error and Message its text.
type ExecutionError struct {
	Command string
	Name    string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q failed: %s: %s", e.Command, e.Name, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// named is implemented by handler errors that carry their own kind.
type named interface {
	Name() string
}

func newExecutionError(command string, err error) *ExecutionError {
	var existing *ExecutionError
	if errors.As(err, &existing) {
		return existing
	}
	name := fmt.Sprintf("%T", err)
	var n named
	if errors.As(err, &n) {
		name = n.Name()
	}
	return &ExecutionError{Command: command, Name: name, Message: err.Error(), Err: err}
}
