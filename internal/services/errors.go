package services

import (
	"errors"
	"fmt"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/ipc"
)

// Response codes carried by handler failures. They travel in the response
// envelope's code field.
const (
	CodeBadRequest         = 400
	CodeNotFound           = 404
	CodeConflict           = 409
	CodePreconditionFailed = 412
)

// Error is a handler failure with a response code.
type Error struct {
	Status int
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code implements ipc.Coder.
func (e *Error) Code() int {
	return e.Status
}

func newError(status int, format string, args ...any) *Error {
	return &Error{Status: status, Err: fmt.Errorf(format, args...)}
}

// classify maps config and decode errors to response codes. Errors it does
// not recognise pass through and become 500s.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	switch {
	case errors.Is(err, config.ErrNoCurrentProfile):
		return &Error{Status: CodePreconditionFailed, Err: err}
	case errors.Is(err, config.ErrProfileNotFound):
		return &Error{Status: CodeNotFound, Err: err}
	case errors.Is(err, config.ErrProfileExists):
		return &Error{Status: CodeConflict, Err: err}
	case errors.Is(err, config.ErrMissingName),
		errors.Is(err, config.ErrInvalidName),
		errors.Is(err, config.ErrUnknownProvider),
		errors.Is(err, config.ErrMissingCredentials),
		errors.Is(err, config.ErrMissingAccount):
		return &Error{Status: CodeBadRequest, Err: err}
	}
	return err
}

// decode converts request data, reporting malformed payloads as 400.
func decode[T any](data any) (T, error) {
	v, err := ipc.DecodeData[T](data)
	if err != nil {
		return v, &Error{Status: CodeBadRequest, Err: err}
	}
	return v, nil
}
