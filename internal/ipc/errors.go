package ipc

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no response arrived before the call deadline
	ErrTimeout = errors.New("call timed out")

	// ErrClosed indicates the transport is closed
	ErrClosed = errors.New("transport closed")

	// ErrRegistryStarted indicates Register was called after Start
	ErrRegistryStarted = errors.New("registry already started")

	// ErrInvalidChannel indicates an empty or reserved channel name
	ErrInvalidChannel = errors.New("invalid channel name")
)

// Coder is implemented by handler errors that carry their own response code.
type Coder interface {
	Code() int
}

// CodeOf returns the response code for err: the code carried by the first
// Coder in its chain, 500 otherwise.
func CodeOf(err error) int {
	var c Coder
	if errors.As(err, &c) {
		if code := c.Code(); code != 0 && code != StatusOK {
			return code
		}
	}
	return StatusInternalError
}

// CallError is returned by Correlator.Call when the handler answered with a
// failure envelope. Error returns the handler's message verbatim.
type CallError struct {
	Channel string
	Status  int
	Message string
}

func (e *CallError) Error() string {
	return e.Message
}

// Code implements Coder so a handler that forwards a failed call keeps the
// original code.
func (e *CallError) Code() int {
	return e.Status
}

// handlerPanic wraps a value recovered from a panicking handler.
type handlerPanic struct {
	value any
}

func (p *handlerPanic) Error() string {
	return fmt.Sprintf("handler panic: %v", p.value)
}
