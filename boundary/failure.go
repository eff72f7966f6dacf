package boundary

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/entry"
	"github.com/tailored-agentic-units/spillq/queue"
	"github.com/tailored-agentic-units/spillq/registry"
	"github.com/tailored-agentic-units/spillq/storage"
)

// Failure is the single error type that leaves the adapter. It carries a
// human-readable message, a structured code, and the underlying cause, so
// errors.Is still matches the sentinel kinds of the inner packages.
type Failure struct {
	Code    connect.Code
	Message string
	err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.err
}

// ConnectError returns the failure as a *connect.Error with the same code.
func (f *Failure) ConnectError() *connect.Error {
	return connect.NewError(f.Code, f)
}

// Translate converts err into a *Failure. A nil error stays nil and an
// error that already is a *Failure is returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	return &Failure{
		Code:    codeOf(err),
		Message: err.Error(),
		err:     err,
	}
}

// CodeOf returns the code Translate would assign to err, or 0 for nil.
func CodeOf(err error) connect.Code {
	if err == nil {
		return 0
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return codeOf(err)
}

func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, queue.ErrEmptyQueue):
		return connect.CodeOutOfRange
	case errors.Is(err, registry.ErrInvalidHandle):
		return connect.CodeNotFound
	case errors.Is(err, entry.ErrUnsupportedSizeClass),
		errors.Is(err, entry.ErrPayloadSize),
		errors.Is(err, registry.ErrUnknownDiscipline),
		errors.Is(err, ErrUnknownOp),
		errors.Is(err, ErrMalformedFrame):
		return connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrExhausted):
		return connect.CodeResourceExhausted
	case errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrNotInitialized),
		errors.Is(err, storage.ErrClosed),
		errors.Is(err, queue.ErrClosed):
		return connect.CodeFailedPrecondition
	case errors.Is(err, storage.ErrStorage):
		return connect.CodeInternal
	default:
		return connect.CodeUnknown
	}
}
