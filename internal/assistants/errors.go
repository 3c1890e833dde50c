package assistants

import (
	"errors"
	"fmt"
)

// Kind classifies an Error
type Kind int

const (
	// KindConfiguration means a required credential or reference was missing
	// before any request was issued.
	KindConfiguration Kind = iota + 1
	// KindRemote means the API answered with a non-2xx status.
	KindRemote
	// KindTransport means the request did not complete or the response could not be read.
	KindTransport
	// KindRunFailed means a run reached a terminal status other than completed.
	KindRunFailed
	// KindTimeout means polling gave up before the run reached a terminal status.
	KindTimeout
	// KindCanceled means the caller canceled the operation.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindRemote:
		return "remote"
	case KindTransport:
		return "transport"
	case KindRunFailed:
		return "run_failed"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the client and the chat controller.
// Error() yields only the human readable message.
type Error struct {
	Kind    Kind
	Op      string // "create_thread", "get_run", ...
	Status  int    // HTTP status for KindRemote
	Message string
	Detail  string // message from the remote payload, if any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or 0 if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
