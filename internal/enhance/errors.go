package enhance

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Session.Submit while a previous call is outstanding.
var ErrBusy = errors.New("a request is already in progress")

// Failure messages surfaced when the backend gives no usable reason or the
// caller gave up.
const (
	genericFailureMessage = "processing failed"
	cancelledMessage      = "request cancelled"
)

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransportFailure categorizes a TransportError.
type TransportFailure int

const (
	// NetworkFailure means no HTTP response was received.
	NetworkFailure TransportFailure = iota
	// StatusFailure means the backend answered with a non-2xx status.
	StatusFailure
)

func (f TransportFailure) String() string {
	switch f {
	case NetworkFailure:
		return "network"
	case StatusFailure:
		return "status"
	default:
		return "unknown"
	}
}

// TransportError is returned by Transport for any unsuccessful exchange.
type TransportError struct {
	Kind   TransportFailure
	Status int
	Body   string
	// Message is the backend's own error message when the body carried one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case StatusFailure:
		if e.Message != "" {
			return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
		}
		return fmt.Sprintf("backend returned %d", e.Status)
	default:
		if e.Err != nil {
			return "network error: " + e.Err.Error()
		}
		return "network error"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to a user for this failure.
func (e *TransportError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return genericFailureMessage
}
