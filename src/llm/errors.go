package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a remote-call failure. Every failed request maps to
// exactly one kind; the user-facing notice names it instead of a generic
// "request failed".
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"
	KindAuth              ErrorKind = "auth"
	KindQuota             ErrorKind = "quota"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindEmptyResult       ErrorKind = "empty_result"
	KindTimeout           ErrorKind = "timeout"
)

// Message returns a short human-readable cause for notifications.
func (k ErrorKind) Message() string {
	switch k {
	case KindNetwork:
		return "network error reaching the conversion service"
	case KindAuth:
		return "API key rejected by the conversion service"
	case KindQuota:
		return "conversion service quota or rate limit exceeded"
	case KindMalformedResponse:
		return "conversion service returned an unreadable response"
	case KindEmptyResult:
		return "no convertible content found in the selection"
	case KindTimeout:
		return "conversion request timed out"
	default:
		return "conversion request failed"
	}
}

// Error carries a classified remote failure across the async boundary.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote failure (%s)", e.Kind)
	}
	return fmt.Sprintf("remote failure (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Context deadline errors
// that escaped classification count as timeouts; anything else is network.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}
