package query

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies a query failure
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status a failure of this kind maps to
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified query failure. Message is safe to show to callers;
// Err holds the internal cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "not found"}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable, Message: "store unavailable"}
	ErrUnknown          = &Error{Kind: KindUnknown, Message: "unknown error"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so callers can test errors.Is(err, ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func invalidArgument(message string) error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

func notFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// storeError classifies a failure coming back from the store
func storeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnknown, Message: "request cancelled", Err: err}
	}
	return &Error{Kind: KindStoreUnavailable, Message: "Internal server error", Err: err}
}

// KindOf returns the kind of err; unclassified errors are KindUnknown
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUnknown
}

// StatusCode maps err to an HTTP status
func StatusCode(err error) int {
	return KindOf(err).StatusCode()
}

// PublicMessage returns the message that may be sent to a client
func PublicMessage(err error) string {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Message
	}
	return "Internal server error"
}
