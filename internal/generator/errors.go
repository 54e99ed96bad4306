package generator

import (
	"errors"
	"net/http"
)

// Kind classifies a generation failure for the caller.
type Kind int

const (
	// KindInput means the request was rejected before hashing or any upstream call.
	KindInput Kind = iota + 1
	// KindUpstream means the upload or workflow call failed.
	KindUpstream
	// KindInternal covers everything else.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindUpstream:
		return "upstream"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

var (
	ErrNoImage   = errors.New("an image file or image URL is required")
	ErrNoVariant = errors.New("an AI model must be selected")
)

// Error is the structured failure returned by Service.Generate.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the kind onto an HTTP status class.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInput:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func inputError(err error) *Error {
	return &Error{Kind: KindInput, Message: err.Error(), Err: err}
}

func upstreamError(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}
