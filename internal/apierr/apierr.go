// Package apierr defines the error taxonomy shared by every component and
// every wire dialect. A component returns one of the sentinel-wrapped kinds
// below; the dialect codecs translate a kind into the AWS-shaped error
// envelope (JSON __type, REST-XML <Error>, or CloudFormation <ErrorResponse>)
// without needing to know which component raised it.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a local-to-the-operation error. Kind does not cover
// handler-fault or timeout outcomes — those are captured inside an
// InvokeResult and never propagate as an Error.
type Kind string

const (
	// NotFound is returned when a referenced entity is absent.
	NotFound Kind = "not-found"
	// AlreadyExists is returned on a unique-key collision.
	AlreadyExists Kind = "already-exists"
	// InvalidArgument is returned on a shape violation.
	InvalidArgument Kind = "invalid-argument"
	// Conflict is returned when an operation cannot proceed against
	// current state (e.g. deleting a non-empty bucket).
	Conflict Kind = "conflict"
	// Internal is returned for programming errors; it maps to HTTP 500.
	Internal Kind = "internal"
)

// Error is the structured error carrier that crosses the boundary between
// the core components and the HTTP dialect codecs.
type Error struct {
	Kind    Kind
	Code    string // AWS-shaped error code, e.g. "ResourceNotFoundException"
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind, code and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error that preserves cause for errors.Is/As chains.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// NotFoundf is a convenience constructor for the NotFound kind.
func NotFoundf(code, format string, args ...any) *Error {
	return New(NotFound, code, fmt.Sprintf(format, args...))
}

// AlreadyExistsf is a convenience constructor for the AlreadyExists kind.
func AlreadyExistsf(code, format string, args ...any) *Error {
	return New(AlreadyExists, code, fmt.Sprintf(format, args...))
}

// InvalidArgumentf is a convenience constructor for the InvalidArgument kind.
func InvalidArgumentf(code, format string, args ...any) *Error {
	return New(InvalidArgument, code, fmt.Sprintf(format, args...))
}

// Conflictf is a convenience constructor for the Conflict kind.
func Conflictf(code, format string, args ...any) *Error {
	return New(Conflict, code, fmt.Sprintf(format, args...))
}

// Internalf is a convenience constructor for the Internal kind.
func Internalf(format string, args ...any) *Error {
	return New(Internal, "InternalServerError", fmt.Sprintf(format, args...))
}

// As extracts an *Error from any error chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a Kind to the HTTP status code the dialect codecs should
// write.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return 404
	case AlreadyExists:
		return 409
	case InvalidArgument:
		return 400
	case Conflict:
		return 409
	default:
		return 500
	}
}
