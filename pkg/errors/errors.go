// Package errors carries the typed error used across services and handlers.
// A Code decides the HTTP status and how much of the error a client sees.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// Metadata is the client-facing policy of a code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ExposeMessage lets the error's own message reach the client.
	ExposeMessage bool
}

// clientError is the policy shared by every 4xx code: the caller sees the
// specific message.
func clientError(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, ExposeMessage: true}
}

var policies = map[Code]Metadata{
	CodeValidation: func() Metadata {
		m := clientError(http.StatusBadRequest, "validation failed")
		m.DetailsAllowed = true
		return m
	}(),
	CodeUnauthorized: clientError(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:    clientError(http.StatusForbidden, "access denied"),
	CodeNotFound:     clientError(http.StatusNotFound, "resource not found"),
	CodeRateLimit: func() Metadata {
		m := clientError(http.StatusTooManyRequests, "rate limit exceeded")
		m.Retryable = true
		return m
	}(),
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
}

// MetadataFor returns the policy for code; unknown codes are treated as internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := policies[code]; ok {
		return meta
	}
	return policies[CodeInternal]
}

func (c Code) Status() int { return MetadataFor(c).HTTPStatus }

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func Validation(message string) *Error   { return New(CodeValidation, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }

func Internal(err error, message string) *Error { return Wrap(CodeInternal, err, message) }

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
