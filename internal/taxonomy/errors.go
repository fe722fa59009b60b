// Package taxonomy is the single vocabulary for failures that leave the service.
package taxonomy

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a boundary error
type Kind int

const (
	KindConversionFailed Kind = iota
	KindTimeout
	KindConnectionFailed
	KindNotFound
	KindAccessDenied
	KindInvalidURL
	KindUnsupportedFormat
	KindFileTooLarge
	KindContentEmpty
	KindInvalidInput
	KindInvalidContent
	KindUnknownOperation
)

var kindCodes = map[Kind]string{
	KindConversionFailed:  "CONVERSION_FAILED",
	KindTimeout:           "TIMEOUT",
	KindConnectionFailed:  "CONNECTION_FAILED",
	KindNotFound:          "NOT_FOUND",
	KindAccessDenied:      "ACCESS_DENIED",
	KindInvalidURL:        "INVALID_URL",
	KindUnsupportedFormat: "UNSUPPORTED_FORMAT",
	KindFileTooLarge:      "FILE_TOO_LARGE",
	KindContentEmpty:      "CONTENT_EMPTY",
	KindInvalidInput:      "INVALID_INPUT",
	KindInvalidContent:    "INVALID_CONTENT",
	KindUnknownOperation:  "UNKNOWN_TOOL",
}

var kindStatuses = map[Kind]int{
	KindConversionFailed:  http.StatusInternalServerError,
	KindTimeout:           http.StatusRequestTimeout,
	KindConnectionFailed:  http.StatusBadGateway,
	KindNotFound:          http.StatusNotFound,
	KindAccessDenied:      http.StatusForbidden,
	KindInvalidURL:        http.StatusBadRequest,
	KindUnsupportedFormat: http.StatusUnsupportedMediaType,
	KindFileTooLarge:      http.StatusRequestEntityTooLarge,
	KindContentEmpty:      http.StatusUnprocessableEntity,
	KindInvalidInput:      http.StatusBadRequest,
	KindInvalidContent:    http.StatusBadRequest,
	KindUnknownOperation:  http.StatusBadRequest,
}

// Code returns the stable machine readable code
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindConversionFailed]
}

func (k Kind) String() string {
	return k.Code()
}

// HTTPStatus returns the response status used for the kind
func (k Kind) HTTPStatus() int {
	if status, ok := kindStatuses[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a categorised failure with remediation hints
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string
	Details     map[string]any
	Cause       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable machine readable code
func (e *Error) Code() string {
	return e.Kind.Code()
}

// HTTPStatus returns the response status for the error
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// WithCause attaches the underlying error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a structured detail entry
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestions appends context specific suggestions to the defaults
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// As extracts a taxonomy error from an error chain
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Wrap returns err as a taxonomy error. Unknown errors become ConversionFailed with the
// original text kept only as a detail.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := As(err); ok {
		return te
	}
	return ConversionFailed("an unexpected error occurred during conversion").
		WithDetail("error", err.Error()).
		WithCause(err)
}
