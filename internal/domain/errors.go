package domain

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for clients. The set is fixed; new failure causes
// must map onto one of these.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindBadInput          Kind = "bad_input"
	KindConversionFailure Kind = "conversion_failure"
	KindInternal          Kind = "internal"
)

// genericInternalMessage is what clients see for unclassified failures. The
// real cause is logged server-side only.
const genericInternalMessage = "internal server error"

// Error is the typed failure returned by every stage of the pipeline. The HTTP
// layer performs the single translation from Error to a JSON response.
type Error struct {
	Kind    Kind
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// HTTPStatus maps the error kind to the response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func BadInput(msg string) *Error {
	return &Error{Kind: KindBadInput, Message: msg}
}

func ConversionFailed(msg, details string) *Error {
	return &Error{Kind: KindConversionFailure, Message: msg, Details: details}
}

func Internal() *Error {
	return &Error{Kind: KindInternal, Message: genericInternalMessage}
}

// Classify reduces any error to a taxonomy Error. Already-typed errors pass
// through unchanged; everything else becomes an internal error with a generic
// client-facing message so no implementation detail leaks.
func Classify(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Internal()
}
