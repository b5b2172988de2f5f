// Package httpserr centralizes the htsget error response format: every
// error kind the protocol defines, the HTTP status it maps to, and the JSON
// body shape used to report it.
package httpserr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind names one of the error codes the htsget protocol defines.
type Kind string

const (
	InvalidInput          Kind = "InvalidInput"
	InvalidAuthentication Kind = "InvalidAuthentication"
	PermissionDenied      Kind = "PermissionDenied"
	NotFound              Kind = "NotFound"
	UnsupportedFormat     Kind = "UnsupportedFormat"
	InvalidRange          Kind = "InvalidRange"
	// RangeNotSatisfiable marks a region that falls entirely outside every
	// chunk the index allows, distinct from InvalidRange's malformed-query
	// case above.
	RangeNotSatisfiable Kind = "RangeNotSatisfiable"
	IoError             Kind = "IoError"
	ParseError          Kind = "ParseError"
	InternalServerError Kind = "InternalServerError"
)

var statusForKind = map[Kind]int{
	InvalidInput:          http.StatusBadRequest,
	InvalidAuthentication: http.StatusUnauthorized,
	PermissionDenied:      http.StatusForbidden,
	NotFound:              http.StatusNotFound,
	UnsupportedFormat:     http.StatusBadRequest,
	InvalidRange:          http.StatusBadRequest,
	RangeNotSatisfiable:   http.StatusRequestedRangeNotSatisfiable,
	IoError:               http.StatusInternalServerError,
	ParseError:            http.StatusInternalServerError,
	InternalServerError:   http.StatusInternalServerError,
}


// Error is an htsget protocol error: a Kind known to the spec, paired with
// the underlying cause.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Status(), e.Context, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code e's Kind maps to.
func (e *Error) Status() int {
	if status, ok := statusForKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

func WrapInvalidInput(context string, cause error) *Error {
	return New(InvalidInput, context, cause)
}

func WrapInvalidAuthentication(context string, cause error) *Error {
	return New(InvalidAuthentication, context, cause)
}

func WrapPermissionDenied(context string, cause error) *Error {
	return New(PermissionDenied, context, cause)
}

func WrapNotFound(context string, cause error) *Error {
	return New(NotFound, context, cause)
}

func WrapUnsupportedFormat(cause error) *Error {
	return New(UnsupportedFormat, "parsing format", cause)
}

func WrapInvalidRange(cause error) *Error {
	return New(InvalidRange, "validating range", cause)
}

func WrapRangeNotSatisfiable(cause error) *Error {
	return New(RangeNotSatisfiable, "resolving region", cause)
}

func WrapIoError(context string, cause error) *Error {
	return New(IoError, context, cause)
}

func WrapParseError(context string, cause error) *Error {
	return New(ParseError, context, cause)
}

func WrapInternal(context string, cause error) *Error {
	return New(InternalServerError, context, cause)
}

// Body is the wire shape of an htsget error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Write serializes err as an htsget error response to w. If err is not an
// *Error, it is reported as an opaque InternalServerError without leaking
// the underlying cause's text into the response body.
func Write(w http.ResponseWriter, err error) {
	htsErr, ok := err.(*Error)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(Body{
			Error:   string(InternalServerError),
			Message: http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(htsErr.Status())
	json.NewEncoder(w).Encode(Body{
		Error:   string(htsErr.Kind),
		Message: fmt.Sprintf("%s: %v", htsErr.Context, htsErr.Cause),
	})
}
