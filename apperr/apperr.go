// Package apperr defines the typed errors shared by the cart, pricing,
// checkout and order packages. Handlers translate them to HTTP status codes
// at the boundary; nothing below the handlers knows about HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument        Code = "invalid_argument"
	CodeNotFound               Code = "not_found"
	CodeForbidden              Code = "forbidden"
	CodeInvalidState           Code = "invalid_state"
	CodeExternalServiceFailure Code = "external_service_failure"
	CodeConflict               Code = "conflict"
)

type Error struct {
	Code Code
	Msg  string

	// PaymentInFlight is set on external-service failures that happen after
	// a payment push has already been sent: the caller must not blindly
	// retry, the charge may still land.
	PaymentInFlight bool

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Msg: fmt.Sprintf(format, args...)}
}

// ExternalFailure wraps a failed collaborator call. inFlight reports whether
// a payment push had already been accepted when the failure happened.
func ExternalFailure(err error, inFlight bool, format string, args ...any) *Error {
	return &Error{
		Code:            CodeExternalServiceFailure,
		Msg:             fmt.Sprintf(format, args...),
		PaymentInFlight: inFlight,
		Err:             err,
	}
}

// CodeOf extracts the Code from err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsPaymentInFlight reports whether err carries the payment-in-flight flag.
func IsPaymentInFlight(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.PaymentInFlight
}

// HTTPStatus maps a domain error to the status code handlers should return.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeExternalServiceFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
