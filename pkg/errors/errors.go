// Package errors provides structured errors for the Gatewise access core.
// Every error carries a stable machine-readable [Code] whose category maps
// to an HTTP status class, which is how the engine keeps its three rejection
// kinds distinguishable: a disabled authentication method is AUTHZ (403),
// a failed credential check is AUTH (401), and an invalid configuration
// transition is VAL (400).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a structured error with a code, a human-readable message, an
// optional cause, and optional structured details. It implements the
// standard error interface and supports errors.Is / errors.As traversal
// through the Cause chain.
//
// The Message may be shown to API callers and must not contain secrets or
// internal paths. Authentication failures in particular keep their messages
// deliberately vague.
type Error struct {
	// Code is the machine-readable error code (e.g., "AUTHZ_003").
	Code Code

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details carries additional structured data, such as the current
	// enablement flags echoed back on a rejected configuration change.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error based on its
// code category.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL":
		return http.StatusBadRequest
	case "AUTH":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	case "NF":
		return http.StatusNotFound
	case "RATE":
		return http.StatusTooManyRequests
	case "INT":
		return http.StatusInternalServerError
	case "UNAVAIL":
		return http.StatusServiceUnavailable
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of the error with the given details merged in.
// The original error is not modified.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{Code: e.Code, Message: e.Message, Cause: e.Cause, Details: merged}
}

// New creates a new Error with the specified code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with the specified code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message. The wrapped error
// becomes the Cause. If err is nil, Wrap returns nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with a code and formatted message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation creates a new general validation error (400).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Unauthorized creates a new general authentication error (401).
// Use this for any failed credential check; the message should not explain
// which part of the check failed.
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new general authorization error (403).
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// MethodDisabled creates the policy rejection returned when a request
// presents a token for an authentication method an operator has disabled.
func MethodDisabled(method string) *Error {
	return Newf(CodeMethodDisabled, "%s authentication is disabled", method)
}

// InvalidTransition creates the error raised when a configuration change
// would disable every authentication method at once.
func InvalidTransition(message string) *Error {
	return New(CodeInvalidTransition, message)
}

// RateLimited creates a new rate limit error (429).
func RateLimited(message string) *Error {
	return New(CodeRateLimited, message)
}

// Internal creates a new internal error (500).
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// AsError attempts to convert an error to an *Error, traversing the error
// chain. Returns the Error and true on success, nil and false otherwise.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error, or the empty string if the
// error is nil or not an *Error.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether an error carries the specified code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsValidation reports whether the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "VAL"
}

// IsAuthentication reports whether the error is an authentication error (AUTH_xxx).
func IsAuthentication(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTH"
}

// IsAuthorization reports whether the error is an authorization error (AUTHZ_xxx).
func IsAuthorization(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTHZ"
}

// IsNotFound reports whether the error is a not found error (NF_xxx).
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "NF"
}

// FromError converts a standard error to an *Error. Errors that are already
// *Error are returned as-is; anything else is wrapped as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
