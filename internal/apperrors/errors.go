// Package apperrors defines the application error taxonomy and its mapping
// to HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an application-level error condition.
type Code string

const (
	// General errors
	CodeUnknown        Code = "UNKNOWN"
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeInternalError  Code = "INTERNAL_ERROR"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeAlreadyExists  Code = "ALREADY_EXISTS"
	CodeConflict       Code = "CONFLICT"

	// Auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeCodeInvalid     Code = "CODE_INVALID"
	CodeInviteInvalid   Code = "INVITE_INVALID"

	// Circulation errors
	CodeBookUnavailable     Code = "BOOK_UNAVAILABLE"
	CodeUserHasOverdue      Code = "USER_HAS_OVERDUE"
	CodeLoanLimitReached    Code = "LOAN_LIMIT_REACHED"
	CodeLoanAlreadyReturned Code = "LOAN_ALREADY_RETURNED"
	CodeBookOnLoan          Code = "BOOK_ON_LOAN"
)

// Error is an application error carrying a stable code and a user-facing
// message. The wrapped cause, if any, is for logs only.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an application error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an application error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the application code from err, or CodeInternalError if err
// is not an application error.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// MessageOf extracts the user-facing message from err. Non-application errors
// get a generic message so internals never leak to clients.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps an application code to an HTTP status code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidRequest, CodeCodeInvalid, CodeInviteInvalid:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeLoanAlreadyReturned, CodeBookOnLoan:
		return http.StatusConflict
	case CodeBookUnavailable, CodeUserHasOverdue, CodeLoanLimitReached:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInternalError, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
