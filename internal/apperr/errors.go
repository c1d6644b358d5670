package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for propagation policy and transport mapping.
type Code string

const (
	CodeInvalidQuantity Code = "INVALID_QUANTITY"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeTierIntegrity   Code = "TIER_TABLE_INTEGRITY"
	CodeInvalidState    Code = "INVALID_STATE_TRANSITION"
	CodeStaleEdit       Code = "STALE_EDIT_CONFLICT"
	CodeConflict        Code = "CONFLICT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL_ERROR"
)

var httpStatusByCode = map[Code]int{
	CodeInvalidQuantity: http.StatusBadRequest,
	CodeValidation:      http.StatusBadRequest,
	CodeTierIntegrity:   http.StatusUnprocessableEntity,
	CodeInvalidState:    http.StatusUnprocessableEntity,
	CodeStaleEdit:       http.StatusConflict,
	CodeConflict:        http.StatusConflict,
	CodeNotFound:        http.StatusNotFound,
	CodeInternal:        http.StatusInternalServerError,
}

// HTTPStatus returns the transport status for a code.
func HTTPStatus(code Code) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a code-carrying error. The code travels with the error through
// fmt.Errorf("%w") wrapping and is recovered by CodeOf.
type Error struct {
	code    Code
	message string
	cause   error
}

// New builds an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf builds an error with a code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// Code returns the classification of the error.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf extracts the code from any error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if stdErrors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
