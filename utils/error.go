package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Error codes surfaced to callers.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeReferenceNotFound   = "REFERENCE_NOT_FOUND"
	CodeConfigurationError  = "CONFIGURATION_ERROR"
	CodeDateFormatError     = "DATE_FORMAT_ERROR"
	CodeStateConflict       = "STATE_CONFLICT"
	CodeInternalServerError = "INTERNAL_ERROR"
)

// AppError carries a code, an operator-facing message and field level details.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can use errors.Is(err, utils.ErrInsufficientStock).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &AppError{Code: CodeValidationError}
	ErrInsufficientStock = &AppError{Code: CodeInsufficientStock}
	ErrReferenceNotFound = &AppError{Code: CodeReferenceNotFound}
	ErrConfiguration     = &AppError{Code: CodeConfigurationError}
	ErrDateFormat        = &AppError{Code: CodeDateFormatError}
	ErrStateConflict     = &AppError{Code: CodeStateConflict}
)

func ValidationError(message string, fields map[string]string) *AppError {
	e := newAppError(CodeValidationError, message, http.StatusBadRequest)
	for k, v := range fields {
		e.WithDetail(k, v)
	}
	return e
}

func FieldError(field string, problem string) *AppError {
	return ValidationError(fmt.Sprintf("%s %s", field, problem), map[string]string{field: problem})
}

func InsufficientStockError(subject string, requested decimal.Decimal, available decimal.Decimal) *AppError {
	return newAppError(CodeInsufficientStock,
		fmt.Sprintf("insufficient stock for %s: requested %s, available %s", subject, requested.String(), available.String()),
		http.StatusConflict).
		WithDetail("requested", requested.String()).
		WithDetail("available", available.String())
}

func ReferenceNotFoundError(resource string, id interface{}) *AppError {
	return newAppError(CodeReferenceNotFound, fmt.Sprintf("%s %v not found", resource, id), http.StatusNotFound).
		WithDetail("id", fmt.Sprint(id))
}

func ConfigurationError(message string) *AppError {
	return newAppError(CodeConfigurationError, message, http.StatusInternalServerError)
}

func DateFormatError(field string, value string) *AppError {
	return newAppError(CodeDateFormatError, fmt.Sprintf("%s %q is not a valid date", field, value), http.StatusBadRequest).
		WithDetail(field, value)
}

func StateConflictError(message string) *AppError {
	return newAppError(CodeStateConflict, message, http.StatusConflict)
}

// AsAppError unwraps err into an AppError, wrapping unknown errors as internal ones.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return newAppError(CodeInternalServerError, "internal error", http.StatusInternalServerError).Wrap(err)
}
