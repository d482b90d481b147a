package shared

import (
	"errors"
	"net/http"
)

// AppError carries an HTTP status alongside the wrapped cause so handlers can
// return plain errors and let the error handler pick the response shape.
type AppError struct {
	StatusCode int
	Message    string
	Data       interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message, Err: err}
}

// NewUnauthorizedError is deliberately uniform: callers pass the internal
// cause for logging, clients always see the same message regardless of
// whether the token was missing, malformed, expired, exhausted or revoked.
func NewUnauthorizedError(err error) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized", Err: err}
}

func NewForbiddenError(err error) *AppError {
	return &AppError{StatusCode: http.StatusForbidden, Message: "Forbidden", Err: err}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: message, Err: err}
}

func NewConflictError(err error, message string) *AppError {
	return &AppError{StatusCode: http.StatusConflict, Message: message, Err: err}
}

func NewTooManyRequestsError(err error) *AppError {
	return &AppError{StatusCode: http.StatusTooManyRequests, Message: "Too Many Requests", Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: "Internal Server Error", Err: err}
}
