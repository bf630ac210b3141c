package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAbortedComputation ErrorType = "ABORTED_COMPUTATION"
	ErrDuplicateOffset    ErrorType = "DUPLICATE_OFFSET"
	ErrMissingLimitConfig ErrorType = "MISSING_LIMIT_CONFIG"
	ErrClusterNotSet      ErrorType = "CLUSTER_NOT_SET"
	ErrInvalidAmount      ErrorType = "INVALID_AMOUNT"
	ErrInvalidAuthority   ErrorType = "INVALID_AUTHORITY"
	ErrAuthFailed         ErrorType = "AUTH_FAILED"
	ErrInvalidRequest     ErrorType = "INVALID_REQUEST"
	ErrNotFound           ErrorType = "NOT_FOUND"
	ErrInternal           ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewAborted(msg string) *AppError {
	return New(ErrAbortedComputation, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err carries the given error type.
func Is(err error, errType ErrorType) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == errType
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrInvalidAmount:
		return http.StatusBadRequest
	case ErrAuthFailed, ErrInvalidAuthority:
		return http.StatusUnauthorized
	case ErrDuplicateOffset:
		return http.StatusConflict
	case ErrMissingLimitConfig, ErrNotFound:
		return http.StatusNotFound
	case ErrClusterNotSet:
		return http.StatusServiceUnavailable
	case ErrAbortedComputation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrDuplicateOffset:
		return "Retry with a fresh computation offset."
	case ErrMissingLimitConfig:
		return "Store a limit ciphertext before dispatching a swap."
	case ErrAbortedComputation:
		return "The cluster aborted the computation; re-dispatch with a new offset."
	case ErrAuthFailed:
		return "Check API keys."
	default:
		return ""
	}
}
