package common

import (
	"errors"
	"net/http"
)

// APIError is a workflow failure that knows how it should be presented to
// the caller: an HTTP status code and a human readable message. Kind is one
// of the sentinels above and is what errors.Is matches against.
type APIError struct {
	StatusCode int
	Message    string
	Kind       error
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newAPIError(status int, kind error, msg string, cause error) *APIError {
	return &APIError{StatusCode: status, Message: msg, Kind: kind, Err: cause}
}

func NewValidationError(msg string) *APIError {
	return newAPIError(http.StatusBadRequest, ErrValidation, msg, nil)
}

func NewConflictError(msg string) *APIError {
	return newAPIError(http.StatusConflict, ErrConflict, msg, nil)
}

func NewNotFoundError(msg string) *APIError {
	return newAPIError(http.StatusNotFound, ErrorNotFound, msg, nil)
}

func NewAuthenticationError(msg string) *APIError {
	return newAPIError(http.StatusUnauthorized, ErrorUnauthorized, msg, nil)
}

func NewUploadError(msg string, cause error) *APIError {
	return newAPIError(http.StatusBadRequest, ErrUpload, msg, cause)
}

func NewTooManyRequestsError(msg string) *APIError {
	return newAPIError(http.StatusTooManyRequests, ErrTooManyRequests, msg, nil)
}

func NewInternalError(msg string, cause error) *APIError {
	return newAPIError(http.StatusInternalServerError, ErrorInternal, msg, cause)
}

// AsAPIError returns the APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
