package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrCardNotFound is returned when a card id does not resolve to a card.
	ErrCardNotFound = errors.New("card not found")
	// ErrLimitExceeded is returned by the conditional spend increment when a limit would be crossed.
	ErrLimitExceeded = errors.New("spend limit exceeded")
	// ErrInvalidAmount is returned when amount is invalid.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnauthorized is returned when a webhook carries no valid signature.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a webhook originates from a disallowed address.
	ErrForbidden = errors.New("forbidden")
	// ErrAuthorizationInFlight is returned when the same processor reference is already being evaluated.
	ErrAuthorizationInFlight = errors.New("authorization already in flight")
	// ErrReferenceReused is returned when a processor reference comes back with a different card or amount.
	ErrReferenceReused = errors.New("transaction reference reused for a different authorization")
	// ErrUnknownProvider is returned when no card provider matches the configured name.
	ErrUnknownProvider = errors.New("unknown card provider")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps transport-level errors to HTTP errors.
// Authorization decisions never pass through here; they are always answered with 200.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrCardNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "CARD_NOT_FOUND")
	case errors.Is(err, ErrInvalidAmount):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_AMOUNT")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
