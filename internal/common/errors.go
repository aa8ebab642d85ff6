package common

import (
	"errors"
	"net/http"
)

var (
	// Taxonomy kinds. Callers should match with errors.Is.
	ErrorValidation      = errors.New("validation error")
	ErrorNotFound        = errors.New("not found")
	ErrorUnauthenticated = errors.New("unauthenticated")
	ErrorInternal        = errors.New("internal error")
	ErrorConflict        = errors.New("already exists")

	// ErrorStaleToken is returned by stores when a conditional refresh-token
	// replacement finds a different value than expected.
	ErrorStaleToken = errors.New("refresh token is stale or already used")
)

// Kind reduces err to one of the taxonomy sentinels. Unknown errors are
// treated as internal.
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrorValidation):
		return ErrorValidation
	case errors.Is(err, ErrorNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrorUnauthenticated), errors.Is(err, ErrorStaleToken):
		return ErrorUnauthenticated
	case errors.Is(err, ErrorConflict):
		return ErrorConflict
	default:
		return ErrorInternal
	}
}

// HTTPStatus maps a taxonomy kind to its HTTP status code.
func HTTPStatus(kind error) int {
	switch kind {
	case nil:
		return http.StatusOK
	case ErrorValidation:
		return http.StatusBadRequest
	case ErrorUnauthenticated:
		return http.StatusUnauthorized
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError carries a client-facing message while still matching
// ErrorValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrorValidation }

// NewValidationError returns a validation error with the given message.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// PublicMessage returns the text that may be shown to a client for err.
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	switch Kind(err) {
	case ErrorValidation:
		return "invalid request"
	case ErrorNotFound:
		return "user not found"
	case ErrorUnauthenticated:
		return "unauthorized request"
	case ErrorConflict:
		return "user with email or username already exists"
	default:
		return GenericInternalMessage
	}
}
