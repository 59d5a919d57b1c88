// Package errors defines the sentinel errors shared by the codec, the
// dictionary loader and the service layers, plus an AppError wrapper that
// carries an HTTP status for the API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDictionaryLoad = errors.New("dictionary load failed")
	ErrLemmaNotFound  = errors.New("lemma not found")
	ErrMalformedToken = errors.New("malformed token")
	ErrValueOverflow  = errors.New("value exceeds sentence capacity")
	ErrEmptyCategory  = errors.New("dictionary category is empty")
	ErrAmbiguousLemma = errors.New("lemma has no surface of its own")
	ErrInvalidChunk   = errors.New("invalid chunk")
	ErrInvalidInput   = errors.New("invalid input")
	ErrCrypto         = errors.New("cryptographic operation failed")
	ErrIncomplete     = errors.New("message incomplete")
	ErrTimeout        = errors.New("operation timed out")
	ErrInternal       = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Reason returns a short label for err suitable for a metric dimension.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrLemmaNotFound):
		return "lemma_not_found"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrValueOverflow):
		return "overflow"
	case errors.Is(err, ErrInvalidChunk):
		return "invalid_chunk"
	case errors.Is(err, ErrEmptyCategory):
		return "empty_category"
	case errors.Is(err, ErrAmbiguousLemma):
		return "ambiguous_lemma"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrLemmaNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrMalformedToken), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidChunk), errors.Is(err, ErrIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, ErrValueOverflow):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrCrypto):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrEmptyCategory), errors.Is(err, ErrDictionaryLoad),
		errors.Is(err, ErrAmbiguousLemma):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
