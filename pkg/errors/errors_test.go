package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("word 3: %w", ErrLemmaNotFound), http.StatusUnprocessableEntity},
		{ErrMalformedToken, http.StatusBadRequest},
		{ErrIncomplete, http.StatusBadRequest},
		{ErrValueOverflow, http.StatusRequestEntityTooLarge},
		{ErrCrypto, http.StatusUnauthorized},
		{ErrEmptyCategory, http.StatusServiceUnavailable},
		{fmt.Errorf("adverb index 1: %w", ErrAmbiguousLemma), http.StatusServiceUnavailable},
		{fmt.Errorf("relay-publish: %w", ErrTimeout), http.StatusGatewayTimeout},
		{New(ErrLemmaNotFound, http.StatusTeapot, "custom"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestAppErrorWraps(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "payload is %d bytes", 9)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: payload is 9 bytes", err.Error())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "none", Reason(nil))
	assert.Equal(t, "lemma_not_found", Reason(fmt.Errorf("x: %w", ErrLemmaNotFound)))
	assert.Equal(t, "overflow", Reason(ErrValueOverflow))
	assert.Equal(t, "ambiguous_lemma", Reason(ErrAmbiguousLemma))
	assert.Equal(t, "timeout", Reason(ErrTimeout))
	assert.Equal(t, "other", Reason(ErrCrypto))
}
