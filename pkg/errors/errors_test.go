package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
		expose    bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true, expose: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required", expose: true},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied", expose: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found", expose: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", expose: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true, expose: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true, expose: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeUpstream, status: http.StatusBadGateway, publicMsg: "upstream service error", retryable: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.publicMsg, meta.PublicMessage)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.detailsOK, meta.DetailsAllowed)
			assert.Equal(t, tt.expose, meta.ExposeMessage)
			assert.Equal(t, tt.status >= 500, meta.ServerFault())
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestErrorConstructors(t *testing.T) {
	base := Newf(CodeValidation, "quantity must be positive, got %d", 0)
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "quantity must be positive, got 0", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, "VALIDATION_ERROR: quantity must be positive, got 0", base.Error())

	base.WithDetails(map[string]any{"field": "quantity"})
	assert.NotNil(t, base.Details())

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeUpstream, cause, "payment gateway lookup")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "UPSTREAM_ERROR: payment gateway lookup: connection reset", wrapped.Error())
}

func TestRetryAfter(t *testing.T) {
	err := New(CodeRateLimit, "slow down").WithRetryAfter(30 * time.Second)
	assert.Equal(t, 30*time.Second, err.RetryAfter())

	var nilErr *Error
	assert.Zero(t, nilErr.RetryAfter())
	assert.Nil(t, nilErr.WithRetryAfter(time.Second))
}

func TestAsAndIs(t *testing.T) {
	inner := New(CodeConflict, "usage limit reached")
	outer := fmt.Errorf("placing order: %w", inner)

	got := As(outer)
	require.NotNil(t, got)
	assert.Equal(t, CodeConflict, got.Code())
	assert.Nil(t, As(nil))

	assert.True(t, Is(outer, CodeConflict))
	assert.False(t, Is(outer, CodeNotFound))
	assert.False(t, Is(stdErrors.New("plain"), CodeInternal))
}

func TestCodeOfAndRetryable(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Equal(t, CodeUpstream, CodeOf(fmt.Errorf("poll: %w", New(CodeUpstream, "pending"))))

	assert.True(t, IsRetryable(New(CodeDependency, "redis down")))
	assert.True(t, IsRetryable(stdErrors.New("plain")))
	assert.False(t, IsRetryable(New(CodeValidation, "bad")))
	assert.False(t, IsRetryable(nil))
}
