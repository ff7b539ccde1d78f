package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
	"github.com/angelmondragon/partsdirect-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_number": "ORD-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ORD-1", body.Data.(map[string]any)["order_number"])
}

func TestWriteErrorEnvelope(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name:        "validation exposes message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"field": "quantity"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "bad input",
			wantDetails: true,
		},
		{
			name:    "state conflict",
			err:     pkgerrors.New(pkgerrors.CodeStateConflict, "order already confirmed"),
			status:  http.StatusUnprocessableEntity,
			code:    pkgerrors.CodeStateConflict,
			message: "order already confirmed",
		},
		{
			name:    "upstream stays generic",
			err:     pkgerrors.Wrap(pkgerrors.CodeUpstream, errors.New("dial tcp: refused"), "payment gateway unavailable"),
			status:  http.StatusBadGateway,
			code:    pkgerrors.CodeUpstream,
			message: "upstream service error",
		},
		{
			name:    "untyped becomes internal",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:    "nil error still answers",
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			assert.Equal(t, tc.status, w.Code)
			got := decodeError(t, w)
			assert.Equal(t, string(tc.code), got.Code)
			assert.Equal(t, tc.message, got.Message)
			assert.Equal(t, tc.wantDetails, got.Details != nil)
		})
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	ctx := WithRequestID(context.Background(), "req-42")
	WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found"))

	assert.Equal(t, "req-42", decodeError(t, w).RequestID)
	assert.Empty(t, RequestID(context.Background()))
}

func TestWriteErrorRetryAfterRoundsUp(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "slow down").WithRetryAfter(1500 * time.Millisecond)
	WriteError(context.Background(), nil, w, err)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeConflict, "dup"))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteErrorLogLevelFollowsFault(t *testing.T) {
	cases := []struct {
		err     error
		level   string
		message string
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input"), "warn", "request.rejected"},
		{pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("redis down"), "cache unavailable"), "error", "request.error"},
	}
	for _, tc := range cases {
		buf := &bytes.Buffer{}
		logg := logger.New(logger.Options{ServiceName: "api", Output: buf})
		WriteError(context.Background(), logg, httptest.NewRecorder(), tc.err)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, tc.level, line["level"])
		assert.Equal(t, tc.message, line["message"])
	}
}
