package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backfill/internal/shared/testutil"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantExt    map[string]interface{}
	}{
		{
			name:       "context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrSessionNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeSessionMissing,
			wantExt:    map[string]interface{}{"error_code": "SESSION_NOT_FOUND"},
		},
		{
			name:       "parse error",
			err:        fmt.Errorf("load: %w", NewParseError("not a spreadsheet", nil)),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeParse,
			wantExt:    map[string]interface{}{"error_type": "PARSING"},
		},
		{
			name:       "schema error carries column",
			err:        NewSchemaError("ZQM", "GR Qty", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeSchema,
			wantExt:    map[string]interface{}{"column": "GR Qty", "table": "ZQM"},
		},
		{
			name:       "state error",
			err:        NewStateError("upload PMR before SOH"),
			wantStatus: http.StatusConflict,
			wantType:   TypeStageOrder,
		},
		{
			name:       "validation error",
			err:        NewAppValidationError("file is empty"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "unknown error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodPost, "/api/sessions/abc/zqm", nil)
			w := httptest.NewRecorder()

			handler.HandleError(w, req, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/sessions/abc/zqm", body["instance"])
			for k, v := range tt.wantExt {
				assert.Equal(t, v, body[k], k)
			}
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, w.Body.Len())
}

func TestErrorHandler_LogsClientErrorsAsWarn(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), NewStateError("x"))

	assert.True(t, logs.ContainsMessage("request failed"))
	assert.Len(t, logs.GetRecordsByLevel(slog.LevelWarn), 1)
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	handler.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/x", nil), "kaboom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "kaboom", body["panic"])
	assert.Contains(t, body, "stack")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, httptest.NewRequest(http.MethodPut, "/api/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "PUT")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(http.StatusConflict, TypeStageOrder, "Stage Out Of Order", "", "/x").
		WithExtension("stage", "pmr")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "pmr", body["stage"])
	assert.Equal(t, TypeStageOrder, body["type"])
	assert.NotContains(t, body, "detail")
}
