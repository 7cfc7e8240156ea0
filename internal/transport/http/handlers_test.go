package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
	"backfill/internal/infrastructure"
	"backfill/internal/middleware"
	"backfill/internal/operations"
	"backfill/internal/services"
	"backfill/pkg/contracts/domain"
)

const sessionID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

// MockReconcileService is a mock implementation of the reconcile service
type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) CreateSession(ctx context.Context) (domain.SessionSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SessionSummary), args.Error(1)
}

func (m *MockReconcileService) GetSession(ctx context.Context, id string) (domain.SessionSummary, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.SessionSummary), args.Error(1)
}

func (m *MockReconcileService) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockReconcileService) UploadStage(ctx context.Context, id string, stage domain.StageID, file services.FileUpload) (*domain.StageResult, error) {
	args := m.Called(ctx, id, stage, file.Name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StageResult), args.Error(1)
}

func (m *MockReconcileService) ExportFilteredZQM(ctx context.Context, id string) (*services.Export, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Export), args.Error(1)
}

func (m *MockReconcileService) Export(ctx context.Context, id, format string) (*services.Export, error) {
	args := m.Called(ctx, id, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Export), args.Error(1)
}

func (m *MockReconcileService) Reconcile(ctx context.Context, files services.ReconcileFiles, format string) (*services.Export, *domain.ReconcileSummary, error) {
	args := m.Called(ctx, files.ZQM.Name, files.PMR.Name, files.SOH.Name, files.DuplicatePolicy, format)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*services.Export), args.Get(1).(*domain.ReconcileSummary), args.Error(2)
}

func newRouter(svc ReconcileServiceInterface) http.Handler {
	logger := infrastructure.NewLogger("error", io.Discard)
	eh := apperrors.NewErrorHandler(logger, false)
	v := middleware.NewValidationMiddleware(logger, eh, config.Default().Upload.MaxBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/sessions", NewSessionsHandler(svc, eh, v, logger).Routes())
	r.Mount("/api/reconcile", NewReconcileHandler(svc, eh, v, logger).Routes())
	return r
}

// multipartBody builds a form with one file part per entry of files
func multipartBody(t *testing.T, files map[string]string, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("a,b\n1,2\n"))
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSessionsHandler_CreateAndGet(t *testing.T) {
	svc := new(MockReconcileService)
	summary := domain.SessionSummary{ID: sessionID, Stages: []domain.StageSummary{{ID: domain.StageZQM, Status: domain.StageStatusPending}}}
	svc.On("CreateSession", mock.Anything).Return(summary, nil)
	svc.On("GetSession", mock.Anything, sessionID).Return(summary, nil)
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got domain.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, sessionID, got.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSessionsHandler_InvalidID(t *testing.T) {
	svc := new(MockReconcileService)
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.TypeValidation, problemOf(t, rec)["type"])
	svc.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestSessionsHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"unknown session", apperrors.NewNotFoundError("session "+sessionID), http.StatusNotFound, apperrors.TypeNotFound},
		{"out of order", operations.NewStageOrderError("pmr", domain.StageZQM), http.StatusConflict, apperrors.TypeStageOrder},
		{"schema", apperrors.NewSchemaError("PMR", "Manufacturing Order", []string{"Mfg Order"}), http.StatusUnprocessableEntity, apperrors.TypeSchema},
		{"parse", apperrors.NewParseError("pmr.xlsx is not a workbook", nil), http.StatusUnprocessableEntity, apperrors.TypeParse},
		{"bad upload", apperrors.NewAppValidationError("pmr: file pmr.pdf has extension .pdf"), http.StatusBadRequest, apperrors.TypeValidation},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, apperrors.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReconcileService)
			svc.On("UploadStage", mock.Anything, sessionID, domain.StagePMR, "pmr.csv").Return(nil, tt.err)

			body, ct := multipartBody(t, map[string]string{"file": "pmr.csv"}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/pmr", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, problemOf(t, rec)["type"])
		})
	}
}

func TestSessionsHandler_Upload(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("UploadStage", mock.Anything, sessionID, domain.StageZQM, "zqm.csv").Return(&domain.StageResult{
		SessionID: sessionID, Stage: domain.StageZQM, InputRows: 3, OutputRows: 1,
	}, nil)

	body, ct := multipartBody(t, map[string]string{"file": "zqm.csv"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/zqm", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got domain.StageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.OutputRows)
	svc.AssertExpectations(t)
}

func TestSessionsHandler_UploadRequiresMultipart(t *testing.T) {
	svc := new(MockReconcileService)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/soh", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	svc.AssertNotCalled(t, "UploadStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionsHandler_Export(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("Export", mock.Anything, sessionID, services.FormatCSV).Return(&services.Export{
		FileName: "master.csv", ContentType: services.ContentTypeCSV, Data: []byte("Hit\n"),
	}, nil)
	svc.On("ExportFilteredZQM", mock.Anything, sessionID).Return(nil, operations.NewStageOrderError("export filtered ZQM", domain.StageZQM))
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID+"/export?format=csv", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.ContentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="master.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Hit\n", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID+"/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID+"/zqm/export", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionsHandler_Delete(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("DeleteSession", mock.Anything, sessionID).Return(nil)

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sessionID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestReconcileHandler(t *testing.T) {
	svc := new(MockReconcileService)
	svc.On("Reconcile", mock.Anything, "zqm.xlsx", "pmr.xlsx", "", "latest_finish", services.FormatXLSX).Return(
		&services.Export{FileName: "backfill.xlsx", ContentType: services.ContentTypeXLSX, Data: []byte("PK")},
		&domain.ReconcileSummary{Orders: 3, Hits: map[domain.HitStatus]int{domain.HitCompleted: 2, domain.HitPulled: 1}},
		nil,
	)

	body, ct := multipartBody(t,
		map[string]string{"zqm": "zqm.xlsx", "pmr": "pmr.xlsx"},
		map[string]string{"duplicates": "latest_finish"})
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, services.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("X-Backfill-Orders"))
	assert.Equal(t, "2", rec.Header().Get("X-Backfill-Completed"))
	assert.Equal(t, "0", rec.Header().Get("X-Backfill-Not-Pulled"))
	svc.AssertExpectations(t)
}
