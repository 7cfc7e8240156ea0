package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "backfill/internal/errors"
	"backfill/internal/middleware"
	"backfill/internal/services"
	"backfill/pkg/contracts/domain"
)

// sessionParams are the path parameters of session routes
type sessionParams struct {
	ID string `param:"id" validate:"required,uuid"`
}

// SessionsHandler handles the staged session workflow
type SessionsHandler struct {
	service      ReconcileServiceInterface
	errorHandler *apperrors.ErrorHandler
	validator    *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(service ReconcileServiceInterface, errorHandler *apperrors.ErrorHandler, validator *middleware.ValidationMiddleware, logger *slog.Logger) *SessionsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionsHandler{
		service:      service,
		errorHandler: errorHandler,
		validator:    validator,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "sessions")),
	}
}

// Routes returns a chi router for /api/sessions
func (h *SessionsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.With(middleware.AuditLog(h.logger)).Delete("/", h.DeleteSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data"))
			r.Use(h.validator.LimitBody)
			r.Post("/zqm", h.upload(domain.StageZQM))
			r.Post("/pmr", h.upload(domain.StagePMR))
			r.Post("/soh", h.upload(domain.StageSOH))
		})

		r.Get("/zqm/export", h.ExportFilteredZQM)
		r.Get("/export", h.Export)
	})
	return r
}

// sessionID validates the {id} path parameter. On failure the error
// response is already written.
func (h *SessionsHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	params := sessionParams{ID: chi.URLParam(r, "id")}
	if err := h.validator.ValidateStruct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return "", false
	}
	return params.ID, true
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, summary)
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// upload handles POST /api/sessions/{id}/{zqm,pmr,soh}
func (h *SessionsHandler) upload(stage domain.StageID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.sessionID(w, r)
		if !ok {
			return
		}
		if err := parseMultipart(r); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, closer, err := formFile(r, "file")
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		defer closer.Close()

		result, err := h.service.UploadStage(r.Context(), id, stage, file)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		h.logger.InfoContext(r.Context(), "stage uploaded",
			slog.String("session_id", id),
			slog.String("stage", string(stage)),
			slog.String("file", file.Name),
			slog.Int("output_rows", result.OutputRows),
			slog.Int("warnings", len(result.Warnings)),
		)
		render.JSON(w, r, result)
	}
}

// ExportFilteredZQM handles GET /api/sessions/{id}/zqm/export
func (h *SessionsHandler) ExportFilteredZQM(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	export, err := h.service.ExportFilteredZQM(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeFile(w, export)
}

// Export handles GET /api/sessions/{id}/export?format=xlsx|csv
func (h *SessionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	format, ok := h.query.ValidateEnum(w, r, "format", []string{services.FormatXLSX, services.FormatCSV}, services.FormatXLSX)
	if !ok {
		return
	}
	export, err := h.service.Export(r.Context(), id, format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writeFile(w, export)
}
