package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "backfill/internal/errors"
	"backfill/internal/middleware"
	"backfill/internal/services"
	"backfill/pkg/contracts/domain"
)

// ReconcileHandler handles one-shot reconciliations
type ReconcileHandler struct {
	service      ReconcileServiceInterface
	errorHandler *apperrors.ErrorHandler
	validator    *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(service ReconcileServiceInterface, errorHandler *apperrors.ErrorHandler, validator *middleware.ValidationMiddleware, logger *slog.Logger) *ReconcileHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{
		service:      service,
		errorHandler: errorHandler,
		validator:    validator,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("handler", "reconcile")),
	}
}

// Routes returns a chi router for /api/reconcile
func (h *ReconcileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data"))
	r.Use(h.validator.LimitBody)
	r.Post("/", h.Reconcile)
	return r
}

// Reconcile handles POST /api/reconcile with multipart parts zqm, pmr and
// optionally soh. The optional form value duplicates overrides the duplicate
// policy; ?format=csv returns MASTER as CSV instead of the workbook.
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format", []string{services.FormatXLSX, services.FormatCSV}, services.FormatXLSX)
	if !ok {
		return
	}
	if err := parseMultipart(r); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := services.ReconcileFiles{DuplicatePolicy: r.FormValue("duplicates")}
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	for _, part := range []struct {
		field string
		dst   *services.FileUpload
	}{
		{"zqm", &files.ZQM},
		{"pmr", &files.PMR},
		{"soh", &files.SOH},
	} {
		upload, closer, err := formFile(r, part.field)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		closers = append(closers, closer)
		*part.dst = upload
	}

	export, summary, err := h.service.Reconcile(r.Context(), files, format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "reconciliation served",
		slog.Int("master_rows", summary.MasterRows),
		slog.Int("orders", summary.Orders),
		slog.String("format", format),
	)
	setSummaryHeaders(w, summary)
	writeFile(w, export)
}

// setSummaryHeaders exposes the headline counts alongside the file
func setSummaryHeaders(w http.ResponseWriter, s *domain.ReconcileSummary) {
	h := w.Header()
	h.Set("X-Backfill-Orders", strconv.Itoa(s.Orders))
	h.Set("X-Backfill-Completed", strconv.Itoa(s.Hits[domain.HitCompleted]))
	h.Set("X-Backfill-Pulled", strconv.Itoa(s.Hits[domain.HitPulled]))
	h.Set("X-Backfill-Not-Pulled", strconv.Itoa(s.Hits[domain.HitNotPulled]))
	h.Set("X-Backfill-Warnings", strconv.Itoa(len(s.Warnings)))
}
