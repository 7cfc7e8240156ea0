package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
	"backfill/internal/exporter"
	"backfill/internal/infrastructure"
	"backfill/internal/operations"
	"backfill/internal/reconcile"
	"backfill/internal/table"
	"backfill/internal/validation"
	"backfill/pkg/contracts/domain"
)

// Export formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Content types of the exports
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// FileUpload is one uploaded spreadsheet. Size is the size declared by the
// client; the body is still read through a limit.
type FileUpload struct {
	Field  string
	Name   string
	Size   int64
	Reader io.Reader
}

// ReconcileFiles are the inputs of a one-shot reconciliation. SOH may be
// left empty, in which case the owner columns are zero-filled.
type ReconcileFiles struct {
	ZQM FileUpload
	PMR FileUpload
	SOH FileUpload
	// DuplicatePolicy overrides the configured policy when set
	DuplicatePolicy string
}

// Export is a rendered file ready to be streamed
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ReconcileService runs staged and one-shot reconciliations
type ReconcileService struct {
	store    operations.SessionStore
	manager  *operations.Manager
	loader   *table.Loader
	files    *validation.FileValidator
	options  reconcile.Options
	report   exporter.ReportOptions
	fileName string
	maxBytes int64
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewReconcileService wires the service from configuration. metrics may be nil.
func NewReconcileService(cfg *config.Config, store operations.SessionStore, manager *operations.Manager, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	opts := reconcile.NewOptions(cfg.Reconcile)
	return &ReconcileService{
		store:    store,
		manager:  manager,
		loader:   table.NewLoader(logger),
		files:    validation.NewFileValidator(cfg.Upload, logger),
		options:  opts,
		report:   exporter.NewReportOptions(cfg.Export, opts),
		fileName: cfg.Export.FileName,
		maxBytes: cfg.Upload.MaxBytes,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "reconcile_service")),
	}
}

// CreateSession starts an empty staged session
func (s *ReconcileService) CreateSession(ctx context.Context) (domain.SessionSummary, error) {
	session, err := s.store.Create(ctx)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.InfoContext(ctx, "session created", slog.String("session_id", session.ID))
	return session.Summary(), nil
}

// GetSession returns the state of a session
func (s *ReconcileService) GetSession(ctx context.Context, id string) (domain.SessionSummary, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	return session.Summary(), nil
}

// DeleteSession discards a session and everything it holds
func (s *ReconcileService) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// UploadStage parses file and runs stage on the session
func (s *ReconcileService) UploadStage(ctx context.Context, id string, stage domain.StageID, file FileUpload) (*domain.StageResult, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if file.Field == "" {
		file.Field = string(stage)
	}
	t, err := s.load(ctx, file)
	if err != nil {
		return nil, err
	}

	report, err := s.manager.Run(ctx, session, stage, &operations.Upload{
		FileName: file.Name,
		Size:     file.Size,
		Table:    t,
	})
	if err != nil {
		return nil, err
	}

	return &domain.StageResult{
		SessionID:  session.ID,
		Stage:      stage,
		FileName:   file.Name,
		InputRows:  report.InputRows,
		OutputRows: report.OutputRows,
		Message:    report.Message,
		Hits:       report.Hits,
		Warnings:   reconcile.Warnings(report.Warnings),
		Session:    session.Summary(),
	}, nil
}

// ExportFilteredZQM renders the filtered ZQM of a session
func (s *ReconcileService) ExportFilteredZQM(ctx context.Context, id string) (*Export, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	_, filtered := session.ZQM()
	if filtered == nil {
		return nil, operations.NewStageOrderError("export filtered ZQM", domain.StageZQM)
	}

	data, err := exporter.BuildFilteredZQM(filtered, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build filtered ZQM workbook: %w", err)
	}
	return &Export{FileName: "zqm_filtered.xlsx", ContentType: ContentTypeXLSX, Data: data}, nil
}

// Export renders the finished reconciliation of a session
func (s *ReconcileService) Export(ctx context.Context, id, format string) (*Export, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := session.Result()
	if result == nil {
		return nil, operations.NewStageOrderError("export", domain.StageSOH)
	}
	return s.render(ctx, result, format)
}

// Reconcile runs all stages over the three files in one call. The files are
// parsed concurrently; the first parse failure cancels the others.
func (s *ReconcileService) Reconcile(ctx context.Context, files ReconcileFiles, format string) (*Export, *domain.ReconcileSummary, error) {
	if format == "" {
		format = FormatXLSX
	}
	if err := checkFormat(format); err != nil {
		return nil, nil, err
	}

	opts := s.options
	if files.DuplicatePolicy != "" {
		policy := reconcile.DuplicatePolicy(files.DuplicatePolicy)
		if policy != reconcile.KeepAll && policy != reconcile.LatestFinish {
			return nil, nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown duplicate policy %q", files.DuplicatePolicy)).
				WithContext("field", "duplicates")
		}
		opts.DuplicatePolicy = policy
	}

	setField(&files.ZQM, "zqm")
	setField(&files.PMR, "pmr")
	setField(&files.SOH, "soh")

	var in reconcile.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.ZQM, err = s.load(gctx, files.ZQM)
		return err
	})
	g.Go(func() (err error) {
		in.PMR, err = s.load(gctx, files.PMR)
		return err
	})
	if files.SOH.Name != "" {
		g.Go(func() (err error) {
			in.SOH, err = s.load(gctx, files.SOH)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	result, err := reconcile.Run(in, opts)
	if err != nil {
		s.logger.WarnContext(ctx, "reconciliation failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, nil, err
	}

	summary := result.Summary()
	for _, w := range result.Warnings {
		s.logger.WarnContext(ctx, "reconciliation warning",
			slog.String("type", string(w.Type)),
			slog.String("message", w.Message),
		)
	}
	s.logger.InfoContext(ctx, "reconciliation complete",
		slog.Int("master_rows", summary.MasterRows),
		slog.Int("orders", summary.Orders),
		slog.Int("warnings", len(summary.Warnings)),
		slog.Duration("duration", time.Since(start)),
	)

	export, err := s.render(ctx, result, format)
	if err != nil {
		return nil, nil, err
	}
	return export, summary, nil
}

func setField(f *FileUpload, field string) {
	if f.Field == "" {
		f.Field = field
	}
}

func checkFormat(format string) error {
	switch format {
	case FormatXLSX, FormatCSV:
		return nil
	}
	return apperrors.NewAppError(apperrors.ErrTypeValidation,
		fmt.Sprintf("format must be %s or %s", FormatXLSX, FormatCSV), ErrUnsupportedFormat).
		WithContext("field", "format")
}

// render produces the full workbook or the MASTER sheet as CSV
func (s *ReconcileService) render(ctx context.Context, result *reconcile.Result, format string) (*Export, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}

	if format == FormatCSV {
		var buf bytes.Buffer
		if err := exporter.NewCSVWriter(s.logger).WriteTable(&buf, result.Master); err != nil {
			return nil, fmt.Errorf("failed to write MASTER csv: %w", err)
		}
		base := strings.TrimSuffix(s.fileName, filepath.Ext(s.fileName))
		return &Export{FileName: base + "_master.csv", ContentType: ContentTypeCSV, Data: buf.Bytes()}, nil
	}

	data, err := exporter.BuildReport(result, s.report, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build workbook: %w", err)
	}
	s.logger.DebugContext(ctx, "workbook rendered", slog.Int("bytes", len(data)))
	return &Export{FileName: s.fileName, ContentType: ContentTypeXLSX, Data: data}, nil
}

// load validates, reads and parses one upload
func (s *ReconcileService) load(ctx context.Context, f FileUpload) (*table.Table, error) {
	if err := s.files.ValidateUpload(f.Field, f.Name, f.Size); err != nil {
		return nil, err
	}
	if f.Reader == nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s: no file uploaded", f.Field)).
			WithContext("field", f.Field)
	}

	data, err := io.ReadAll(io.LimitReader(f.Reader, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("failed to read %s", f.Name), err).
			WithContext("field", f.Field)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			fmt.Sprintf("%s: file %s exceeds %d bytes", f.Field, f.Name, s.maxBytes), ErrUploadTooLarge).
			WithContext("field", f.Field)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UploadBytes.Add(ctx, int64(len(data)))
	}

	t, err := s.loader.Load(f.Name, data)
	if err != nil {
		return nil, err
	}
	return t, nil
}
