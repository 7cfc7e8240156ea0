package http

import (
	"context"

	"backfill/internal/services"
	"backfill/pkg/contracts/domain"
)

// ReconcileServiceInterface is the part of services.ReconcileService the handlers use
type ReconcileServiceInterface interface {
	CreateSession(ctx context.Context) (domain.SessionSummary, error)
	GetSession(ctx context.Context, id string) (domain.SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error
	UploadStage(ctx context.Context, id string, stage domain.StageID, file services.FileUpload) (*domain.StageResult, error)
	ExportFilteredZQM(ctx context.Context, id string) (*services.Export, error)
	Export(ctx context.Context, id, format string) (*services.Export, error)
	Reconcile(ctx context.Context, files services.ReconcileFiles, format string) (*services.Export, *domain.ReconcileSummary, error)
}

var _ ReconcileServiceInterface = (*services.ReconcileService)(nil)
