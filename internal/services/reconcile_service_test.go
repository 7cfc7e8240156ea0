package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
	"backfill/internal/exporter"
	"backfill/internal/infrastructure"
	"backfill/internal/operations"
	"backfill/internal/shared/testutil"
	"backfill/pkg/contracts/domain"
)

func TestReconcileService_StagedFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Ready)
	require.Len(t, created.Stages, 3)

	res, err := svc.UploadStage(ctx, created.ID, domain.StageZQM, upload("zqm.csv", zqmCSV(t)))
	require.NoError(t, err)
	assert.Equal(t, 3, res.InputRows)
	assert.Equal(t, 1, res.OutputRows, "only MO100 is released, not TECO and has no GR")
	assert.Equal(t, domain.StageStatusCompleted, res.Session.Stages[0].Status)

	filtered, err := svc.ExportFilteredZQM(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeXLSX, filtered.ContentType)
	f := testutil.OpenXLSX(t, filtered.Data)
	assert.Equal(t, []string{exporter.SheetFiltered}, f.GetSheetList())

	res, err = svc.UploadStage(ctx, created.ID, domain.StagePMR, upload("pmr.csv", pmrCSV(t)))
	require.NoError(t, err)
	assert.Equal(t, 4, res.OutputRows)

	res, err = svc.UploadStage(ctx, created.ID, domain.StageSOH, upload("soh.csv", sohCSV(t)))
	require.NoError(t, err)
	assert.True(t, res.Session.Ready)
	assert.Equal(t, 1, res.Hits[domain.HitCompleted])

	summary, err := svc.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, summary.Result)
	assert.Equal(t, 4, summary.Result.MasterRows)

	t.Run("xlsx export", func(t *testing.T) {
		out, err := svc.Export(ctx, created.ID, FormatXLSX)
		require.NoError(t, err)
		assert.Equal(t, config.Default().Export.FileName, out.FileName)
		f := testutil.OpenXLSX(t, out.Data)
		assert.Equal(t, exporter.SheetMaster, f.GetSheetList()[0])
	})

	t.Run("csv export", func(t *testing.T) {
		out, err := svc.Export(ctx, created.ID, FormatCSV)
		require.NoError(t, err)
		assert.Equal(t, ContentTypeCSV, out.ContentType)
		assert.Equal(t, "backfill_reconciliation_master.csv", out.FileName)
		body := bytes.TrimPrefix(out.Data, []byte{0xEF, 0xBB, 0xBF})
		assert.True(t, bytes.HasPrefix(body, []byte("Hit,Manufacturing Order")))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := svc.Export(ctx, created.ID, "pdf")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
	})

	require.NoError(t, svc.DeleteSession(ctx, created.ID))
	_, err = svc.GetSession(ctx, created.ID)
	assert.ErrorIs(t, err, operations.ErrSessionNotFound)
}

func TestReconcileService_StageOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	s, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = svc.ExportFilteredZQM(ctx, s.ID)
	assert.True(t, apperrors.IsStateError(err))

	_, err = svc.UploadStage(ctx, s.ID, domain.StagePMR, upload("pmr.csv", pmrCSV(t)))
	assert.True(t, apperrors.IsStateError(err))
	assert.ErrorIs(t, err, operations.ErrStageOutOfOrder)

	_, err = svc.UploadStage(ctx, s.ID, domain.StageZQM, upload("zqm.csv", zqmCSV(t)))
	require.NoError(t, err)

	_, err = svc.Export(ctx, s.ID, FormatXLSX)
	assert.True(t, apperrors.IsStateError(err))
}

func TestReconcileService_UploadErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		file   FileUpload
		check  func(t *testing.T, err error)
	}{
		{
			name: "extension not allowed",
			file: upload("zqm.pdf", []byte("%PDF")),
			check: func(t *testing.T, err error) {
				assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
			},
		},
		{
			name:   "body larger than the limit",
			mutate: func(c *config.Config) { c.Upload.MaxBytes = 16 },
			file:   FileUpload{Name: "zqm.csv", Size: 8, Reader: bytes.NewReader(bytes.Repeat([]byte("a,b\n"), 10))},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUploadTooLarge)
			},
		},
		{
			name: "not a workbook",
			file: upload("zqm.xlsx", []byte("definitely not a zip")),
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsParseError(err))
			},
		},
		{
			name: "missing required column",
			file: upload("zqm.csv", []byte("Order,Status\nMO1,REL\n")),
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsSchemaError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*config.Config)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			svc := newTestService(t, mutate...)
			s, err := svc.CreateSession(ctx)
			require.NoError(t, err)

			_, err = svc.UploadStage(ctx, s.ID, domain.StageZQM, tt.file)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestReconcileService_UnknownSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UploadStage(ctx, "missing", domain.StageZQM, upload("zqm.csv", zqmCSV(t)))
	assert.ErrorIs(t, err, operations.ErrSessionNotFound)
	assert.Equal(t, apperrors.ErrTypeNotFound, apperrors.TypeOf(err))

	assert.ErrorIs(t, svc.DeleteSession(ctx, "missing"), operations.ErrSessionNotFound)
}

func TestReconcileService_Reconcile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	files := ReconcileFiles{
		ZQM: upload("zqm.csv", zqmCSV(t)),
		PMR: upload("pmr.csv", pmrCSV(t)),
		SOH: upload("soh.csv", sohCSV(t)),
	}
	out, summary, err := svc.Reconcile(ctx, files, "")
	require.NoError(t, err)
	assert.Equal(t, ContentTypeXLSX, out.ContentType)
	assert.Equal(t, 3, summary.Orders)
	assert.Equal(t, 1, summary.Hits[domain.HitCompleted])

	f := testutil.OpenXLSX(t, out.Data)
	assert.Equal(t, []string{
		exporter.SheetMaster, exporter.SheetSOHRaw, exporter.SheetSOHPivot,
		exporter.SheetPivotSummary, exporter.SheetCombinedPivot,
	}, f.GetSheetList())
}

func TestReconcileService_ReconcileWithoutSOH(t *testing.T) {
	svc := newTestService(t)

	out, summary, err := svc.Reconcile(context.Background(), ReconcileFiles{
		ZQM: upload("zqm.csv", zqmCSV(t)),
		PMR: upload("pmr.csv", pmrCSV(t)),
	}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeCSV, out.ContentType)
	assert.NotEmpty(t, summary.Warnings, "missing SOH degrades with a warning")
}

func TestReconcileService_ReconcileErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Reconcile(ctx, ReconcileFiles{
		ZQM: upload("zqm.csv", zqmCSV(t)),
		PMR: upload("pmr.csv", pmrCSV(t)),
	}, "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, _, err = svc.Reconcile(ctx, ReconcileFiles{
		ZQM:             upload("zqm.csv", zqmCSV(t)),
		PMR:             upload("pmr.csv", pmrCSV(t)),
		DuplicatePolicy: "first_wins",
	}, "")
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))

	_, _, err = svc.Reconcile(ctx, ReconcileFiles{
		ZQM: upload("zqm.csv", zqmCSV(t)),
		PMR: upload("pmr.xlsx", []byte("garbage")),
	}, "")
	assert.True(t, apperrors.IsParseError(err))

	_, _, err = svc.Reconcile(ctx, ReconcileFiles{PMR: upload("pmr.csv", pmrCSV(t))}, "")
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err), "ZQM is required")
}

func TestReconcileService_StoreFailure(t *testing.T) {
	store := new(MockSessionStore)
	store.On("Create", mock.Anything).Return(nil, errors.New("store offline"))

	logger := infrastructure.NewLogger("error", io.Discard)
	svc := NewReconcileService(config.Default(), store, operations.NewManager(nil, nil, logger), nil, logger)

	_, err := svc.CreateSession(context.Background())
	assert.ErrorContains(t, err, "store offline")
	store.AssertExpectations(t)
}
