package exporter

import (
	"log/slog"

	"backfill/internal/config"
	apperrors "backfill/internal/errors"
	"backfill/internal/reconcile"
	"backfill/internal/table"
)

// Sheet names of the exported workbooks
const (
	SheetMaster        = "MASTER"
	SheetSOHRaw        = "SOH Raw"
	SheetSOHPivot      = "SOH Pivot"
	SheetPivotSummary  = "Pivot Summary"
	SheetCombinedPivot = "Combined Pivot"
	SheetFiltered      = "Filtered"
)

// ReportOptions controls the layout of the reconciliation workbook
type ReportOptions struct {
	// PivotGap is the number of empty columns between the summary pivots
	PivotGap       int
	MasterTabColor string
	// OwnerColumns are the MASTER columns colored when positive
	OwnerColumns []string
}

// NewReportOptions derives layout options from configuration
func NewReportOptions(cfg config.ExportConfig, opts reconcile.Options) ReportOptions {
	return ReportOptions{
		PivotGap:       cfg.PivotGap,
		MasterTabColor: cfg.MasterTabColor,
		OwnerColumns:   opts.OwnerColumns(),
	}
}

// BuildReport renders a finished reconciliation as an xlsx workbook
func BuildReport(r *reconcile.Result, opts ReportOptions, logger *slog.Logger) ([]byte, error) {
	if r == nil || r.Master == nil || r.Classification == nil || r.SOH == nil {
		return nil, apperrors.NewStateError("reconciliation has not finished")
	}

	b, err := NewWorkbookBuilder(logger)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	c := r.Classification
	sheets := []Sheet{
		{
			Name:   SheetMaster,
			Blocks: []Block{{Table: r.Master}},
			Highlights: []HighlightRule{
				HitHighlight(reconcile.ColHit),
				PositiveHighlight(ColorGreen, opts.OwnerColumns...),
			},
			TabColor: opts.MasterTabColor,
		},
		{Name: SheetSOHRaw, Blocks: []Block{{Table: r.SOH.Raw}}},
		{Name: SheetSOHPivot, Blocks: []Block{{Table: r.SOH.Pivot}}},
		{
			Name: SheetPivotSummary,
			Blocks: []Block{
				{Title: "Staging Status", Table: c.Staging.Table(true)},
				{Title: "Goods Issue Status", Table: c.GoodsIssue.Table(true)},
			},
			Gap: opts.PivotGap,
		},
		{
			Name:       SheetCombinedPivot,
			Blocks:     []Block{{Table: c.Combined}},
			Highlights: []HighlightRule{HitHighlight(reconcile.ColHit)},
		},
	}
	for _, s := range sheets {
		if err := b.AddSheet(s); err != nil {
			return nil, err
		}
	}
	return b.Bytes()
}

// BuildFilteredZQM renders the filtered ZQM as a single "Filtered" sheet
func BuildFilteredZQM(filtered *table.Table, logger *slog.Logger) ([]byte, error) {
	if filtered == nil {
		return nil, apperrors.NewStateError("no filtered ZQM available")
	}

	b, err := NewWorkbookBuilder(logger)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if err := b.AddTable(SheetFiltered, filtered); err != nil {
		return nil, err
	}
	return b.Bytes()
}
