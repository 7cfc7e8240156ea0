package operations

import (
	"context"
	"fmt"

	"backfill/internal/reconcile"
	"backfill/pkg/contracts/domain"
)

// ZQMStage filters the jobs report and retains both views on the session
type ZQMStage struct {
	BaseStage
}

// NewZQMStage creates the ZQM stage
func NewZQMStage() *ZQMStage {
	return &ZQMStage{BaseStage: NewBaseStage(domain.StageZQM, stageNames[domain.StageZQM])}
}

// Execute filters the upload
func (st *ZQMStage) Execute(ctx context.Context, s *Session, in *Upload) (StageReport, error) {
	report := StageReport{InputRows: in.Table.NumRows()}

	filtered, err := reconcile.FilterZQM(in.Table)
	if err != nil {
		return report, err
	}
	s.SetZQM(in.Table, filtered)

	report.OutputRows = filtered.NumRows()
	report.Message = fmt.Sprintf("kept %d of %d orders", report.OutputRows, report.InputRows)
	return report, nil
}

// PMRStage enriches the materials requests with ZQM dates
type PMRStage struct {
	BaseStage
}

// NewPMRStage creates the PMR stage
func NewPMRStage() *PMRStage {
	return &PMRStage{BaseStage: NewBaseStage(domain.StagePMR, stageNames[domain.StagePMR], domain.StageZQM)}
}

// Execute joins the upload against the full retained ZQM
func (st *PMRStage) Execute(ctx context.Context, s *Session, in *Upload) (StageReport, error) {
	report := StageReport{InputRows: in.Table.NumRows()}

	zqm, _ := s.ZQM()
	if zqm == nil {
		return report, NewStageOrderError(string(st.ID()), domain.StageZQM)
	}

	e := reconcile.EnrichPMR(in.Table, zqm, s.Options())
	s.SetEnrichment(e)

	report.OutputRows = e.Table.NumRows()
	report.Warnings = e.Warnings
	report.Message = fmt.Sprintf("%d of %d rows matched an order", e.Matched, report.InputRows)
	return report, nil
}

// SOHStage aggregates stock, classifies orders and completes the session
type SOHStage struct {
	BaseStage
}

// NewSOHStage creates the SOH stage
func NewSOHStage() *SOHStage {
	return &SOHStage{BaseStage: NewBaseStage(domain.StageSOH, stageNames[domain.StageSOH], domain.StagePMR)}
}

// Execute finishes the run started by the earlier stages
func (st *SOHStage) Execute(ctx context.Context, s *Session, in *Upload) (StageReport, error) {
	report := StageReport{InputRows: in.Table.NumRows()}

	e := s.Enrichment()
	if e == nil {
		return report, NewStageOrderError(string(st.ID()), domain.StagePMR)
	}
	zqm, filtered := s.ZQM()

	r := reconcile.Resume(zqm, filtered, e)
	if err := r.Finish(in.Table, s.Options()); err != nil {
		return report, err
	}
	s.SetResult(r)

	report.OutputRows = r.Master.NumRows()
	report.Warnings = r.Warnings[len(e.Warnings):]
	report.Hits = r.Classification.Counts
	report.Message = fmt.Sprintf("classified %d orders", len(r.Classification.Hits))
	return report, nil
}
