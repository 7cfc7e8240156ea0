package reconcile

import (
	"errors"
	"fmt"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
	"backfill/pkg/contracts/domain"
)

// Stage names used in warnings
const (
	stageZQM      = string(domain.StageZQM)
	stagePMR      = string(domain.StagePMR)
	stageSOH      = string(domain.StageSOH)
	stageClassify = "classify"
)

// Input holds the three parsed uploads of a run
type Input struct {
	ZQM *table.Table
	PMR *table.Table
	SOH *table.Table
}

// Result carries every table a run produces
type Result struct {
	ZQM            *table.Table
	ZQMFiltered    *table.Table
	Enrichment     *Enrichment
	SOH            *SOHAggregate
	Classification *Classification
	// Master is the final annotated PMR
	Master   *table.Table
	Warnings []*apperrors.AppError

	sohRows int
}

// Run executes filter, enrich, aggregate and classify in order. Enrichment
// uses the full ZQM table; the filtered view is kept for export.
func Run(in Input, opts Options) (*Result, error) {
	if in.ZQM == nil || in.PMR == nil {
		return nil, apperrors.NewAppValidationError("ZQM and PMR tables are required")
	}

	filtered, err := FilterZQM(in.ZQM)
	if err != nil {
		return nil, fmt.Errorf("zqm filter: %w", err)
	}

	res := &Result{ZQM: in.ZQM, ZQMFiltered: filtered}
	res.Enrichment = EnrichPMR(in.PMR, in.ZQM, opts)
	res.Warnings = append(res.Warnings, res.Enrichment.Warnings...)

	if err := res.Finish(in.SOH, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// Finish runs SOH aggregation and classification over the enriched PMR held
// in r. It is the last step of Run and of a staged session.
func (r *Result) Finish(soh *table.Table, opts Options) error {
	if r.Enrichment == nil {
		return apperrors.NewStateError("PMR has not been enriched")
	}
	if soh != nil {
		r.sohRows = soh.NumRows()
	}
	r.SOH = AggregateSOH(soh, r.Enrichment.Table, opts)
	r.Warnings = append(r.Warnings, r.SOH.Warnings...)

	c, err := ClassifyPMR(r.SOH.PMR)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	r.Classification = c
	r.Master = c.Annotated
	r.Warnings = append(r.Warnings, c.Warnings...)
	return nil
}

// Summary reports row counts, hit counts and warnings of r
func (r *Result) Summary() *domain.ReconcileSummary {
	s := &domain.ReconcileSummary{
		Hits: make(map[domain.HitStatus]int, len(domain.HitStatuses)),
	}
	for _, h := range domain.HitStatuses {
		s.Hits[h] = 0
	}
	if r.ZQM != nil {
		s.ZQMRows = r.ZQM.NumRows()
	}
	if r.ZQMFiltered != nil {
		s.ZQMFilteredRows = r.ZQMFiltered.NumRows()
	}
	if r.Enrichment != nil {
		s.PMRRows = r.Enrichment.Table.NumRows()
		s.AmbiguousOrders = r.Enrichment.Ambiguous
	}
	s.SOHRows = r.sohRows
	if r.SOH != nil {
		s.SOHFilteredRows = r.SOH.Raw.NumRows()
	}
	if r.Classification != nil {
		s.Orders = len(r.Classification.Hits)
		s.Unclassified = len(r.Classification.Unclassified)
		for h, n := range r.Classification.Counts {
			s.Hits[h] = n
		}
	}
	if r.Master != nil {
		s.MasterRows = r.Master.NumRows()
	}
	s.Warnings = Warnings(r.Warnings)
	return s
}

// Warnings converts recoverable errors into their reported form
func Warnings(errs []*apperrors.AppError) []domain.Warning {
	if len(errs) == 0 {
		return nil
	}
	out := make([]domain.Warning, 0, len(errs))
	for _, e := range errs {
		w := domain.Warning{Type: string(e.Type), Message: e.Message}
		ctx := make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			if k == "stage" {
				w.Stage, _ = v.(string)
				continue
			}
			ctx[k] = v
		}
		if len(ctx) > 0 {
			w.Context = ctx
		}
		out = append(out, w)
	}
	return out
}

// IsFatal reports whether err stops the current stage
func IsFatal(err error) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return !appErr.Recoverable()
	}
	return err != nil
}

// Resume rebuilds a partial Result from stages that ran separately, ready
// for Finish.
func Resume(zqm, filtered *table.Table, e *Enrichment) *Result {
	r := &Result{ZQM: zqm, ZQMFiltered: filtered, Enrichment: e}
	if e != nil {
		r.Warnings = append(r.Warnings, e.Warnings...)
	}
	return r
}
