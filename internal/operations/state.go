package operations

import (
	"sync"
	"time"

	"backfill/internal/reconcile"
	"backfill/internal/table"
	"backfill/pkg/contracts/domain"
)

// StageOrder is the workflow order of the session stages
var StageOrder = []domain.StageID{domain.StageZQM, domain.StagePMR, domain.StageSOH}

var stageNames = map[domain.StageID]string{
	domain.StageZQM: "ZQM Filter",
	domain.StagePMR: "PMR Enrichment",
	domain.StageSOH: "SOH Aggregation and Classification",
}

// Session holds the tables carried between stages of one reconciliation.
// Stage outputs are immutable once stored; later uploads replace them.
type Session struct {
	// run serializes stage execution within the session
	run sync.Mutex
	mu  sync.RWMutex

	ID        string
	CreatedAt time.Time
	updatedAt time.Time
	ttl       time.Duration
	options   reconcile.Options
	steps     map[domain.StageID]*StepState

	zqm         *table.Table
	zqmFiltered *table.Table
	enrichment  *reconcile.Enrichment
	result      *reconcile.Result
}

// NewSession creates an empty session. A zero ttl never expires.
func NewSession(id string, opts reconcile.Options, ttl time.Duration, now time.Time) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: now,
		updatedAt: now,
		ttl:       ttl,
		options:   opts,
		steps:     make(map[domain.StageID]*StepState, len(StageOrder)),
	}
	for _, id := range StageOrder {
		s.steps[id] = NewStepState(id, stageNames[id])
	}
	return s
}

// Options returns the business tables the session runs with
func (s *Session) Options() reconcile.Options {
	return s.options
}

// Step returns the state of a stage, or nil for unknown IDs
func (s *Session) Step(id domain.StageID) *StepState {
	return s.steps[id]
}

// ZQM returns the retained upload and its filtered view
func (s *Session) ZQM() (raw, filtered *table.Table) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zqm, s.zqmFiltered
}

// Enrichment returns the enriched PMR, if the PMR stage completed
func (s *Session) Enrichment() *reconcile.Enrichment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enrichment
}

// Result returns the finished reconciliation, if the SOH stage completed
func (s *Session) Result() *reconcile.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Ready reports whether the final workbook can be exported
func (s *Session) Ready() bool {
	return s.Result() != nil
}

// SetZQM stores a new ZQM upload
func (s *Session) SetZQM(raw, filtered *table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zqm, s.zqmFiltered = raw, filtered
}

// SetEnrichment stores the enriched PMR
func (s *Session) SetEnrichment(e *reconcile.Enrichment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrichment = e
}

// SetResult stores the finished reconciliation
func (s *Session) SetResult(r *reconcile.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
}

// invalidateFrom drops the output of stage id and every later stage and
// resets their states to pending.
func (s *Session) invalidateFrom(id domain.StageID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := -1
	for i, sid := range StageOrder {
		if sid == id {
			from = i
			break
		}
	}
	if from < 0 {
		return
	}
	for _, sid := range StageOrder[from:] {
		switch sid {
		case domain.StageZQM:
			s.zqm, s.zqmFiltered = nil, nil
		case domain.StagePMR:
			s.enrichment = nil
		case domain.StageSOH:
			s.result = nil
		}
		s.steps[sid].Reset()
	}
}

// Touch extends the session lifetime from now
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = now
}

// UpdatedAt returns the last time the session was used
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// ExpiresAt returns when the session expires if left unused
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.updatedAt.Add(s.ttl)
}

// Expired reports whether the session outlived its TTL at now
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && now.After(exp)
}

// Summary returns the externally visible session state
func (s *Session) Summary() domain.SessionSummary {
	out := domain.SessionSummary{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt(),
		ExpiresAt: s.ExpiresAt(),
		Stages:    make([]domain.StageSummary, 0, len(StageOrder)),
	}
	for _, id := range StageOrder {
		out.Stages = append(out.Stages, s.steps[id].Summary())
	}

	if r := s.Result(); r != nil {
		out.Ready = true
		out.Result = r.Summary()
		out.Warnings = out.Result.Warnings
	} else if e := s.Enrichment(); e != nil {
		out.Warnings = reconcile.Warnings(e.Warnings)
	}
	return out
}
