package operations

import (
	"context"
	"sync"
	"time"

	apperrors "backfill/internal/errors"
	"backfill/internal/table"
	"backfill/pkg/contracts/domain"
)

// Upload is one parsed spreadsheet handed to a stage
type Upload struct {
	FileName string
	Size     int64
	Table    *table.Table
}

// StageReport describes what a stage consumed and produced
type StageReport struct {
	InputRows  int
	OutputRows int
	Message    string
	Warnings   []*apperrors.AppError
	// Hits is set by the stage that classifies orders
	Hits map[domain.HitStatus]int
}

// Stage is one upload-driven step of a session
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() domain.StageID

	// Name returns the human-readable name for this stage
	Name() string

	// Requires returns the stages that must have completed first
	Requires() []domain.StageID

	// Execute consumes the upload and stores its output on the session.
	// The manager holds the session's run lock while Execute runs.
	Execute(ctx context.Context, s *Session, in *Upload) (StageReport, error)
}

// StepState represents the runtime state of a stage within a session
type StepState struct {
	mu        sync.RWMutex
	ID        domain.StageID
	Name      string
	Status    domain.StageStatus
	FileName  string
	Rows      int
	StartTime *time.Time
	EndTime   *time.Time
	Message   string
	Error     error
}

// NewStepState creates a pending stage state
func NewStepState(id domain.StageID, name string) *StepState {
	return &StepState{
		ID:     id,
		Name:   name,
		Status: domain.StageStatusPending,
	}
}

// Start marks the stage as active for the given upload
func (s *StepState) Start(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.EndTime = nil
	s.Status = domain.StageStatusActive
	s.FileName = fileName
	s.Rows = 0
	s.Message = ""
	s.Error = nil
}

// Complete marks the stage as completed with its output row count
func (s *StepState) Complete(rows int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = domain.StageStatusCompleted
	s.Rows = rows
	s.Message = message
}

// Fail marks the stage as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = domain.StageStatusFailed
	s.Error = err
}

// Reset returns the stage to pending, dropping upload details
func (s *StepState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = domain.StageStatusPending
	s.FileName = ""
	s.Rows = 0
	s.StartTime = nil
	s.EndTime = nil
	s.Message = ""
	s.Error = nil
}

// IsCompleted reports whether the stage finished successfully
func (s *StepState) IsCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status == domain.StageStatusCompleted
}

// Duration returns how long the stage ran, or has been running
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// Summary returns the externally visible state
func (s *StepState) Summary() domain.StageSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := domain.StageSummary{
		ID:          s.ID,
		Status:      s.Status,
		FileName:    s.FileName,
		Rows:        s.Rows,
		StartedAt:   s.StartTime,
		CompletedAt: s.EndTime,
		Message:     s.Message,
	}
	if s.Error != nil {
		out.Error = s.Error.Error()
	}
	return out
}

// BaseStage provides the identity part of a Stage
type BaseStage struct {
	id       domain.StageID
	name     string
	requires []domain.StageID
}

// NewBaseStage creates a new base stage
func NewBaseStage(id domain.StageID, name string, requires ...domain.StageID) BaseStage {
	return BaseStage{id: id, name: name, requires: requires}
}

// ID returns the stage ID
func (b *BaseStage) ID() domain.StageID { return b.id }

// Name returns the stage name
func (b *BaseStage) Name() string { return b.name }

// Requires returns the stage prerequisites
func (b *BaseStage) Requires() []domain.StageID { return b.requires }
