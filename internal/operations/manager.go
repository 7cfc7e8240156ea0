package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "backfill/internal/errors"
	"backfill/internal/infrastructure"
	"backfill/pkg/contracts/domain"
)

// Manager executes stages against sessions
type Manager struct {
	registry *Registry
	tracer   *StageTracer
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a stage manager. A nil tracer records spans only; a nil
// logger uses the global logger.
func NewManager(registry *Registry, tracer *StageTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	if tracer == nil {
		tracer = NewStageTracer(nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Manager{
		registry: registry,
		tracer:   tracer,
		logger:   logger.With(slog.String("component", "operations")),
		now:      time.Now,
	}
}

// Registry returns the stage registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Run executes one stage. Stages of the same session never interleave. The
// stage's previous output and the output of every later stage are dropped
// before it runs, so a failed upload leaves the session at that stage.
func (m *Manager) Run(ctx context.Context, s *Session, id domain.StageID, in *Upload) (StageReport, error) {
	stage, ok := m.registry.Get(id)
	if !ok {
		return StageReport{}, unknownStage(id)
	}
	if in == nil || in.Table == nil {
		return StageReport{}, apperrors.NewAppValidationError(fmt.Sprintf("%s upload has no table", id))
	}

	ctx = infrastructure.WithSessionID(ctx, s.ID)

	s.run.Lock()
	defer s.run.Unlock()

	if err := ctx.Err(); err != nil {
		return StageReport{}, err
	}

	if err := m.checkRequirements(s, stage); err != nil {
		m.logger.WarnContext(ctx, "stage_out_of_order",
			slog.String("stage", string(id)),
			slog.String("error", err.Error()))
		return StageReport{}, err
	}

	s.invalidateFrom(id)
	step := s.Step(id)
	step.Start(in.FileName)
	m.logStageStart(ctx, id, in)

	ctx, span := m.tracer.TraceStage(ctx, s.ID, id, in)
	defer span.End()

	start := time.Now()
	report, err := stage.Execute(ctx, s, in)
	duration := time.Since(start)

	m.tracer.RecordStageCompletion(ctx, span, id, duration, report, err)
	s.Touch(m.now())

	if err != nil {
		step.Fail(err)
		m.logStageError(ctx, id, duration, err)
		return report, fmt.Errorf("%s stage: %w", id, err)
	}

	step.Complete(report.OutputRows, report.Message)
	m.logStageComplete(ctx, id, duration, report)
	return report, nil
}

// checkRequirements fails with a STATE error when a prerequisite stage has
// not completed
func (m *Manager) checkRequirements(s *Session, stage Stage) error {
	for _, dep := range stage.Requires() {
		step := s.Step(dep)
		if step == nil || !step.IsCompleted() {
			return NewStageOrderError(string(stage.ID()), dep)
		}
	}
	return nil
}

func (m *Manager) logStageStart(ctx context.Context, id domain.StageID, in *Upload) {
	m.logger.InfoContext(ctx, "stage_start",
		slog.String("stage", string(id)),
		slog.String("file_name", in.FileName),
		slog.Int64("size_bytes", in.Size),
		slog.Int("rows", in.Table.NumRows()))
}

func (m *Manager) logStageComplete(ctx context.Context, id domain.StageID, duration time.Duration, report StageReport) {
	m.logger.InfoContext(ctx, "stage_complete",
		slog.String("stage", string(id)),
		slog.Duration("duration", duration),
		slog.Int("input_rows", report.InputRows),
		slog.Int("output_rows", report.OutputRows),
		slog.Int("warnings", len(report.Warnings)))

	for _, w := range report.Warnings {
		m.logger.WarnContext(ctx, "stage_warning",
			slog.String("stage", string(id)),
			slog.String("type", string(w.Type)),
			slog.String("message", w.Message))
	}
}

func (m *Manager) logStageError(ctx context.Context, id domain.StageID, duration time.Duration, err error) {
	m.logger.ErrorContext(ctx, "stage_error",
		slog.String("stage", string(id)),
		slog.Duration("duration", duration),
		slog.String("error_type", string(apperrors.TypeOf(err))),
		slog.String("error", err.Error()))
}
