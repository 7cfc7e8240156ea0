package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"backfill/internal/infrastructure"
	"backfill/pkg/contracts/domain"
)

const (
	TracerName = "backfill.operations"
)

// StageTracer provides OpenTelemetry instrumentation for stage runs.
// A nil metrics set records spans only.
type StageTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewStageTracer creates a stage tracer on the global tracer provider
func NewStageTracer(metrics *infrastructure.BusinessMetrics) *StageTracer {
	return &StageTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// TraceStage creates a span for one stage run
func (st *StageTracer) TraceStage(ctx context.Context, sessionID string, stage domain.StageID, in *Upload) (context.Context, trace.Span) {
	return st.tracer.Start(ctx, fmt.Sprintf("stage.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("stage.id", string(stage)),
			attribute.String("upload.file_name", in.FileName),
			attribute.Int64("upload.size_bytes", in.Size),
		),
	)
}

// RecordStageCompletion records the stage outcome on the span and metrics
func (st *StageTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stage domain.StageID, duration time.Duration, report StageReport, err error) {
	name := string(stage)

	span.SetAttributes(
		attribute.Int("stage.input_rows", report.InputRows),
		attribute.Int("stage.output_rows", report.OutputRows),
		attribute.Int("stage.warnings", len(report.Warnings)),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)

	infrastructure.RecordStageMetrics(ctx, st.metrics, name, duration, err == nil)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	infrastructure.RecordRows(ctx, st.metrics, name, "input", report.InputRows)
	infrastructure.RecordRows(ctx, st.metrics, name, "output", report.OutputRows)

	if len(report.Hits) > 0 {
		hits := make(map[string]int, len(report.Hits))
		for status, n := range report.Hits {
			hits[string(status)] = n
		}
		infrastructure.RecordHits(ctx, st.metrics, hits)
	}

	if st.metrics != nil && len(report.Warnings) > 0 {
		st.metrics.Warnings.Add(ctx, int64(len(report.Warnings)),
			metric.WithAttributes(attribute.String("stage", name)))
	}
	for _, w := range report.Warnings {
		infrastructure.AddSpanEvent(ctx, "stage.warning", map[string]interface{}{
			"type":    string(w.Type),
			"message": w.Message,
		})
	}

	span.SetStatus(codes.Ok, "stage completed")
}
