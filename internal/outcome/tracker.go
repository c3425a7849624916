// Package outcome closes the learning loop: every recorded application
// outcome immediately changes how its pattern ranks in future diagnoses.
package outcome

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

const instrumentationName = "github.com/fyrsmithlabs/patternd/internal/outcome"

// ApplicationStore persists application records and recomputes pattern
// statistics. Satisfied by *store.Store.
type ApplicationStore interface {
	RecordApplication(ctx context.Context, app *pattern.Application) (*pattern.Application, error)
}

// Request describes one application outcome reported by the external
// solution executor.
type Request struct {
	// PatternID identifies the applied pattern. Required.
	PatternID string

	// ProjectType describes the target project (optional).
	ProjectType string

	// Success records whether the solution resolved the issue.
	Success bool

	// ExecutionTimeMs is how long the solution took to apply.
	ExecutionTimeMs int64

	// ErrorMessage is the original error text (optional).
	ErrorMessage string

	// Context is the diagnosis context at apply time, snapshotted into the
	// application record.
	Context pattern.Context
}

// Tracker records application outcomes.
type Tracker struct {
	store  ApplicationStore
	logger *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	outcomeCounter metric.Int64Counter
}

// NewTracker creates an outcome tracker over the given store.
func NewTracker(store ApplicationStore, logger *zap.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("application store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		store:  store,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	var err error
	t.outcomeCounter, err = t.meter.Int64Counter(
		"patternd.outcome.recorded_total",
		metric.WithDescription("Total number of application outcomes recorded"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		t.logger.Warn("failed to create outcome counter", zap.Error(err))
	}

	return t, nil
}

// Record appends an immutable application record and lets the store
// recompute the pattern's statistics in the same logical operation.
// Surfaces ErrPatternNotFound: applying a pattern that was never matched is
// a caller-side bug, not something to swallow.
func (t *Tracker) Record(ctx context.Context, req *Request) (*pattern.Application, error) {
	ctx, span := t.tracer.Start(ctx, "outcome.record")
	defer span.End()
	span.SetAttributes(
		attribute.String("pattern_id", req.PatternID),
		attribute.Bool("success", req.Success),
	)

	snapshot, err := req.Context.Snapshot()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("snapshot context: %w", err)
	}

	app := &pattern.Application{
		PatternID:       req.PatternID,
		ProjectType:     req.ProjectType,
		Success:         req.Success,
		ExecutionTimeMs: req.ExecutionTimeMs,
		ErrorMessage:    req.ErrorMessage,
		ContextSnapshot: snapshot,
	}

	committed, err := t.store.RecordApplication(ctx, app)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if t.outcomeCounter != nil {
		t.outcomeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", req.Success),
		))
	}

	t.logger.Info("outcome recorded",
		zap.String("application_id", committed.ID),
		zap.String("pattern_id", committed.PatternID),
		zap.Bool("success", committed.Success),
		zap.Int64("execution_time_ms", committed.ExecutionTimeMs),
	)
	return committed, nil
}
