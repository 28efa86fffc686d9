package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papaburgs/fluffy-miner/internal/db"
	"github.com/papaburgs/fluffy-miner/internal/metrics"
)

// step is a named value computed at most once per run. Every caller of Get
// receives the same value or the same error.
type step[T any] struct {
	name string
	run  *run
	fn   func(ctx context.Context) (T, error)

	once sync.Once
	val  T
	err  error
}

func newStep[T any](r *run, name string, fn func(ctx context.Context) (T, error)) *step[T] {
	return &step[T]{name: name, run: r, fn: fn}
}

func (s *step[T]) Get(ctx context.Context) (T, error) {
	s.once.Do(func() {
		s.val, s.err = observe(ctx, s.run, s.name, s.fn)
	})
	return s.val, s.err
}

// observe runs fn inside a span and records its outcome in metrics and the audit trail.
func observe[T any](ctx context.Context, r *run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	e := r.engine
	ctx, span := e.tracer.Start(ctx, "Workflow.Step",
		trace.WithAttributes(
			attribute.String("step.name", name),
			attribute.String("run.id", r.id),
		),
	)
	defer span.End()

	started := e.clock.Now()
	v, err := fn(ctx)
	finished := e.clock.Now()

	rec := db.StepRecord{
		RunID:      r.id,
		Step:       name,
		Status:     db.StepSucceeded,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err != nil {
		rec.Status = db.StepFailed
		rec.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("%s: %w", name, err)
	}
	metrics.RecordWorkflowStep(name, rec.Status, finished.Sub(started).Seconds())
	if e.audit != nil {
		if aerr := e.audit.RecordStep(ctx, rec); aerr != nil {
			slog.Warn("could not record workflow step", "run", r.id, "step", name, "error", aerr)
		}
	}
	slog.Debug("workflow step done", "run", r.id, "step", name, "status", rec.Status)
	return v, err
}
