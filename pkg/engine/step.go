package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// candidates resolves the provider precedence for a simple step: an explicit
// step override wins, then the configured default for the task type, then
// every registered provider capable of it.
func (e *Engine) candidates(step domain.SimpleStep) []string {
	if names := step.Providers(); len(names) > 0 {
		return names
	}
	if names := e.defaults[step.Type]; len(names) > 0 {
		return names
	}
	return e.providers.CapableOf(step.Type)
}

// runSimple executes one task invocation and merges its output into the
// context.
func (e *Engine) runSimple(ctx context.Context, step domain.SimpleStep, c *domain.Context, rs *runState) error {
	ordinal := len(c.StepResults)
	ctx, span := e.tracer.Start(ctx, "pipeline.step",
		trace.WithAttributes(
			attribute.String("step.type", step.Type),
			attribute.Int("step.ordinal", ordinal),
		))
	defer span.End()

	e.emitter.Emit(ctx, domain.Event{
		Type:      domain.EventStepStarted,
		RunID:     rs.id,
		Pipeline:  rs.pipeline,
		StepIndex: ordinal,
		StepType:  step.Type,
		TaskType:  step.Type,
	})
	if rs.opts.Debug {
		e.logger.Debug("step started",
			"run_id", rs.id, "ordinal", ordinal, "type", step.Type, "candidates", e.candidates(step))
	}

	start := time.Now()
	res, err := e.caller.Call(ctx, e.candidates(step), step.Type, c.Data, step.Options)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.emitter.Emit(ctx, domain.Event{
			Type:      domain.EventStepFailed,
			RunID:     rs.id,
			Pipeline:  rs.pipeline,
			StepIndex: ordinal,
			StepType:  step.Type,
			TaskType:  step.Type,
			Err:       err,
			Duration:  elapsed,
		})
		return err
	}

	span.SetAttributes(attribute.String("step.provider", res.Provider))
	e.emitter.Emit(ctx, domain.Event{
		Type:      domain.EventStepSucceeded,
		RunID:     rs.id,
		Pipeline:  rs.pipeline,
		StepIndex: ordinal,
		StepType:  step.Type,
		TaskType:  step.Type,
		Provider:  res.Provider,
		Duration:  elapsed,
	})

	c.StepResults = append(c.StepResults, domain.StepResult{
		Type:     step.Type,
		Provider: res.Provider,
		Output:   res.Output,
	})
	if step.Preserve() {
		c.Metadata[step.ResultKey()] = res.Output
	} else {
		c.Data = res.Output
	}
	c.Logf("step %d (%s) succeeded via %s", ordinal, step.Type, res.Provider)
	return nil
}
