package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

var (
	metricsOnce             sync.Once
	metricsInitErr          error
	stepExecutionCounter    metric.Int64Counter
	stepFailureCounter      metric.Int64Counter
	circuitOpenedCounter    metric.Int64Counter
	providerFallbackCounter metric.Int64Counter
	stepLatencyHistogram    metric.Float64Histogram
)

// OTelEmitter forwards engine events to the process-wide OpenTelemetry
// meter provider. Instruments are initialised lazily on first use so the
// emitter can be constructed before SetupProvider has run.
type OTelEmitter struct{}

// NewOTelEmitter returns an emitter backed by otel.GetMeterProvider().
func NewOTelEmitter() *OTelEmitter {
	return &OTelEmitter{}
}

// Emit records counters and histograms describing step execution behaviour.
func (e *OTelEmitter) Emit(ctx context.Context, ev domain.Event) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline.name", ev.Pipeline),
		attribute.String("step.type", ev.StepType),
		attribute.Int("step.ordinal", ev.StepIndex),
	}
	if ev.Provider != "" {
		attrs = append(attrs, attribute.String("provider.name", ev.Provider))
	}
	opts := metric.WithAttributes(attrs...)

	switch ev.Type {
	case domain.EventStepSucceeded:
		stepExecutionCounter.Add(ctx, 1, opts)
		if ev.Duration > 0 {
			stepLatencyHistogram.Record(ctx, float64(ev.Duration)/float64(time.Millisecond), opts)
		}
	case domain.EventStepFailed:
		stepExecutionCounter.Add(ctx, 1, opts)
		stepFailureCounter.Add(ctx, 1, opts)
		if ev.Duration > 0 {
			stepLatencyHistogram.Record(ctx, float64(ev.Duration)/float64(time.Millisecond), opts)
		}
	case domain.EventCircuitOpened:
		circuitOpenedCounter.Add(ctx, 1, opts)
	case domain.EventProviderFallback:
		providerFallbackCounter.Add(ctx, 1, opts)
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("conduit.engine")

		stepExecutionCounter, metricsInitErr = meter.Int64Counter(
			"conduit.step.executions_total",
			metric.WithDescription("Pipeline step executions partitioned by step type"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stepFailureCounter, metricsInitErr = meter.Int64Counter(
			"conduit.step.failures_total",
			metric.WithDescription("Pipeline step executions that ended in failure"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		circuitOpenedCounter, metricsInitErr = meter.Int64Counter(
			"conduit.circuit.opened_total",
			metric.WithDescription("Circuit breaker transitions into the open state"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		providerFallbackCounter, metricsInitErr = meter.Int64Counter(
			"conduit.provider.fallback_total",
			metric.WithDescription("Task calls served by a provider other than the first candidate"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stepLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"conduit.step.duration_ms",
			metric.WithDescription("Observed step execution latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
