package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// PromEmitter exposes engine events as Prometheus metrics on its own
// registry so that scrapes see only conduit series.
type PromEmitter struct {
	stepsTotal    *prometheus.CounterVec
	stepFailures  *prometheus.CounterVec
	stepLatency   *prometheus.HistogramVec
	circuitOpens  *prometheus.CounterVec
	fallbacksUsed *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPromEmitter creates a PromEmitter with all conduit metrics registered.
func NewPromEmitter() *PromEmitter {
	registry := prometheus.NewRegistry()

	e := &PromEmitter{
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conduit_steps_total",
				Help: "Total number of pipeline steps executed by type and outcome",
			},
			[]string{"pipeline", "step_type", "outcome"},
		),

		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conduit_step_failures_total",
				Help: "Total number of pipeline steps that ended in failure",
			},
			[]string{"pipeline", "step_type"},
		),

		stepLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conduit_step_duration_seconds",
				Help:    "Step execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline", "step_type", "provider"},
		),

		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conduit_circuit_opened_total",
				Help: "Total number of circuit breaker opens by provider",
			},
			[]string{"provider"},
		),

		fallbacksUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conduit_provider_fallbacks_total",
				Help: "Total number of task calls routed past the first candidate provider",
			},
			[]string{"task_type", "provider"},
		),

		registry: registry,
	}

	registry.MustRegister(
		e.stepsTotal,
		e.stepFailures,
		e.stepLatency,
		e.circuitOpens,
		e.fallbacksUsed,
	)

	return e
}

// Emit implements domain.Emitter.
func (e *PromEmitter) Emit(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventStepSucceeded:
		e.stepsTotal.WithLabelValues(ev.Pipeline, ev.StepType, "success").Inc()
		if ev.Duration > 0 {
			e.stepLatency.WithLabelValues(ev.Pipeline, ev.StepType, ev.Provider).Observe(ev.Duration.Seconds())
		}
	case domain.EventStepFailed:
		e.stepsTotal.WithLabelValues(ev.Pipeline, ev.StepType, "failure").Inc()
		e.stepFailures.WithLabelValues(ev.Pipeline, ev.StepType).Inc()
		if ev.Duration > 0 {
			e.stepLatency.WithLabelValues(ev.Pipeline, ev.StepType, ev.Provider).Observe(ev.Duration.Seconds())
		}
	case domain.EventCircuitOpened:
		e.circuitOpens.WithLabelValues(ev.Provider).Inc()
	case domain.EventProviderFallback:
		e.fallbacksUsed.WithLabelValues(ev.TaskType, ev.Provider).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for this emitter's registry.
func (e *PromEmitter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so callers can register
// additional collectors on the same scrape endpoint.
func (e *PromEmitter) Registry() *prometheus.Registry {
	return e.registry
}
