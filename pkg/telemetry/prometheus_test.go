package telemetry

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

func gatherFamily(t *testing.T, e *PromEmitter, name string) *dto.MetricFamily {
	t.Helper()

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPromEmitterCountsSteps(t *testing.T) {
	e := NewPromEmitter()
	ctx := context.Background()

	e.Emit(ctx, domain.Event{
		Type:     domain.EventStepSucceeded,
		Pipeline: "moderated-translate",
		StepType: "translate",
		Provider: "openai-main",
		Duration: 120 * time.Millisecond,
	})
	e.Emit(ctx, domain.Event{
		Type:     domain.EventStepFailed,
		Pipeline: "moderated-translate",
		StepType: "moderate",
		Provider: "anthropic-main",
	})

	steps := gatherFamily(t, e, "conduit_steps_total")
	require.NotNil(t, steps)
	assert.Len(t, steps.GetMetric(), 2)

	failures := gatherFamily(t, e, "conduit_step_failures_total")
	require.NotNil(t, failures)
	require.Len(t, failures.GetMetric(), 1)
	assert.Equal(t, float64(1), failures.GetMetric()[0].GetCounter().GetValue())

	// Latency recorded only for the success, which carried a duration.
	latency := gatherFamily(t, e, "conduit_step_duration_seconds")
	require.NotNil(t, latency)
	require.Len(t, latency.GetMetric(), 1)
	assert.Equal(t, uint64(1), latency.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPromEmitterCountsResilienceEvents(t *testing.T) {
	e := NewPromEmitter()
	ctx := context.Background()

	e.Emit(ctx, domain.Event{Type: domain.EventCircuitOpened, Provider: "openai-main"})
	e.Emit(ctx, domain.Event{Type: domain.EventCircuitOpened, Provider: "openai-main"})
	e.Emit(ctx, domain.Event{Type: domain.EventProviderFallback, TaskType: "summarize", Provider: "static-backup"})

	opens := gatherFamily(t, e, "conduit_circuit_opened_total")
	require.NotNil(t, opens)
	require.Len(t, opens.GetMetric(), 1)
	assert.Equal(t, float64(2), opens.GetMetric()[0].GetCounter().GetValue())

	fallbacks := gatherFamily(t, e, "conduit_provider_fallbacks_total")
	require.NotNil(t, fallbacks)
	require.Len(t, fallbacks.GetMetric(), 1)
	assert.Equal(t, float64(1), fallbacks.GetMetric()[0].GetCounter().GetValue())
}

func TestPromEmitterHandlerServesMetrics(t *testing.T) {
	e := NewPromEmitter()
	e.Emit(context.Background(), domain.Event{
		Type:     domain.EventStepSucceeded,
		Pipeline: "p",
		StepType: "detect",
		Provider: "static-backup",
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	e.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "conduit_steps_total"))
}
