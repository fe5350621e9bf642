package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/conduitai/conduit-oss/pkg/domain"
	"github.com/conduitai/conduit-oss/pkg/provider"
)

// Caller executes a task against an ordered list of candidate providers,
// applying retry with backoff per provider and failing over to the next
// candidate when one is exhausted or its circuit is open.
type Caller struct {
	registry *provider.Registry
	breakers *BreakerSet
	policy   Policy
	emitter  domain.Emitter
	logger   *slog.Logger

	// now and sleep are injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Config configures a Caller. Registry is required; everything else
// defaults.
type Config struct {
	Registry *provider.Registry
	Policy   Policy
	Emitter  domain.Emitter
	Logger   *slog.Logger
}

// NewCaller builds a caller with per-provider breakers governed by the
// policy.
func NewCaller(cfg Config) *Caller {
	policy := cfg.Policy.normalize()
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = domain.NopEmitter{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{
		registry: cfg.Registry,
		breakers: NewBreakerSet(policy),
		policy:   policy,
		emitter:  emitter,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// mapCtxErr translates a context error into the engine's cancellation
// sentinels.
func mapCtxErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return domain.ErrRunCancelled
	default:
		return err
	}
}

// CallResult reports a successful provider invocation.
type CallResult struct {
	Output   any
	Provider string
	Attempts int
}

// BreakerStates exposes the current circuit state per provider, for status
// surfaces.
func (c *Caller) BreakerStates() map[string]State {
	return c.breakers.States()
}

// Call tries each candidate in order. Retry scoping is per provider: a
// provider gets up to MaxAttempts invocations before the caller moves on,
// and the attempt budget resets for the next candidate. A provider whose
// circuit is open is skipped without an invocation. When every candidate
// fails the returned error is a *domain.ExhaustedError.
func (c *Caller) Call(ctx context.Context, candidates []string, taskType string, payload any, options map[string]any) (CallResult, error) {
	if len(candidates) == 0 {
		return CallResult{}, domain.ErrNoProviders
	}

	lastErrors := make(map[string]error, len(candidates))
	attempted := make([]string, 0, len(candidates))

	for i, name := range candidates {
		if err := ctx.Err(); err != nil {
			return CallResult{}, mapCtxErr(err)
		}

		p, err := c.registry.Get(name)
		if err != nil {
			attempted = append(attempted, name)
			lastErrors[name] = err
			continue
		}

		br := c.breakers.Get(name)
		allowed, probe := br.Allow(c.now())
		if !allowed {
			c.logger.Debug("skipping provider with open circuit",
				"provider", name, "task", taskType)
			attempted = append(attempted, name)
			lastErrors[name] = domain.ErrCircuitOpen
			continue
		}

		if i > 0 {
			c.emitter.Emit(ctx, domain.Event{
				Type:     domain.EventProviderFallback,
				TaskType: taskType,
				Provider: name,
			})
			c.logger.Info("falling back to provider", "provider", name, "task", taskType)
		}

		maxAttempts := c.policy.MaxAttempts
		if probe {
			// A half-open circuit gets one probe, not a retry budget.
			maxAttempts = 1
		}

		attempted = append(attempted, name)
		output, attempts, err := c.tryProvider(ctx, p, name, taskType, payload, options, maxAttempts)
		if err == nil {
			br.RecordSuccess()
			return CallResult{Output: output, Provider: name, Attempts: attempts}, nil
		}
		if errors.Is(err, domain.ErrRunCancelled) || errors.Is(err, domain.ErrDeadlineExceeded) {
			// The call never reached a verdict. An admitted probe must be
			// handed back or every later Allow would reject it as in flight.
			if probe {
				br.ReleaseProbe()
			}
			return CallResult{}, err
		}

		if br.RecordFailure(c.now()) {
			c.emitter.Emit(ctx, domain.Event{
				Type:     domain.EventCircuitOpened,
				TaskType: taskType,
				Provider: name,
				Err:      err,
			})
			c.logger.Warn("circuit opened", "provider", name, "task", taskType, "error", err)
		}
		lastErrors[name] = err
	}

	// A run that ran out of time surfaces its deadline, not the incidental
	// provider errors the expiry caused.
	if err := ctx.Err(); err != nil {
		return CallResult{}, mapCtxErr(err)
	}
	return CallResult{}, &domain.ExhaustedError{
		TaskType:   taskType,
		Attempted:  attempted,
		LastErrors: lastErrors,
	}
}

// tryProvider runs the per-provider retry loop. Only errors classified as
// retryable consume further attempts; a non-retryable failure hands over to
// the next candidate immediately.
func (c *Caller) tryProvider(ctx context.Context, p provider.Provider, name, taskType string, payload any, options map[string]any, maxAttempts int) (any, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, mapCtxErr(err)
		}

		output, err := p.Invoke(ctx, taskType, payload, options)
		if err == nil {
			return output, attempt, nil
		}
		lastErr = err

		kind := domain.ClassifyError(err)
		if !kind.Retryable() || attempt == maxAttempts {
			break
		}

		delay := c.policy.Backoff(attempt)
		var pe *domain.ProviderError
		if errors.As(err, &pe) && pe.RetryAfter > delay {
			delay = pe.RetryAfter
		}
		c.logger.Debug("retrying provider",
			"provider", name, "task", taskType, "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, attempt, mapCtxErr(err)
		}
	}
	return nil, maxAttempts, lastErr
}
