// Package engine interprets pipeline definitions and drives their execution:
// declaration-order sequencing, bounded fan-out for parallel and batch steps,
// predicate-driven conditionals and loops, and the continue-on-error policy.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conduitai/conduit-oss/internal/resilience"
	"github.com/conduitai/conduit-oss/pkg/domain"
	"github.com/conduitai/conduit-oss/pkg/engine/expr"
	"github.com/conduitai/conduit-oss/pkg/provider"
)

// TaskCaller executes one logical task call against an ordered candidate
// list. Satisfied by *resilience.Caller.
type TaskCaller interface {
	Call(ctx context.Context, candidates []string, taskType string, payload any, options map[string]any) (resilience.CallResult, error)
}

// Limits bound the engine's fan-out and loop behavior.
type Limits struct {
	// MaxConcurrency caps simultaneously executing parallel branches and
	// batch chunks.
	MaxConcurrency int
	// MaxLoopIterations is the hard ceiling on loop step iterations.
	MaxLoopIterations int
}

func (l Limits) normalize() Limits {
	if l.MaxConcurrency <= 0 {
		l.MaxConcurrency = 4
	}
	if l.MaxLoopIterations <= 0 {
		l.MaxLoopIterations = 100
	}
	return l
}

// Config holds engine dependencies. Providers and Caller are required.
type Config struct {
	Providers *provider.Registry
	Caller    TaskCaller
	// Defaults routes a task type to a configured candidate list when a
	// step declares no providers.
	Defaults map[string][]string
	Registry *Registry
	Limits   Limits
	Emitter  domain.Emitter
	Logger   *slog.Logger
}

// RunOptions are per-run knobs supplied by the caller.
type RunOptions struct {
	// Debug raises log verbosity for this run.
	Debug bool
	// ContinueOnError records step failures in the trace log and proceeds
	// instead of failing the run. Cancellation and deadline expiry still
	// abort.
	ContinueOnError bool
	// Deadline bounds the whole run when positive.
	Deadline time.Duration
}

// Engine executes pipeline definitions.
type Engine struct {
	providers *provider.Registry
	caller    TaskCaller
	defaults  map[string][]string
	registry  *Registry
	limits    Limits
	eval      *expr.Evaluator
	emitter   domain.Emitter
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New builds an engine.
func New(cfg Config) *Engine {
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = domain.NopEmitter{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{
		providers: cfg.Providers,
		caller:    cfg.Caller,
		defaults:  cfg.Defaults,
		registry:  registry,
		limits:    cfg.Limits.normalize(),
		eval:      expr.New(expr.Options{}),
		emitter:   emitter,
		logger:    logger,
		tracer:    otel.Tracer("conduit.engine"),
	}
}

// Registry returns the definition registry the engine resolves names
// through.
func (e *Engine) Registry() *Registry { return e.registry }

// runState carries per-run identity through the step tree.
type runState struct {
	id       string
	pipeline string
	opts     RunOptions
}

// Run executes a definition against the initial payload. It always returns
// a Result: failures are reported through Success=false with the payload at
// the failure point and the full trace log, never through a panic or a bare
// error.
func (e *Engine) Run(ctx context.Context, def domain.Definition, initial any, opts RunOptions) domain.Result {
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pipeline.name", def.Name),
			attribute.String("run.id", runID),
		))
	defer span.End()

	logger := e.logger.With("run_id", runID, "pipeline", def.Name)
	logger.Info("pipeline run started", "steps", len(def.Steps))

	c := domain.NewContext(initial)
	rs := &runState{id: runID, pipeline: def.Name, opts: opts}

	if err := e.runSteps(ctx, def.Steps, c, rs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("pipeline run failed", "error", err)
		c.Logf("pipeline failed: %v", err)
		return domain.Result{Success: false, Data: c.Data, StepResults: c.StepResults, Logs: c.Logs}
	}

	logger.Info("pipeline run succeeded", "step_results", len(c.StepResults))
	return domain.Result{Success: true, Data: c.Data, StepResults: c.StepResults, Logs: c.Logs}
}

// RunByName resolves a definition through the registry. The only error is an
// unknown pipeline name; execution outcomes are in the Result.
func (e *Engine) RunByName(ctx context.Context, name string, initial any, opts RunOptions) (domain.Result, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		return domain.Result{}, err
	}
	return e.Run(ctx, def, initial, opts), nil
}

// mapCtxErr translates context errors into the run failure taxonomy.
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

// aborts reports errors that must stop the run even under continueOnError.
func aborts(err error) bool {
	return errors.Is(err, domain.ErrRunCancelled) || errors.Is(err, domain.ErrDeadlineExceeded)
}

// runSteps executes a step sequence in declaration order against the shared
// context. No step starts after cancellation is observed.
func (e *Engine) runSteps(ctx context.Context, steps []domain.Step, c *domain.Context, rs *runState) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return mapCtxErr(err)
		}

		err := e.runStep(ctx, step, c, rs)
		if err == nil {
			continue
		}
		if aborts(err) {
			return err
		}

		c.Logf("step %d (%s) failed: %v", i, domain.StepTypeName(step), err)
		if rs.opts.ContinueOnError {
			e.logger.Warn("step failed, continuing",
				"run_id", rs.id, "step", i, "type", domain.StepTypeName(step), "error", err)
			continue
		}
		return &domain.StepError{Index: i, StepType: domain.StepTypeName(step), Err: err}
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, step domain.Step, c *domain.Context, rs *runState) error {
	switch s := step.(type) {
	case domain.SimpleStep:
		return e.runSimple(ctx, s, c, rs)
	case domain.ParallelStep:
		return e.runParallel(ctx, s, c, rs)
	case domain.ConditionalStep:
		return e.runConditional(ctx, s, c, rs)
	case domain.LoopStep:
		return e.runLoop(ctx, s, c, rs)
	case domain.BatchStep:
		return e.runBatch(ctx, s, c, rs)
	default:
		return &domain.StepError{StepType: domain.StepTypeName(step), Err: errors.New("unknown step kind")}
	}
}

// evalPredicate decides a conditional or loop branch. A caller-supplied
// function wins over an expression; failure to evaluate is a step failure,
// never a silent false.
func (e *Engine) evalPredicate(ctx context.Context, p domain.Predicate, c *domain.Context) (bool, error) {
	if p.Fn != nil {
		ok, err := p.Fn(c.Scope())
		if err != nil {
			return false, predicateFailure(ctx, p.Expr, err)
		}
		return ok, nil
	}
	if p.Expr == "" {
		return false, &domain.PredicateError{Err: errors.New("predicate is unset")}
	}
	ok, err := e.eval.Evaluate(ctx, p.Expr, scopeLookup(c.Scope()))
	if err != nil {
		return false, predicateFailure(ctx, p.Expr, err)
	}
	return ok, nil
}

// predicateFailure wraps an evaluation error, except when the run context
// itself expired underneath the evaluation: cancellation keeps its own
// taxonomy so it aborts the run instead of reading as a bad predicate.
func predicateFailure(ctx context.Context, source string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return mapCtxErr(ctxErr)
	}
	return &domain.PredicateError{Expr: source, Err: err}
}
