package engine

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// runParallel forks the pre-step context per branch, executes branches with
// bounded concurrency, and merges deterministically: post-step data is the
// ordered sequence of branch finals, step results and logs concatenate in
// branch-declaration order regardless of completion order.
func (e *Engine) runParallel(ctx context.Context, step domain.ParallelStep, c *domain.Context, rs *runState) error {
	n := len(step.Branches)
	if n == 0 {
		c.Data = []any{}
		return nil
	}

	forks := make([]*domain.Context, n)
	errs := make([]error, n)
	sem := make(chan struct{}, e.limits.MaxConcurrency)
	var wg sync.WaitGroup

	for i, branch := range step.Branches {
		forks[i] = c.Fork()
		// Blocking acquire before dispatch keeps queueing in declaration
		// order when the concurrency bound is hit.
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, branch []domain.Step) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = e.runSteps(ctx, branch, forks[i], rs)
		}(i, branch)
	}
	wg.Wait()

	// All branches ran to completion; the reported failure is the first in
	// declaration order, not the first in wall-clock time.
	for i, err := range errs {
		if err != nil {
			if aborts(err) {
				return err
			}
			return fmt.Errorf("branch %d: %w", i, err)
		}
	}

	baseResults := len(c.StepResults)
	baseLogs := len(c.Logs)
	merged := make([]any, n)
	for i, f := range forks {
		merged[i] = f.Data
		c.StepResults = append(c.StepResults, f.StepResults[baseResults:]...)
		c.Logs = append(c.Logs, f.Logs[baseLogs:]...)
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	c.Data = merged
	return nil
}

// runConditional evaluates the predicate against the current context and
// executes one of the two nested sequences.
func (e *Engine) runConditional(ctx context.Context, step domain.ConditionalStep, c *domain.Context, rs *runState) error {
	cond, err := e.evalPredicate(ctx, step.When, c)
	if err != nil {
		return err
	}
	if cond {
		return e.runSteps(ctx, step.Then, c, rs)
	}
	return e.runSteps(ctx, step.Else, c, rs)
}

// runLoop re-evaluates the predicate before every iteration; zero iterations
// is valid. The iteration ceiling guarantees termination under a predicate
// that never turns false, and fires only when the predicate asks for an
// iteration beyond the limit: turning false at exactly the limit completes
// the loop.
func (e *Engine) runLoop(ctx context.Context, step domain.LoopStep, c *domain.Context, rs *runState) error {
	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return mapCtxErr(err)
		}
		cond, err := e.evalPredicate(ctx, step.While, c)
		if err != nil {
			return err
		}
		if !cond {
			return nil
		}
		if iteration >= e.limits.MaxLoopIterations {
			return domain.ErrLoopLimitExceeded
		}
		if err := e.runSteps(ctx, step.Steps, c, rs); err != nil {
			return err
		}
	}
}

// runBatch partitions the input sequence into chunks of Size, runs the
// nested sequence once per chunk under the parallel concurrency bound, and
// reassembles chunk outputs in input order.
func (e *Engine) runBatch(ctx context.Context, step domain.BatchStep, c *domain.Context, rs *runState) error {
	if step.Size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", step.Size)
	}
	items, err := batchItems(c.Data, step.Items)
	if err != nil {
		return err
	}

	var chunks [][]any
	for start := 0; start < len(items); start += step.Size {
		end := start + step.Size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	if len(chunks) == 0 {
		c.Data = []any{}
		return nil
	}

	forks := make([]*domain.Context, len(chunks))
	errs := make([]error, len(chunks))
	sem := make(chan struct{}, e.limits.MaxConcurrency)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		forks[i] = c.Fork()
		forks[i].Data = append([]any(nil), chunk...)
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = e.runSteps(ctx, step.Steps, forks[i], rs)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			if aborts(err) {
				return err
			}
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	baseResults := len(c.StepResults)
	baseLogs := len(c.Logs)
	var aggregated []any
	for _, f := range forks {
		// A chunk whose final data is still a sequence flattens back in;
		// anything else contributes one aggregated element.
		if seq, ok := f.Data.([]any); ok {
			aggregated = append(aggregated, seq...)
		} else {
			aggregated = append(aggregated, f.Data)
		}
		c.StepResults = append(c.StepResults, f.StepResults[baseResults:]...)
		c.Logs = append(c.Logs, f.Logs[baseLogs:]...)
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	c.Data = aggregated
	return nil
}

// batchItems locates the input sequence for a batch step: a dotted accessor
// into data, or data itself when the accessor is empty.
func batchItems(data any, accessor string) ([]any, error) {
	target := data
	if accessor != "" {
		v, ok := dig(data, accessor)
		if !ok {
			return nil, fmt.Errorf("batch accessor %q not found in data", accessor)
		}
		target = v
	}
	items, ok := toSlice(target)
	if !ok {
		return nil, fmt.Errorf("batch input is %T, not a sequence", target)
	}
	return items, nil
}

func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
