// Package expr implements a small boolean expression language for pipeline
// conditions. Expressions reference scope variables through a caller-supplied
// lookup, support comparison and logical operators, and always reduce to a
// boolean. Arbitrary code evaluation is deliberately out of scope.
package expr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LookupFunc resolves variable references encountered in expressions.
type LookupFunc func(path string) (any, bool)

var (
	// ErrSyntax indicates the expression could not be parsed.
	ErrSyntax = errors.New("condition syntax error")
	// ErrUnknownIdentifier indicates a referenced variable is not in scope.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrTypeMismatch indicates an unsupported type coercion or comparison.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Options control evaluator behavior.
type Options struct {
	// Timeout bounds a single evaluation. Defaults to 10ms, which is ample
	// for condition-sized expressions and tight enough to stop runaways.
	Timeout time.Duration
}

// Evaluator evaluates boolean expressions against a lookup scope. It is
// stateless and safe for concurrent use.
type Evaluator struct {
	timeout time.Duration
}

// New constructs an Evaluator applying defaults.
func New(opts Options) *Evaluator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Millisecond
	}
	return &Evaluator{timeout: timeout}
}

// Evaluate parses and evaluates the expression against the lookup.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, lookup LookupFunc) (bool, error) {
	if lookup == nil {
		return false, fmt.Errorf("%w: lookup function is required", ErrSyntax)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	root, err := parse(expression)
	if err != nil {
		return false, err
	}

	value, err := root.eval(ctx, lookup)
	if err != nil {
		return false, err
	}
	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression does not evaluate to boolean", ErrTypeMismatch)
	}
	return result, nil
}
