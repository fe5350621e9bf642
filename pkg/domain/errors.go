package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorKind classifies a provider failure. The engine keys retry and
// fallback decisions off the kind, never off provider-specific payloads.
type ErrorKind string

const (
	ErrorRateLimited    ErrorKind = "rate_limited"
	ErrorQuotaExceeded  ErrorKind = "quota_exceeded"
	ErrorInvalidRequest ErrorKind = "invalid_request"
	ErrorNetwork        ErrorKind = "network_error"
	ErrorModel          ErrorKind = "model_error"
	ErrorUnknown        ErrorKind = "unknown"
)

// Retryable reports whether the same provider may be attempted again.
// Everything else either cannot succeed on retry (invalid_request,
// quota_exceeded) or should fail over rather than hammer a sick backend
// (model_error).
func (k ErrorKind) Retryable() bool {
	return k == ErrorRateLimited || k == ErrorNetwork
}

// ProviderError is a classified failure from a single provider invocation.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ClassifyError extracts the kind from an error chain, defaulting to unknown.
func ClassifyError(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrorUnknown
}

// Sentinel errors shared across packages. Callers match with errors.Is.
var (
	ErrCircuitOpen       = errors.New("circuit open")
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrNoProviders       = errors.New("no providers available for task")
	ErrRegistrySealed    = errors.New("provider registry is sealed")
	ErrPipelineNotFound  = errors.New("pipeline not found")
	ErrLoopLimitExceeded = errors.New("LoopLimitExceeded: loop iteration ceiling reached")
	ErrRunCancelled      = errors.New("run cancelled")
	ErrDeadlineExceeded  = errors.New("run deadline exceeded")
)

// ExhaustedError reports that every candidate provider for a task failed.
// Attempted preserves the order providers were tried.
type ExhaustedError struct {
	TaskType   string
	Attempted  []string
	LastErrors map[string]error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "AllProvidersExhausted: task %q failed across %d provider(s)", e.TaskType, len(e.Attempted))
	names := append([]string(nil), e.Attempted...)
	if len(names) == 0 {
		for n := range e.LastErrors {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	for _, n := range names {
		if err, ok := e.LastErrors[n]; ok && err != nil {
			fmt.Fprintf(&b, "; %s: %v", n, err)
		}
	}
	return b.String()
}

// StepError wraps a failure with the position and type of the failing step.
type StepError struct {
	Index    int
	StepType string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.StepType, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PredicateError reports a condition expression that could not be evaluated.
type PredicateError struct {
	Expr string
	Err  error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("predicate %q: %v", e.Expr, e.Err)
}

func (e *PredicateError) Unwrap() error { return e.Err }
