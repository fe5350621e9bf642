// Package provider defines the pluggable backend surface of the engine and
// ships adapters for OpenAI-compatible and Anthropic APIs plus a static
// in-process provider for tests and offline use.
package provider

import "context"

// Task types understood by the shipped adapters. The engine itself treats
// task types as opaque strings; this list is the adapters' vocabulary.
const (
	TaskTranslate = "translate"
	TaskModerate  = "moderate"
	TaskSummarize = "summarize"
	TaskDetect    = "detect"
)

// Descriptor identifies a provider and the task types it can serve.
type Descriptor struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Supports reports whether the descriptor lists the task type.
func (d Descriptor) Supports(taskType string) bool {
	for _, c := range d.Capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}

// Provider is a backend that can execute task types against a payload.
// Invoke must return a *domain.ProviderError for classified failures so the
// resilience layer can decide between retry and fallback. Implementations
// must be safe for concurrent use.
type Provider interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, taskType string, payload any, options map[string]any) (any, error)
}
