package provider

import (
	"context"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// Static serves canned responses keyed by task type. It backs tests,
// offline development, and configs that want a guaranteed-available
// last-resort fallback.
type Static struct {
	name      string
	responses map[string]any
}

// NewStatic builds a static provider. Its capabilities are exactly the keys
// of responses.
func NewStatic(name string, responses map[string]any) *Static {
	return &Static{name: name, responses: responses}
}

func (p *Static) Descriptor() Descriptor {
	caps := make([]string, 0, len(p.responses))
	for _, task := range []string{TaskTranslate, TaskModerate, TaskSummarize, TaskDetect} {
		if _, ok := p.responses[task]; ok {
			caps = append(caps, task)
		}
	}
	// Preserve any nonstandard task types too.
	for task := range p.responses {
		switch task {
		case TaskTranslate, TaskModerate, TaskSummarize, TaskDetect:
		default:
			caps = append(caps, task)
		}
	}
	return Descriptor{Name: p.name, Capabilities: caps}
}

// Invoke returns the canned response for the task type.
func (p *Static) Invoke(ctx context.Context, taskType string, payload any, options map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorNetwork, Err: err}
	}
	resp, ok := p.responses[taskType]
	if !ok {
		return nil, &domain.ProviderError{Provider: p.name, Kind: domain.ErrorInvalidRequest,
			Message: "no canned response for task " + taskType}
	}
	return resp, nil
}
