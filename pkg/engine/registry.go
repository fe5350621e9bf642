package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// Registry holds named pipeline definitions. Definitions can be replaced
// wholesale on config reload; in-flight runs keep the definition they
// started with.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]domain.Definition
}

// NewRegistry returns an empty pipeline registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]domain.Definition)}
}

// Get returns the named definition.
func (r *Registry) Get(name string) (domain.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.pipelines[name]
	if !ok {
		return domain.Definition{}, fmt.Errorf("%w: %s", domain.ErrPipelineNotFound, name)
	}
	return def, nil
}

// Upsert adds or replaces a single definition.
func (r *Registry) Upsert(def domain.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[def.Name] = def
}

// Replace swaps the whole definition set atomically, used on hot reload.
func (r *Registry) Replace(defs []domain.Definition) {
	next := make(map[string]domain.Definition, len(defs))
	for _, def := range defs {
		next[def.Name] = def
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines = next
}

// Names returns the registered pipeline names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
