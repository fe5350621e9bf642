package provider

import (
	"fmt"
	"sync"

	"github.com/conduitai/conduit-oss/pkg/domain"
)

// Registry holds the known providers. It has a two-phase lifecycle:
// providers are registered during startup, then the registry is sealed
// before the first pipeline runs. Registration after sealing fails;
// capability changes remain allowed because routing must be able to adapt
// to backends gaining or losing task support at runtime.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	// descriptors is the registry's own view of capabilities, seeded at
	// registration and mutated only through AddCapability/RemoveCapability.
	descriptors map[string]Descriptor
	order       []string
	sealed      bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		descriptors: make(map[string]Descriptor),
	}
}

// Register adds a provider under its descriptor name. Duplicate names and
// registration after Seal are rejected.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return domain.ErrRegistrySealed
	}
	desc := p.Descriptor()
	if desc.Name == "" {
		return fmt.Errorf("provider has empty name")
	}
	if _, exists := r.providers[desc.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProvider, desc.Name)
	}
	r.providers[desc.Name] = p
	r.descriptors[desc.Name] = Descriptor{
		Name:         desc.Name,
		Capabilities: append([]string(nil), desc.Capabilities...),
	}
	r.order = append(r.order, desc.Name)
	return nil
}

// Seal freezes the provider set. Idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether registration is closed.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// Describe returns the registry's current descriptor for the named provider.
func (r *Registry) Describe(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	return Descriptor{Name: d.Name, Capabilities: append([]string(nil), d.Capabilities...)}, nil
}

// List returns provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Descriptors returns the current descriptor of every provider in
// registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.descriptors[name]
		descs = append(descs, Descriptor{
			Name:         d.Name,
			Capabilities: append([]string(nil), d.Capabilities...),
		})
	}
	return descs
}

// CapableOf returns, in registration order, the providers whose current
// capabilities include the task type.
func (r *Registry) CapableOf(taskType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		if r.descriptors[name].Supports(taskType) {
			names = append(names, name)
		}
	}
	return names
}

// AddCapability grants the named provider an additional task type. Allowed
// after Seal.
func (r *Registry) AddCapability(name, taskType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	if d.Supports(taskType) {
		return nil
	}
	d.Capabilities = append(d.Capabilities, taskType)
	r.descriptors[name] = d
	return nil
}

// RemoveCapability revokes a task type from the named provider. Allowed
// after Seal.
func (r *Registry) RemoveCapability(name, taskType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	kept := d.Capabilities[:0]
	for _, c := range d.Capabilities {
		if c != taskType {
			kept = append(kept, c)
		}
	}
	d.Capabilities = kept
	r.descriptors[name] = d
	return nil
}
