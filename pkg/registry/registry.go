// Package registry maps handler names to their descriptors and constructors.
//
// Handlers are registered once by an explicit startup routine, in a fixed
// order. That order is the order candidates appear in classification prompts.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MikaYeghi/agent-first/pkg/domain"
	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("registry is sealed")

type entry struct {
	desc domain.HandlerDescriptor
	ctor ports.Constructor
}

// Registry manages the available handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
	sealed  bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a handler. It fails with domain.ErrDuplicateName if the name is taken.
func (r *Registry) Register(desc domain.HandlerDescriptor, ctor ports.Constructor) error {
	if desc.Name == "" {
		return errors.New("handler name cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("handler %q: nil constructor", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrSealed, desc.Name)
	}
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateName, desc.Name)
	}
	r.entries[desc.Name] = entry{desc: desc, ctor: ctor}
	r.order = append(r.order, desc.Name)
	return nil
}

// MustRegister is like Register but panics on error. Intended for startup code.
func (r *Registry) MustRegister(desc domain.HandlerDescriptor, ctor ports.Constructor) {
	if err := r.Register(desc, ctor); err != nil {
		panic(err)
	}
}

// Resolve returns the constructor of a handler.
// It fails with domain.ErrUnknownHandler if the name is not registered.
func (r *Registry) Resolve(name string) (ports.Constructor, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownHandler, name)
	}
	return e.ctor, nil
}

// Describe returns the descriptor of a handler.
func (r *Registry) Describe(name string) (domain.HandlerDescriptor, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return domain.HandlerDescriptor{}, fmt.Errorf("%w: %s", domain.ErrUnknownHandler, name)
	}
	return e.desc, nil
}

// Has reports whether a handler is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// ListAll returns the descriptors in registration order, skipping the excluded names.
func (r *Registry) ListAll(excluding ...string) []domain.HandlerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.HandlerDescriptor, 0, len(r.order))
	for _, name := range r.order {
		if slices.Contains(excluding, name) {
			continue
		}
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Seal rejects any further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
