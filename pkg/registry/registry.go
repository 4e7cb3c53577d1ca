package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
)

// Registry manages the available procedures. Names are case-sensitive.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*procedure.State
	order  []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		states: make(map[string]*procedure.State),
	}
}

// Add registers a state under its own name.
// Registering a name twice returns ErrDuplicateProcedure.
func (r *Registry) Add(state *procedure.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := state.Name()
	if _, ok := r.states[name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProcedure, name)
	}
	r.states[name] = state
	r.order = append(r.order, name)
	return nil
}

// AddAll registers every state, stopping at the first failure.
func (r *Registry) AddAll(states ...*procedure.State) error {
	for _, s := range states {
		if err := r.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// Get looks up a state by name.
func (r *Registry) Get(name string) (*procedure.State, error) {
	r.mu.RLock()
	s, ok := r.states[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProcedure, name)
	}
	return s, nil
}

// Resolve looks up the successor name produced by from.
func (r *Registry) Resolve(from, name string) (*procedure.State, error) {
	r.mu.RLock()
	s, ok := r.states[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.UnknownSuccessorError{From: from, Name: name}
	}
	return s, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// States returns the registered states in registration order.
func (r *Registry) States() []*procedure.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*procedure.State, len(r.order))
	for i, name := range r.order {
		out[i] = r.states[name]
	}
	return out
}

// Validate checks every declared exit against the registry.
func (r *Registry) Validate() error {
	var errs []error
	for _, s := range r.States() {
		for _, exit := range s.Exits() {
			if _, err := r.Resolve(s.Name(), exit); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
