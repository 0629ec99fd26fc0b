// Package registry holds the set of module descriptors selected for one
// engine instance and freezes them into an immutable snapshot once
// configuration is finalized. The registry is the sole owner of the
// descriptors; nothing else in the core keeps a mutable handle on them.
package registry

import (
	"fmt"

	"github.com/vk/framegrid/internal/module"
)

// DuplicateModuleError reports a second registration under an id that is
// already present. The registry is left unchanged.
type DuplicateModuleError struct {
	ID string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %q is already registered", e.ID)
}

// RegistryClosedError reports a registration attempted after Finalize.
type RegistryClosedError struct {
	ID string
}

func (e *RegistryClosedError) Error() string {
	return fmt.Sprintf("registry is finalized; cannot register module %q", e.ID)
}

// Registry collects module descriptors during the configuration phase.
// Registration order is preserved; the resolver uses it as the
// deterministic tie-break between unordered modules.
type Registry struct {
	descriptors []*module.Descriptor
	index       map[string]int
	finalized   bool
}

// New creates an empty, open registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a descriptor. It fails with *RegistryClosedError after
// Finalize and with *DuplicateModuleError when the id is already taken;
// in both cases the registry state is unchanged.
func (r *Registry) Register(d *module.Descriptor) error {
	if r.finalized {
		return &RegistryClosedError{ID: d.ID}
	}
	if d.ID == "" {
		return fmt.Errorf("descriptor has empty id (name %q)", d.Name)
	}
	if _, exists := r.index[d.ID]; exists {
		return &DuplicateModuleError{ID: d.ID}
	}
	r.index[d.ID] = len(r.descriptors)
	r.descriptors = append(r.descriptors, d)
	return nil
}

// Finalize freezes the set and returns the immutable snapshot the
// resolver and scheduler operate on. Finalize is idempotent.
func (r *Registry) Finalize() *Snapshot {
	r.finalized = true
	descriptors := make([]*module.Descriptor, len(r.descriptors))
	copy(descriptors, r.descriptors)
	index := make(map[string]int, len(r.index))
	for id, i := range r.index {
		index[id] = i
	}
	return &Snapshot{descriptors: descriptors, index: index}
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// Snapshot is the frozen view of a finalized registry. It is safe to
// share: the backing slice and map are never mutated after Finalize.
type Snapshot struct {
	descriptors []*module.Descriptor
	index       map[string]int
}

// Descriptors returns the descriptors in registration order.
func (s *Snapshot) Descriptors() []*module.Descriptor {
	return s.descriptors
}

// Lookup returns the descriptor registered under id.
func (s *Snapshot) Lookup(id string) (*module.Descriptor, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.descriptors[i], true
}

// Position returns the registration index of id.
func (s *Snapshot) Position(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Len returns the number of descriptors in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.descriptors)
}
