// Package resolver computes the deterministic execution order for a
// finalized registry snapshot.
//
// The order is a topological sort of the dependency graph with a stable
// tie-break: among modules with no relative ordering constraint, original
// registration order wins. The same snapshot therefore always resolves to
// the same order. Resolution runs exactly once per configuration; the
// returned Order is immutable.
package resolver

import (
	"fmt"
	"strings"

	"github.com/vk/framegrid/internal/module"
	"github.com/vk/framegrid/internal/registry"
)

// MissingDependencyError reports a required dependency on an id that is
// not present in the snapshot.
type MissingDependencyError struct {
	From    string
	Missing string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("module %q depends on %q, which is not registered", e.From, e.Missing)
}

// CyclicDependencyError reports a dependency cycle. Cycle holds every id
// on the cycle, in dependency order.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Order is the immutable execution order for one configuration.
type Order struct {
	descriptors []*module.Descriptor
	position    map[string]int
	// deps[i] holds the order positions of the modules descriptors[i]
	// effectively depends on (required deps plus optional deps that are
	// present). Used by the scheduler to derive concurrency stages.
	deps [][]int
}

// Descriptors returns the modules in execution order.
func (o *Order) Descriptors() []*module.Descriptor {
	return o.descriptors
}

// IDs returns the module ids in execution order.
func (o *Order) IDs() []string {
	ids := make([]string, len(o.descriptors))
	for i, d := range o.descriptors {
		ids[i] = d.ID
	}
	return ids
}

// Position returns the execution-order index of id.
func (o *Order) Position(id string) (int, bool) {
	i, ok := o.position[id]
	return i, ok
}

// Dependencies returns the order positions the module at position i
// depends on.
func (o *Order) Dependencies(i int) []int {
	return o.deps[i]
}

// Len returns the number of modules in the order.
func (o *Order) Len() int {
	return len(o.descriptors)
}

// Resolve computes the execution order for a snapshot. It fails with
// *MissingDependencyError when a required dependency is unregistered and
// with *CyclicDependencyError naming the full cycle path when the graph
// is not acyclic. Optional dependencies on unregistered ids are dropped.
func Resolve(snap *registry.Snapshot) (*Order, error) {
	descriptors := snap.Descriptors()
	n := len(descriptors)

	// depsOf[i] holds registration indices module i depends on, after
	// dropping absent optional dependencies.
	depsOf := make([][]int, n)
	for i, d := range descriptors {
		for _, dep := range d.Dependencies {
			j, ok := snap.Position(dep.ID)
			if !ok {
				if dep.Optional {
					continue
				}
				return nil, &MissingDependencyError{From: d.ID, Missing: dep.ID}
			}
			if j == i {
				return nil, &CyclicDependencyError{Cycle: []string{d.ID}}
			}
			depsOf[i] = append(depsOf[i], j)
		}
	}

	indegree := make([]int, n)
	for i := range depsOf {
		indegree[i] = len(depsOf[i])
	}
	dependents := make([][]int, n)
	for i, deps := range depsOf {
		for _, j := range deps {
			dependents[j] = append(dependents[j], i)
		}
	}

	// Stable Kahn: each round picks the lowest registration index among
	// ready modules. Module counts are small, so the linear scan is
	// simpler than a heap and just as deterministic.
	placed := make([]bool, n)
	orderIdx := make([]int, 0, n)
	for len(orderIdx) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, &CyclicDependencyError{Cycle: findCycle(descriptors, depsOf, placed)}
		}
		placed[next] = true
		orderIdx = append(orderIdx, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}

	order := &Order{
		descriptors: make([]*module.Descriptor, n),
		position:    make(map[string]int, n),
		deps:        make([][]int, n),
	}
	regToOrder := make([]int, n)
	for pos, reg := range orderIdx {
		order.descriptors[pos] = descriptors[reg]
		order.position[descriptors[reg].ID] = pos
		regToOrder[reg] = pos
	}
	for pos, reg := range orderIdx {
		for _, depReg := range depsOf[reg] {
			order.deps[pos] = append(order.deps[pos], regToOrder[depReg])
		}
	}
	return order, nil
}

// findCycle walks the unplaced remainder of the graph and extracts one
// full cycle path. A cycle must exist: Kahn stalled with modules left.
func findCycle(descriptors []*module.Descriptor, depsOf [][]int, placed []bool) []string {
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make([]int, len(descriptors))
	var stack []int

	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = onStack
		stack = append(stack, i)
		for _, j := range depsOf[i] {
			if placed[j] || state[j] == done {
				continue
			}
			if state[j] == onStack {
				// Cut the cycle out of the current stack.
				start := 0
				for k, s := range stack {
					if s == j {
						start = k
						break
					}
				}
				cycle := make([]string, 0, len(stack)-start)
				for _, s := range stack[start:] {
					cycle = append(cycle, descriptors[s].ID)
				}
				return cycle
			}
			if c := visit(j); c != nil {
				return c
			}
		}
		state[i] = done
		stack = stack[:len(stack)-1]
		return nil
	}

	for i := range descriptors {
		if !placed[i] && state[i] == unvisited {
			if c := visit(i); c != nil {
				return c
			}
		}
	}
	return nil
}
