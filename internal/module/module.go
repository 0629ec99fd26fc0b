// Package module defines the descriptor contract that every pluggable
// engine subsystem implements. A descriptor carries identity, declared
// dependencies, the FrameContext slots it produces, and the three
// lifecycle behaviors the scheduler drives: init, update, shutdown.
package module

import (
	"context"

	"github.com/vk/framegrid/internal/frame"
)

// InitFunc runs exactly once before the first frame.
type InitFunc func(ctx context.Context) error

// UpdateFunc runs once per frame with the current frame's context view.
type UpdateFunc func(ctx context.Context, fv *frame.View) error

// ShutdownFunc runs exactly once, in reverse execution order, for every
// module whose init succeeded.
type ShutdownFunc func(ctx context.Context) error

// Dependency names another module that must execute earlier in every
// phase. An Optional dependency is dropped silently when the named module
// is not registered; a required one is a configuration error.
type Dependency struct {
	ID       string
	Optional bool
}

// Descriptor is the immutable registration record for one module. It is
// created once during configuration and never mutated afterward; the
// registry owns the only references the core ever follows.
type Descriptor struct {
	// ID is the unique identifier, e.g. "render.backend".
	ID string
	// Name is a human-readable diagnostic string.
	Name string
	// Dependencies lists the modules that must run before this one.
	Dependencies []Dependency
	// Produces lists the FrameContext slots this module is the sole
	// writer of.
	Produces []frame.Slot

	Init     InitFunc
	Update   UpdateFunc
	Shutdown ShutdownFunc
}
