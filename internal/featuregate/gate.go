// Package featuregate maps enabled feature flags to the module
// descriptors that should be registered for one engine instance.
//
// The gate runs once, before the registry is finalized, and has no
// runtime footprint after that. It is deterministic: the same flag set
// always yields the same descriptor set, in the same order. Cross-flag
// implications are validated, never silently enabled: enabling "2d"
// without "graphics" is a configuration error, not an implicit enable.
package featuregate

import (
	"fmt"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/module"
)

// InvalidConfigurationError reports a flag the gate cannot honor: either
// an unknown flag, or a flag whose implied flag is absent.
type InvalidConfigurationError struct {
	Flag string
	// Implied names the missing implication; empty for unknown flags.
	Implied string
}

func (e *InvalidConfigurationError) Error() string {
	if e.Implied != "" {
		return fmt.Sprintf("feature %q implies %q, which is not enabled", e.Flag, e.Implied)
	}
	return fmt.Sprintf("unknown feature flag %q", e.Flag)
}

// BuildFunc constructs the descriptors a provider contributes. It
// receives the full config model so a module can read its own option
// block.
type BuildFunc func(cfg *config.Model) ([]*module.Descriptor, error)

// Module is implemented by every built-in module package. Register is
// called once at startup to declare flags and attach providers.
type Module interface {
	Register(g *Gate)
}

// Gate accumulates flag declarations and descriptor providers during
// startup, then selects descriptors for a configuration exactly once.
type Gate struct {
	flags     map[string][]string // flag -> implied flags
	flagOrder []string
	providers []provider
}

type provider struct {
	flag  string
	build BuildFunc
}

// New creates an empty gate.
func New() *Gate {
	return &Gate{flags: make(map[string][]string)}
}

// Declare makes a flag known to the gate, optionally with implied flags.
// Declaring the same flag twice merges the implications, so several
// module packages can share one flag.
func (g *Gate) Declare(flag string, implies ...string) {
	existing, known := g.flags[flag]
	if !known {
		g.flagOrder = append(g.flagOrder, flag)
	}
	for _, imp := range implies {
		if !contains(existing, imp) {
			existing = append(existing, imp)
		}
	}
	g.flags[flag] = existing
}

// Provide attaches a descriptor provider to a declared flag. Providers
// for one flag run in registration order.
func (g *Gate) Provide(flag string, build BuildFunc) {
	if _, known := g.flags[flag]; !known {
		panic(fmt.Sprintf("featuregate: provider for undeclared flag %q", flag))
	}
	g.providers = append(g.providers, provider{flag: flag, build: build})
}

// Enabled reports whether flag is in the model's feature set.
func Enabled(cfg *config.Model, flag string) bool {
	return contains(cfg.Features, flag)
}

// Descriptors selects and builds the descriptor set for the given
// configuration. Unknown flags and missing implications fail with
// *InvalidConfigurationError before any descriptor is built.
func (g *Gate) Descriptors(cfg *config.Model) ([]*module.Descriptor, error) {
	enabled := make(map[string]bool, len(cfg.Features))
	for _, flag := range cfg.Features {
		if _, known := g.flags[flag]; !known {
			return nil, &InvalidConfigurationError{Flag: flag}
		}
		enabled[flag] = true
	}
	for _, flag := range cfg.Features {
		for _, implied := range g.flags[flag] {
			if !enabled[implied] {
				return nil, &InvalidConfigurationError{Flag: flag, Implied: implied}
			}
		}
	}

	var descriptors []*module.Descriptor
	for _, p := range g.providers {
		if !enabled[p.flag] {
			continue
		}
		built, err := p.build(cfg)
		if err != nil {
			return nil, fmt.Errorf("building modules for feature %q: %w", p.flag, err)
		}
		descriptors = append(descriptors, built...)
	}
	return descriptors, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
