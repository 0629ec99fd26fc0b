package config

import (
	"context"
	"fmt"
	"time"
)

// Failure policies for per-frame update errors.
const (
	// PolicyDegrade marks a failing module degraded and keeps the frame
	// loop running. This is the default.
	PolicyDegrade = "degrade"
	// PolicyFatal escalates any update failure to a full engine shutdown.
	PolicyFatal = "fatal"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads the engine configuration at path and translates it into
	// the format-agnostic model.
	Load(ctx context.Context, path string) (*Model, error)
}

// Model is the unified representation of one engine configuration.
type Model struct {
	// Features holds the enabled feature flags, in file order.
	Features []string
	// OnUpdateError selects the update failure policy, PolicyDegrade or
	// PolicyFatal.
	OnUpdateError string
	// Parallel enables coarse concurrency across independent modules.
	Parallel bool
	// MaxFrames stops the engine after this many frames; 0 means no limit.
	MaxFrames uint64
	// TickRate paces the frame loop; 0 runs frames back to back.
	TickRate time.Duration
	// Modules holds per-module option blocks, keyed by module id.
	Modules map[string]Options
}

// ModuleOptions returns the option block for the given module id, or an
// empty block when none was configured.
func (m *Model) ModuleOptions(id string) Options {
	if opts, ok := m.Modules[id]; ok {
		return opts
	}
	return Options{}
}

// Validate normalizes and checks loader-independent fields.
func (m *Model) Validate() error {
	if m.OnUpdateError == "" {
		m.OnUpdateError = PolicyDegrade
	}
	switch m.OnUpdateError {
	case PolicyDegrade, PolicyFatal:
	default:
		return fmt.Errorf("invalid on_update_error %q: must be %q or %q", m.OnUpdateError, PolicyDegrade, PolicyFatal)
	}
	return nil
}
