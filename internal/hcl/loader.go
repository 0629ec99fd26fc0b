// Package hcl is the HCL implementation of config.Loader. It parses an
// engine configuration file and translates it into the format-agnostic
// config.Model consumed by the rest of the core.
package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
)

// engineFile is the top-level structure of an engine config file.
type engineFile struct {
	Engine  *engineBlock   `hcl:"engine,block"`
	Modules []*moduleBlock `hcl:"module,block"`
}

// engineBlock is the `engine { ... }` block.
type engineBlock struct {
	Features      []string `hcl:"features,optional"`
	OnUpdateError string   `hcl:"on_update_error,optional"`
	Parallel      bool     `hcl:"parallel,optional"`
	MaxFrames     int64    `hcl:"max_frames,optional"`
	TickRateMS    int64    `hcl:"tick_rate_ms,optional"`
}

// moduleBlock is one `module "<id>" { options { ... } }` block.
type moduleBlock struct {
	ID      string        `hcl:"id,label"`
	Options *optionsBlock `hcl:"options,block"`
}

// optionsBlock captures free-form option attributes for one module.
type optionsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Loader implements config.Loader for HCL files.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses and translates a single engine config file.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading HCL engine config.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", path, diags.Error())
	}

	var parsed engineFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", path, diags.Error())
	}
	if parsed.Engine == nil {
		return nil, fmt.Errorf("config %s has no engine block", path)
	}

	model := &config.Model{
		Features:      parsed.Engine.Features,
		OnUpdateError: parsed.Engine.OnUpdateError,
		Parallel:      parsed.Engine.Parallel,
		Modules:       make(map[string]config.Options),
	}
	if parsed.Engine.MaxFrames > 0 {
		model.MaxFrames = uint64(parsed.Engine.MaxFrames)
	}
	if parsed.Engine.TickRateMS > 0 {
		model.TickRate = time.Duration(parsed.Engine.TickRateMS) * time.Millisecond
	}

	for _, mb := range parsed.Modules {
		if _, dup := model.Modules[mb.ID]; dup {
			return nil, fmt.Errorf("config %s declares module %q twice", path, mb.ID)
		}
		opts, err := decodeOptions(mb)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		model.Modules[mb.ID] = opts
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL engine config loaded.", "features", model.Features, "modules", len(model.Modules))
	return model, nil
}

// decodeOptions evaluates the attributes of one options block into cty
// values. Option expressions must be constant; there is no eval context.
func decodeOptions(mb *moduleBlock) (config.Options, error) {
	opts := config.Options{}
	if mb.Options == nil {
		return opts, nil
	}
	attrs, diags := mb.Options.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("module %q options: %s", mb.ID, diags.Error())
	}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("module %q option %q: %s", mb.ID, name, diags.Error())
		}
		if val == cty.NilVal {
			continue
		}
		opts[name] = val
	}
	return opts, nil
}
