// Package yamlcfg is the YAML implementation of config.Loader, producing
// the same format-agnostic model as the HCL loader for deployments that
// prefer YAML configuration.
package yamlcfg

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
)

// yamlFile mirrors the engine config surface in YAML.
type yamlFile struct {
	Engine struct {
		Features      []string `yaml:"features"`
		OnUpdateError string   `yaml:"on_update_error"`
		Parallel      bool     `yaml:"parallel"`
		MaxFrames     uint64   `yaml:"max_frames"`
		TickRateMS    int64    `yaml:"tick_rate_ms"`
	} `yaml:"engine"`
	Modules map[string]struct {
		Options map[string]any `yaml:"options"`
	} `yaml:"modules"`
}

// Loader implements config.Loader for YAML files.
type Loader struct{}

// NewLoader creates a new YAML loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses and translates a single engine config file.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading YAML engine config.", "path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var parsed yamlFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}

	model := &config.Model{
		Features:      parsed.Engine.Features,
		OnUpdateError: parsed.Engine.OnUpdateError,
		Parallel:      parsed.Engine.Parallel,
		MaxFrames:     parsed.Engine.MaxFrames,
		Modules:       make(map[string]config.Options),
	}
	if parsed.Engine.TickRateMS > 0 {
		model.TickRate = time.Duration(parsed.Engine.TickRateMS) * time.Millisecond
	}

	for id, mb := range parsed.Modules {
		opts := config.Options{}
		for name, v := range mb.Options {
			val, err := scalarToCty(v)
			if err != nil {
				return nil, fmt.Errorf("config %s: module %q option %q: %w", path, id, name, err)
			}
			opts[name] = val
		}
		model.Modules[id] = opts
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("YAML engine config loaded.", "features", model.Features, "modules", len(model.Modules))
	return model, nil
}

// scalarToCty converts the scalar types yaml.v3 produces into cty values,
// matching what the HCL loader yields for equivalent expressions.
func scalarToCty(v any) (cty.Value, error) {
	switch t := v.(type) {
	case string:
		return cty.StringVal(t), nil
	case bool:
		return cty.BoolVal(t), nil
	case int:
		return cty.NumberIntVal(int64(t)), nil
	case int64:
		return cty.NumberIntVal(t), nil
	case float64:
		return cty.NumberFloatVal(t), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported option type %T", v)
	}
}
