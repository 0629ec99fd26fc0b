package config

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Options is one module's option block: attribute name to value. Loaders
// produce cty values so that both HCL expressions and YAML scalars land
// in a single type system with well-defined conversions.
type Options map[string]cty.Value

// String returns the option as a string, or def when absent.
func (o Options) String(name, def string) (string, error) {
	v, ok := o[name]
	if !ok {
		return def, nil
	}
	var out string
	if err := decode(name, v, cty.String, &out); err != nil {
		return def, err
	}
	return out, nil
}

// Int returns the option as an int64, or def when absent.
func (o Options) Int(name string, def int64) (int64, error) {
	v, ok := o[name]
	if !ok {
		return def, nil
	}
	var out int64
	if err := decode(name, v, cty.Number, &out); err != nil {
		return def, err
	}
	return out, nil
}

// Bool returns the option as a bool, or def when absent.
func (o Options) Bool(name string, def bool) (bool, error) {
	v, ok := o[name]
	if !ok {
		return def, nil
	}
	var out bool
	if err := decode(name, v, cty.Bool, &out); err != nil {
		return def, err
	}
	return out, nil
}

// decode converts a raw option value to the wanted cty type and binds it
// to the Go target.
func decode(name string, v cty.Value, want cty.Type, target any) error {
	converted, err := convert.Convert(v, want)
	if err != nil {
		return fmt.Errorf("option %q: %w", name, err)
	}
	if err := gocty.FromCtyValue(converted, target); err != nil {
		return fmt.Errorf("option %q: %w", name, err)
	}
	return nil
}
