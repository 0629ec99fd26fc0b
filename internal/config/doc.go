// Package config defines the unified, format-agnostic model of an engine
// configuration, plus the Loader interface implemented by the concrete
// HCL and YAML loaders. The rest of the core only ever sees the Model;
// how it was written on disk is a loader concern.
package config
