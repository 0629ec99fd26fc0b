// Package app assembles one engine instance: it loads the configuration,
// runs the feature gate, finalizes the module registry, resolves the
// execution order, and drives the frame scheduler through a full
// init/update/shutdown run.
package app
