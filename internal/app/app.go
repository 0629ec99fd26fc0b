package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/internal/registry"
	"github.com/vk/framegrid/internal/resolver"
	"github.com/vk/framegrid/internal/schedlog"
	"github.com/vk/framegrid/internal/scheduler"
)

// App encapsulates one engine instance's dependencies and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	runID  string

	appConfig *Config
	model     *config.Model
	sched     *scheduler.Scheduler
	// recorder is non-nil only when the schedulelog feature is enabled.
	recorder *schedlog.Recorder

	httpServer *http.Server
}

// NewApp assembles a fully configured engine instance: isolated logger,
// loaded config, gated descriptor set, finalized registry, resolved
// execution order, and a ready scheduler. Every configuration error
// (unknown flag, missing implication, duplicate module, missing or cyclic
// dependency, duplicate slot producer) surfaces here, before any module
// executes.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, mods ...featuregate.Module) (*App, error) {
	runID := uuid.NewString()
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded into unified model.", "features", model.Features)

	gate := featuregate.New()
	// schedulelog selects the observer below; it contributes no modules.
	gate.Declare("schedulelog")
	if len(mods) == 0 {
		mods = coreModules
	}
	for _, mod := range mods {
		mod.Register(gate)
	}
	logger.Debug("All built-in modules registered with the feature gate.", "count", len(mods))

	descriptors, err := gate.Descriptors(model)
	if err != nil {
		return nil, fmt.Errorf("feature selection failed: %w", err)
	}

	reg := registry.New()
	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return nil, fmt.Errorf("module registration failed: %w", err)
		}
	}
	snap := reg.Finalize()
	logger.Debug("Registry finalized.", "modules", snap.Len())

	order, err := resolver.Resolve(snap)
	if err != nil {
		return nil, fmt.Errorf("dependency resolution failed: %w", err)
	}
	logger.Info("Execution order resolved.", "order", order.IDs())

	var recorder *schedlog.Recorder
	var observer schedlog.Observer
	if featuregate.Enabled(model, "schedulelog") {
		recorder = schedlog.NewRecorder()
		observer = recorder
	}

	sched, err := scheduler.New(order, scheduler.Options{
		Policy:   model.OnUpdateError,
		Parallel: model.Parallel,
		Observer: observer,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler construction failed: %w", err)
	}

	return &App{
		outW:      outW,
		logger:    logger,
		runID:     runID,
		appConfig: appConfig,
		model:     model,
		sched:     sched,
		recorder:  recorder,
	}, nil
}

// Scheduler returns the app's scheduler. This is primarily for testing.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// ScheduleLog returns the recorder when the schedulelog feature is
// enabled, or nil.
func (a *App) ScheduleLog() *schedlog.Recorder {
	return a.recorder
}

// Model returns the loaded configuration model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
