package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/schedlog"
)

// Run drives one full engine lifecycle: init, the frame loop, shutdown.
//
// It returns a non-nil error for configuration-surfaced init failures and
// for update failures escalated by the fatal policy. A normal stop (host
// context cancelled, a module requesting stop through the frame context,
// or the configured frame budget running out) returns nil.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.appConfig.HealthcheckPort > 0 {
		a.healthCheckServer(ctx)
		defer a.closeHealthCheckServer(ctx)
	}

	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("engine failed to start: %w", err)
	}
	a.logger.Info("🚀 Engine running.", "parallel", a.model.Parallel, "policy", a.model.OnUpdateError)

	var ticker *time.Ticker
	if a.model.TickRate > 0 {
		ticker = time.NewTicker(a.model.TickRate)
		defer ticker.Stop()
	}

	var fatal error
	for {
		if ctx.Err() != nil {
			a.logger.Info("Host context cancelled, requesting stop.")
			a.sched.Stop()
		}
		if a.sched.StopRequested() {
			a.logger.Info("Stop requested, leaving frame loop.", "frames", a.sched.FrameCount())
			break
		}
		if a.model.MaxFrames > 0 && a.sched.FrameCount() >= a.model.MaxFrames {
			a.logger.Info("Frame budget reached, requesting stop.", "frames", a.sched.FrameCount())
			a.sched.Stop()
			continue
		}

		if err := a.sched.Frame(ctx); err != nil {
			// Only the fatal policy lets a frame error escape.
			fatal = err
			break
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
			}
		}
	}

	if err := a.sched.Shutdown(ctx); err != nil {
		a.logger.Error("Shutdown did not complete cleanly.", "error", err)
	}
	a.logScheduleSummary()
	a.logger.Info("🏁 Engine stopped.", "frames", a.sched.FrameCount())

	if fatal != nil {
		return fmt.Errorf("engine run failed: %w", fatal)
	}
	return nil
}

// logScheduleSummary dumps per-module totals from the schedule log at
// debug level. No-op when the schedulelog feature is disabled.
func (a *App) logScheduleSummary() {
	if a.recorder == nil {
		return
	}
	totals := make(map[string]time.Duration)
	var order []string
	for _, e := range a.recorder.Entries() {
		if e.Phase != schedlog.PhaseUpdate {
			continue
		}
		if _, seen := totals[e.ModuleID]; !seen {
			order = append(order, e.ModuleID)
		}
		totals[e.ModuleID] += e.Duration
	}
	for _, id := range order {
		a.logger.Debug("Schedule summary.", "module", id, "total_update", totals[id])
	}
}
