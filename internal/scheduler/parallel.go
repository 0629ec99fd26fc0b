package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vk/framegrid/internal/resolver"
	"github.com/vk/framegrid/internal/schedlog"
)

// stages groups execution-order positions into dependency levels: a
// module's level is one past the deepest of its dependencies. Modules in
// one stage have no directed path between them, so they may run
// concurrently without any module observing a dependency mid-frame.
func stages(order *resolver.Order) [][]int {
	levels := make([]int, order.Len())
	maxLevel := 0
	for pos := 0; pos < order.Len(); pos++ {
		level := 0
		for _, dep := range order.Dependencies(pos) {
			if levels[dep]+1 > level {
				level = levels[dep] + 1
			}
		}
		levels[pos] = level
		if level > maxLevel {
			maxLevel = level
		}
	}
	out := make([][]int, maxLevel+1)
	for pos, level := range levels {
		out[level] = append(out[level], pos)
	}
	return out
}

// frameStaged runs one update pass with each stage's modules executing
// concurrently. Observer entries and failure handling are applied after
// the stage completes, in execution-order position, so the schedule log
// stays deterministic regardless of wall-clock completion order. A fatal
// failure still lets the stage finish: no module is cancelled mid-call.
func (s *Scheduler) frameStaged(ctx context.Context) error {
	var fatal *UpdateError
	for _, stage := range s.stages {
		entries := make([]schedlog.Entry, len(stage))
		errs := make([]error, len(stage))

		g, gctx := errgroup.WithContext(ctx)
		for k, pos := range stage {
			if s.degraded[pos] {
				continue
			}
			k, pos := k, pos
			g.Go(func() error {
				entries[k], errs[k] = s.updateTimed(gctx, pos)
				return nil
			})
		}
		// Workers never return errors through the group; Wait is a barrier.
		_ = g.Wait()

		for k, pos := range stage {
			if s.degraded[pos] {
				continue
			}
			if s.obs != nil && entries[k].ModuleID != "" {
				s.obs.Record(entries[k])
			}
			if errs[k] == nil || fatal != nil {
				continue
			}
			if failErr := s.handleUpdateError(ctx, pos, errs[k]); failErr != nil {
				fatal = failErr
			}
		}
		if fatal != nil {
			break
		}
	}
	if fatal != nil {
		s.setState(ShuttingDown)
		return fatal
	}
	return nil
}

// updateTimed runs one module's update and returns the entry to record.
// Timestamps are only captured when an observer is attached; the entry's
// ModuleID stays empty for modules without an update behavior.
func (s *Scheduler) updateTimed(ctx context.Context, pos int) (schedlog.Entry, error) {
	d := s.order.Descriptors()[pos]
	if d.Update == nil {
		return schedlog.Entry{}, nil
	}
	if s.obs == nil {
		return schedlog.Entry{}, d.Update(ctx, s.views[pos])
	}
	start := time.Now()
	err := d.Update(ctx, s.views[pos])
	return schedlog.Entry{
		ModuleID: d.ID,
		Phase:    schedlog.PhaseUpdate,
		Frame:    s.frameNum.Load(),
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	}, err
}
