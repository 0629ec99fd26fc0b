package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
	"github.com/vk/framegrid/internal/resolver"
	"github.com/vk/framegrid/internal/schedlog"
)

// Options configures a scheduler instance.
type Options struct {
	// Policy is the update failure policy, config.PolicyDegrade (default)
	// or config.PolicyFatal.
	Policy string
	// Parallel runs independent modules of one frame concurrently.
	Parallel bool
	// Observer receives timing entries. A nil observer disables timestamp
	// capture entirely.
	Observer schedlog.Observer
}

// Scheduler executes modules in execution order through the init, update
// and shutdown phases, owning the shared frame context and the lifecycle
// state machine.
type Scheduler struct {
	order  *resolver.Order
	fc     *frame.Context
	views  []*frame.View
	obs    schedlog.Observer
	policy string

	// stages groups order positions into dependency levels; nil unless
	// the parallel option is set.
	stages [][]int

	// state and frameNum are read by host goroutines (the healthcheck
	// handler among them) while the frame loop runs.
	state       atomic.Int32
	frameNum    atomic.Uint64
	initialized []bool
	degraded    []bool
}

// New builds a scheduler for a resolved execution order. It derives the
// slot producer table from the descriptors and fails when two modules
// declare the same slot.
func New(order *resolver.Order, opts Options) (*Scheduler, error) {
	table := frame.NewTable()
	for _, d := range order.Descriptors() {
		for _, slot := range d.Produces {
			if err := table.Declare(slot, d.ID); err != nil {
				return nil, err
			}
		}
	}

	if opts.Policy == "" {
		opts.Policy = config.PolicyDegrade
	}

	fc := frame.NewContext(table)
	views := make([]*frame.View, order.Len())
	for i, d := range order.Descriptors() {
		views[i] = fc.For(d.ID)
	}

	s := &Scheduler{
		order:       order,
		fc:          fc,
		views:       views,
		obs:         opts.Observer,
		policy:      opts.Policy,
		initialized: make([]bool, order.Len()),
		degraded:    make([]bool, order.Len()),
	}
	if opts.Parallel {
		s.stages = stages(order)
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// FrameCount returns the number of completed update passes.
func (s *Scheduler) FrameCount() uint64 {
	return s.frameNum.Load()
}

// Stop requests a cooperative stop: no new frame starts after the current
// one completes. Modules observe the same flag through the frame context.
func (s *Scheduler) Stop() {
	s.fc.RequestStop()
}

// StopRequested reports whether a stop has been requested by the host or
// by any module.
func (s *Scheduler) StopRequested() bool {
	return s.fc.StopRequested()
}

// Degraded reports whether the module with the given id has been marked
// degraded.
func (s *Scheduler) Degraded(id string) bool {
	pos, ok := s.order.Position(id)
	if !ok {
		return false
	}
	return s.degraded[pos]
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// Start runs the init phase. On the first failure it shuts down every
// already-initialized module in reverse order, lands in Stopped, and
// returns an *InitError aggregating the failure and the rollback outcome.
func (s *Scheduler) Start(ctx context.Context) error {
	if st := s.State(); st != Uninitialized {
		return fmt.Errorf("start: scheduler is %s, not %s", st, Uninitialized)
	}
	s.setState(Initializing)
	logger := ctxlog.FromContext(ctx)

	for i, d := range s.order.Descriptors() {
		logger.Debug("Initializing module.", "module", d.ID)
		if err := s.runPhase(ctx, i, schedlog.PhaseInit); err != nil {
			logger.Error("Module init failed, rolling back.", "module", d.ID, "error", err)
			rollback := s.rollback(ctx, i)
			s.setState(Stopped)
			return &InitError{ModuleID: d.ID, Err: err, RollbackErrs: rollback}
		}
		s.initialized[i] = true
	}

	s.setState(Running)
	logger.Info("All modules initialized.", "count", s.order.Len())
	return nil
}

// rollback shuts down modules [0, failed) in reverse order and returns
// any shutdown failures.
func (s *Scheduler) rollback(ctx context.Context, failed int) []error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for i := failed - 1; i >= 0; i-- {
		if !s.initialized[i] {
			continue
		}
		s.initialized[i] = false
		if err := s.runPhase(ctx, i, schedlog.PhaseShutdown); err != nil {
			d := s.order.Descriptors()[i]
			logger.Error("Rollback shutdown failed.", "module", d.ID, "error", err)
			errs = append(errs, &ShutdownError{ModuleID: d.ID, Err: err})
		}
	}
	return errs
}

// Frame runs one update pass over a freshly reset frame context. Under
// the degrade policy it always returns nil; under the fatal policy the
// first update failure transitions the scheduler to ShuttingDown and is
// returned as an *UpdateError. The in-flight frame always completes its
// remaining non-failing modules before a stop takes effect.
func (s *Scheduler) Frame(ctx context.Context) error {
	if st := s.State(); st != Running {
		return fmt.Errorf("frame: scheduler is %s, not %s", st, Running)
	}
	s.fc.Reset(s.frameNum.Add(1))

	if s.stages != nil {
		return s.frameStaged(ctx)
	}

	var fatal *UpdateError
	for i := range s.order.Descriptors() {
		if s.degraded[i] {
			continue
		}
		err := s.runPhase(ctx, i, schedlog.PhaseUpdate)
		if err == nil {
			continue
		}
		if failErr := s.handleUpdateError(ctx, i, err); failErr != nil {
			fatal = failErr
			break
		}
	}
	if fatal != nil {
		s.setState(ShuttingDown)
		return fatal
	}
	return nil
}

// handleUpdateError applies the failure policy to one update error. It
// returns a non-nil *UpdateError only when the policy escalates.
func (s *Scheduler) handleUpdateError(ctx context.Context, pos int, err error) *UpdateError {
	d := s.order.Descriptors()[pos]
	logger := ctxlog.FromContext(ctx)
	frame := s.frameNum.Load()
	uerr := &UpdateError{ModuleID: d.ID, Frame: frame, Err: err}
	if s.policy == config.PolicyFatal {
		logger.Error("Module update failed, escalating to shutdown.", "module", d.ID, "frame", frame, "error", err)
		return uerr
	}
	s.degraded[pos] = true
	logger.Warn("Module update failed, marking degraded.", "module", d.ID, "frame", frame, "error", err)
	return nil
}

// Shutdown runs the shutdown phase: reverse execution order, best effort,
// over every successfully initialized module. Individual failures are
// logged and observed but never block the remaining modules. Shutdown is
// a no-op once the scheduler is Stopped.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	switch st := s.State(); st {
	case Running, ShuttingDown:
	case Stopped:
		return nil
	default:
		return fmt.Errorf("shutdown: scheduler is %s", st)
	}
	s.setState(ShuttingDown)
	logger := ctxlog.FromContext(ctx)

	descriptors := s.order.Descriptors()
	for i := len(descriptors) - 1; i >= 0; i-- {
		if !s.initialized[i] {
			continue
		}
		s.initialized[i] = false
		if err := s.runPhase(ctx, i, schedlog.PhaseShutdown); err != nil {
			logger.Error("Module shutdown failed.", "module", descriptors[i].ID, "error", err)
		}
	}

	s.setState(Stopped)
	logger.Info("All modules shut down.", "frames", s.frameNum.Load())
	return nil
}

// runPhase invokes one lifecycle call, timing it when an observer is
// attached. A nil lifecycle func is a no-op and produces no entry.
func (s *Scheduler) runPhase(ctx context.Context, pos int, phase schedlog.Phase) error {
	d := s.order.Descriptors()[pos]
	fn := lifecycleFunc(d, s.views[pos], phase)
	if fn == nil {
		return nil
	}
	if s.obs == nil {
		return fn(ctx)
	}
	start := time.Now()
	err := fn(ctx)
	s.obs.Record(schedlog.Entry{
		ModuleID: d.ID,
		Phase:    phase,
		Frame:    s.frameNum.Load(),
		Start:    start,
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}

// lifecycleFunc selects the descriptor behavior for a phase, binding the
// update to the module's frame context view.
func lifecycleFunc(d *module.Descriptor, fv *frame.View, phase schedlog.Phase) func(context.Context) error {
	switch phase {
	case schedlog.PhaseInit:
		if d.Init == nil {
			return nil
		}
		return d.Init
	case schedlog.PhaseUpdate:
		if d.Update == nil {
			return nil
		}
		return func(ctx context.Context) error { return d.Update(ctx, fv) }
	case schedlog.PhaseShutdown:
		if d.Shutdown == nil {
			return nil
		}
		return d.Shutdown
	default:
		return nil
	}
}
