// Package window is the platform windowing and input module. It owns the
// (simulated) OS window, pumps platform events once per frame, and
// publishes the input snapshot every downstream module consumes.
package window

import (
	"context"
	"fmt"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
)

// ModuleID is the id the window module registers under.
const ModuleID = "platform.window"

// Slots produced by this module.
const (
	// SlotEvents carries the Events struct for the current frame.
	SlotEvents frame.Slot = "platform.events"
	// SlotInput carries the Input snapshot for the current frame.
	SlotInput frame.Slot = "platform.input"
)

// Events is the per-frame platform event summary.
type Events struct {
	Resized        bool
	Width          int
	Height         int
	CloseRequested bool
}

// Input is the per-frame input snapshot. The stub pump produces an empty
// snapshot; a real backend fills it from the OS queue.
type Input struct {
	Frame        uint64
	KeysDown     []string
	PointerX     float64
	PointerY     float64
	PointerValid bool
}

// Module registers the window module with the feature gate.
type Module struct{}

// Register declares the graphics flag and attaches the window provider.
func (m *Module) Register(g *featuregate.Gate) {
	g.Declare("graphics")
	g.Provide("graphics", build)
}

func build(cfg *config.Model) ([]*module.Descriptor, error) {
	opts := cfg.ModuleOptions(ModuleID)
	title, err := opts.String("title", "framegrid")
	if err != nil {
		return nil, err
	}
	width, err := opts.Int("width", 1280)
	if err != nil {
		return nil, err
	}
	height, err := opts.Int("height", 720)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("module %q: window dimensions must be positive, got %dx%d", ModuleID, width, height)
	}

	w := &platformWindow{title: title, width: int(width), height: int(height)}
	return []*module.Descriptor{{
		ID:           ModuleID,
		Name:         "platform window",
		Dependencies: nil,
		Produces:     []frame.Slot{SlotEvents, SlotInput},
		Init:         w.init,
		Update:       w.update,
		Shutdown:     w.shutdown,
	}}, nil
}

// platformWindow owns the window state. The real OS surface is out of
// scope for the core; this implementation models the lifecycle contract
// and the event pump.
type platformWindow struct {
	title  string
	width  int
	height int
	open   bool
	// closing is set by the platform event pump when the user closes the
	// window; the simulated pump never sets it on its own.
	closing bool
}

func (w *platformWindow) init(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Opening window.", "title", w.title, "width", w.width, "height", w.height)
	w.open = true
	return nil
}

func (w *platformWindow) update(ctx context.Context, fv *frame.View) error {
	if !w.open {
		return fmt.Errorf("window is not open")
	}

	events := Events{Width: w.width, Height: w.height, CloseRequested: w.closing}
	// The surface is created during the first frame, so downstream
	// modules see it as an initial resize.
	if fv.Frame() == 1 {
		events.Resized = true
	}
	if events.CloseRequested {
		fv.RequestStop()
	}
	if err := fv.Put(SlotEvents, events); err != nil {
		return err
	}
	return fv.Put(SlotInput, Input{Frame: fv.Frame()})
}

func (w *platformWindow) shutdown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Closing window.", "title", w.title)
	w.open = false
	return nil
}
