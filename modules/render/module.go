// Package render is the rendering backend module. It owns the (stub)
// graphics device and publishes the frame render target that concrete
// render passes draw into.
package render

import (
	"context"
	"fmt"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
	"github.com/vk/framegrid/modules/window"
)

// ModuleID is the id the render backend registers under.
const ModuleID = "render.backend"

// SlotTarget carries the Target for the current frame.
const SlotTarget frame.Slot = "render.target"

// Target is the per-frame render surface description passes draw into.
type Target struct {
	Frame  uint64
	Width  int
	Height int
}

// Module registers the render backend with the feature gate.
type Module struct{}

// Register attaches the backend provider to the graphics flag. The flag
// itself is shared with the window module.
func (m *Module) Register(g *featuregate.Gate) {
	g.Declare("graphics")
	g.Provide("graphics", build)
}

func build(cfg *config.Model) ([]*module.Descriptor, error) {
	opts := cfg.ModuleOptions(ModuleID)
	adapter, err := opts.String("adapter", "default")
	if err != nil {
		return nil, err
	}

	b := &backend{adapter: adapter}
	return []*module.Descriptor{{
		ID:   ModuleID,
		Name: "render backend",
		Dependencies: []module.Dependency{
			{ID: window.ModuleID},
		},
		Produces: []frame.Slot{SlotTarget},
		Init:     b.init,
		Update:   b.update,
		Shutdown: b.shutdown,
	}}, nil
}

// backend owns the device state. Device creation and draw submission are
// out of scope; the module models the surface lifecycle and the target
// slot contract.
type backend struct {
	adapter string
	device  bool
	width   int
	height  int
}

func (b *backend) init(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Creating graphics device.", "adapter", b.adapter)
	b.device = true
	return nil
}

func (b *backend) update(ctx context.Context, fv *frame.View) error {
	if !b.device {
		return fmt.Errorf("graphics device not created")
	}

	// The window module precedes us in every frame, so its events slot
	// is always populated by now.
	raw, ok := fv.Get(window.SlotEvents)
	if !ok {
		return fmt.Errorf("slot %q absent; window module did not run", window.SlotEvents)
	}
	events := raw.(window.Events)
	if events.Resized {
		ctxlog.FromContext(ctx).Debug("Resizing swapchain.", "width", events.Width, "height", events.Height)
		b.width, b.height = events.Width, events.Height
	}

	return fv.Put(SlotTarget, Target{Frame: fv.Frame(), Width: b.width, Height: b.height})
}

func (b *backend) shutdown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Destroying graphics device.", "adapter", b.adapter)
	b.device = false
	return nil
}
