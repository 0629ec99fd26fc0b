// Package sprite2d is the 2D sprite renderer module. It consumes the
// frame's render target and, when present, the asset atlas, and produces
// a z-sorted, size-bounded sprite batch ready for submission.
package sprite2d

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
	"github.com/vk/framegrid/modules/assetloader"
	"github.com/vk/framegrid/modules/render"
)

// ModuleID is the id the 2D renderer registers under.
const ModuleID = "render.sprite2d"

// SlotBatch carries the Batch produced for the current frame.
const SlotBatch frame.Slot = "render.spritebatch"

// maxSpritesPerBatch bounds one batch; anything beyond is deferred to the
// next frame.
const maxSpritesPerBatch = 5000

// Instance is one sprite draw within a batch.
type Instance struct {
	Sprite string
	X, Y   float64
	Z      float64
}

// Batch is the per-frame 2D draw list, sorted by Z then queue order.
type Batch struct {
	Frame     uint64
	Instances []Instance
}

// Module registers the 2D renderer with the feature gate.
type Module struct{}

// Register declares the 2d flag, which implies graphics, and attaches
// the renderer provider.
func (m *Module) Register(g *featuregate.Gate) {
	g.Declare("2d", "graphics")
	g.Provide("2d", build)
}

func build(cfg *config.Model) ([]*module.Descriptor, error) {
	r := &spriteRenderer{}
	return []*module.Descriptor{{
		ID:   ModuleID,
		Name: "2d sprite renderer",
		Dependencies: []module.Dependency{
			{ID: render.ModuleID},
			// Sprites render untextured when the asset loader is not part
			// of this configuration.
			{ID: assetloader.ModuleID, Optional: true},
		},
		Produces: []frame.Slot{SlotBatch},
		Init:     r.init,
		Update:   r.update,
		Shutdown: r.shutdown,
	}}, nil
}

// spriteRenderer accumulates queued sprites across frames and flushes a
// bounded batch each frame. Pipeline and buffer management belong to a
// real backend; the queue and batching contract live here.
type spriteRenderer struct {
	ready bool
	queue []Instance
}

// Queue appends a sprite to be drawn on the next frame the renderer runs.
func (r *spriteRenderer) Queue(inst Instance) {
	r.queue = append(r.queue, inst)
}

func (r *spriteRenderer) init(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("Creating 2D sprite pipeline.")
	r.ready = true
	r.queue = make([]Instance, 0, maxSpritesPerBatch)
	return nil
}

func (r *spriteRenderer) update(ctx context.Context, fv *frame.View) error {
	if !r.ready {
		return fmt.Errorf("sprite pipeline not created")
	}
	raw, ok := fv.Get(render.SlotTarget)
	if !ok {
		return fmt.Errorf("slot %q absent; render backend did not run", render.SlotTarget)
	}
	target := raw.(render.Target)

	// The atlas is optional twice over: the loader may be disabled, and
	// even when enabled it stays absent until streaming completes.
	var atlas assetloader.Atlas
	if rawAtlas, ok := fv.Get(assetloader.SlotAtlas); ok {
		atlas = rawAtlas.(assetloader.Atlas)
	}

	n := len(r.queue)
	if n > maxSpritesPerBatch {
		n = maxSpritesPerBatch
	}
	instances := make([]Instance, n)
	copy(instances, r.queue[:n])
	r.queue = r.queue[:copy(r.queue, r.queue[n:])]

	for i := range instances {
		if _, known := atlas.Sprites[instances[i].Sprite]; !known {
			instances[i].Sprite = ""
		}
	}
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].Z < instances[j].Z
	})

	return fv.Put(SlotBatch, Batch{Frame: target.Frame, Instances: instances})
}

func (r *spriteRenderer) shutdown(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("Destroying 2D sprite pipeline.")
	r.ready = false
	r.queue = nil
	return nil
}
