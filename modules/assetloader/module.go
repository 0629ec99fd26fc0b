// Package assetloader is the disk asset-streaming module. Loading is
// modeled as "not yet ready" across frames rather than as a blocking
// call: the atlas slot stays absent until the load completes, and
// consumers simply retry on later frames.
package assetloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/ctxlog"
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/fsutil"
	"github.com/vk/framegrid/internal/module"
)

// ModuleID is the id the asset loader registers under.
const ModuleID = "asset.loader"

// SlotAtlas carries the Atlas once loading has completed. Absent while
// assets are still streaming in.
const SlotAtlas frame.Slot = "asset.atlas"

// Atlas is the loaded sprite-sheet index: sprite name to sheet path.
type Atlas struct {
	Sprites map[string]string
}

// Module registers the asset loader with the feature gate.
type Module struct{}

// Register declares the asset_loader flag and attaches the provider.
func (m *Module) Register(g *featuregate.Gate) {
	g.Declare("asset_loader")
	g.Provide("asset_loader", build)
}

func build(cfg *config.Model) ([]*module.Descriptor, error) {
	opts := cfg.ModuleOptions(ModuleID)
	root, err := opts.String("root", "assets")
	if err != nil {
		return nil, err
	}
	warmup, err := opts.Int("warmup_frames", 2)
	if err != nil {
		return nil, err
	}
	if warmup < 0 {
		return nil, fmt.Errorf("module %q: warmup_frames must not be negative", ModuleID)
	}

	l := &loader{root: root, remaining: warmup}
	return []*module.Descriptor{{
		ID:       ModuleID,
		Name:     "asset loader",
		Produces: []frame.Slot{SlotAtlas},
		Init:     l.init,
		Update:   l.update,
		Shutdown: l.shutdown,
	}}, nil
}

// loader streams the asset root in. The warmup counter stands in for real
// disk latency; the index itself comes from walking the root directory.
type loader struct {
	root      string
	remaining int64
	atlas     *Atlas
}

func (l *loader) init(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if _, err := os.Stat(l.root); err != nil {
		// A missing root is an empty atlas, not a startup failure.
		logger.Warn("Asset root not found, starting with an empty atlas.", "root", l.root)
		l.root = ""
		return nil
	}
	logger.Info("Streaming assets.", "root", l.root)
	return nil
}

func (l *loader) update(ctx context.Context, fv *frame.View) error {
	if l.atlas == nil {
		if l.remaining > 0 {
			// Still loading; the slot stays absent this frame.
			l.remaining--
			return nil
		}
		atlas, err := l.buildAtlas()
		if err != nil {
			return err
		}
		l.atlas = atlas
		ctxlog.FromContext(ctx).Info("Asset atlas ready.", "sprites", len(atlas.Sprites), "frame", fv.Frame())
	}
	return fv.Put(SlotAtlas, *l.atlas)
}

func (l *loader) shutdown(ctx context.Context) error {
	ctxlog.FromContext(ctx).Info("Releasing asset atlas.")
	l.atlas = nil
	return nil
}

// buildAtlas indexes every sprite sheet under the root directory.
func (l *loader) buildAtlas() (*Atlas, error) {
	atlas := &Atlas{Sprites: make(map[string]string)}
	if l.root == "" {
		return atlas, nil
	}
	paths, err := fsutil.FindFilesByExtension(l.root, ".png")
	if err != nil {
		return nil, fmt.Errorf("scanning asset root %s: %w", l.root, err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		name := filepath.Base(p)
		atlas.Sprites[name[:len(name)-len(filepath.Ext(name))]] = p
	}
	return atlas, nil
}
