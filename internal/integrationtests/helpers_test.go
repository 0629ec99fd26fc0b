package integrationtests

import (
	"context"
	"errors"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/featuregate"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
)

// failingInitModule registers a "testmod" feature whose single module
// fails its init call.
type failingInitModule struct{}

func (m *failingInitModule) Register(g *featuregate.Gate) {
	g.Declare("testmod")
	g.Provide("testmod", func(cfg *config.Model) ([]*module.Descriptor, error) {
		return []*module.Descriptor{{
			ID:   "test.broken",
			Init: func(ctx context.Context) error { return errors.New("boom") },
		}}, nil
	})
}

// flakyUpdateModule registers a "testmod" feature whose module fails on
// its second update pass.
type flakyUpdateModule struct {
	calls int
}

func (m *flakyUpdateModule) Register(g *featuregate.Gate) {
	g.Declare("testmod")
	g.Provide("testmod", func(cfg *config.Model) ([]*module.Descriptor, error) {
		return []*module.Descriptor{{
			ID: "test.flaky",
			Update: func(ctx context.Context, fv *frame.View) error {
				m.calls++
				if m.calls == 2 {
					return errors.New("transient failure")
				}
				return nil
			},
		}}, nil
	})
}
