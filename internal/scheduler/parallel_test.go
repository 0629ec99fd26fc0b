package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
	"github.com/vk/framegrid/internal/registry"
	"github.com/vk/framegrid/internal/resolver"
	"github.com/vk/framegrid/internal/schedlog"
)

func diamondOrder(t *testing.T) *resolver.Order {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Register(&module.Descriptor{ID: "a"}))
	require.NoError(t, r.Register(&module.Descriptor{ID: "b", Dependencies: []module.Dependency{on("a")}}))
	require.NoError(t, r.Register(&module.Descriptor{ID: "c", Dependencies: []module.Dependency{on("a")}}))
	require.NoError(t, r.Register(&module.Descriptor{ID: "d", Dependencies: []module.Dependency{on("b"), on("c")}}))
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)
	return order
}

func TestStagesGroupIndependentModules(t *testing.T) {
	order := diamondOrder(t)
	got := stages(order)
	require.Len(t, got, 3)

	name := func(pos int) string { return order.Descriptors()[pos].ID }
	assert.Equal(t, []string{"a"}, []string{name(got[0][0])})
	assert.Equal(t, []string{"b", "c"}, []string{name(got[1][0]), name(got[1][1])})
	assert.Equal(t, []string{"d"}, []string{name(got[2][0])})
}

func TestStagesOfIndependentModulesIsSingleLevel(t *testing.T) {
	r := registry.New()
	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, r.Register(&module.Descriptor{ID: id}))
	}
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)

	got := stages(order)
	require.Len(t, got, 1)
	assert.Len(t, got[0], 3)
}

// staggered builds a diamond whose middle modules finish out of execution
// order on purpose: b sleeps longer than c.
func staggeredScheduler(t *testing.T, recorder schedlog.Observer, failB bool) *Scheduler {
	t.Helper()
	log := &eventLog{}
	mods := []testModule{
		{id: "a"},
		{id: "b", deps: []module.Dependency{on("a")}},
		{id: "c", deps: []module.Dependency{on("a")}},
		{id: "d", deps: []module.Dependency{on("b"), on("c")}},
	}
	if failB {
		mods[1].failUpdateOn = 1
	}
	r := registry.New()
	for _, m := range mods {
		d := m.descriptor(log)
		if d.ID == "b" {
			inner := d.Update
			d.Update = func(ctx context.Context, fv *frame.View) error {
				time.Sleep(20 * time.Millisecond)
				return inner(ctx, fv)
			}
		}
		require.NoError(t, r.Register(d))
	}
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)
	s, err := New(order, Options{Parallel: true, Observer: recorder})
	require.NoError(t, err)
	return s
}

func TestParallelFrameReportsEntriesInExecutionOrder(t *testing.T) {
	recorder := schedlog.NewRecorder()
	s := staggeredScheduler(t, recorder, false)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))

	var updates []string
	for _, e := range recorder.Entries() {
		if e.Phase == schedlog.PhaseUpdate {
			updates = append(updates, e.ModuleID)
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, updates,
		"entries follow execution-order position even when c finishes before b")
}

func TestParallelFrameDegradesFailingModuleOnly(t *testing.T) {
	recorder := schedlog.NewRecorder()
	s := staggeredScheduler(t, recorder, true)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Frame(ctx))
	assert.True(t, s.Degraded("b"))
	assert.False(t, s.Degraded("c"))
	assert.False(t, s.Degraded("d"))

	require.NoError(t, s.Frame(ctx))
	var frame2 []string
	for _, e := range recorder.Entries() {
		if e.Phase == schedlog.PhaseUpdate && e.Frame == 2 {
			frame2 = append(frame2, e.ModuleID)
		}
	}
	assert.Equal(t, []string{"a", "c", "d"}, frame2, "degraded b is skipped on the next frame")
}

func TestParallelFrameMatchesSequentialSlotSemantics(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(&module.Descriptor{
		ID:       "producer",
		Produces: []frame.Slot{"value"},
		Update: func(ctx context.Context, fv *frame.View) error {
			return fv.Put("value", "ready")
		},
	}))
	checkConsumer := func(id string) *module.Descriptor {
		return &module.Descriptor{
			ID:           id,
			Dependencies: []module.Dependency{on("producer")},
			Update: func(ctx context.Context, fv *frame.View) error {
				if _, ok := fv.Get("value"); !ok {
					return assert.AnError
				}
				return nil
			},
		}
	}
	require.NoError(t, r.Register(checkConsumer("left")))
	require.NoError(t, r.Register(checkConsumer("right")))

	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)
	s, err := New(order, Options{Parallel: true})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Frame(ctx))
	}
	assert.False(t, s.Degraded("left"))
	assert.False(t, s.Degraded("right"))
}
