package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegrid/internal/config"
	"github.com/vk/framegrid/internal/frame"
	"github.com/vk/framegrid/internal/module"
	"github.com/vk/framegrid/internal/registry"
	"github.com/vk/framegrid/internal/resolver"
	"github.com/vk/framegrid/internal/schedlog"
)

// eventLog records lifecycle calls in occurrence order; safe for
// concurrent use so the staged-frame tests can share it.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

// testModule builds descriptors whose lifecycle calls append to the log.
type testModule struct {
	id       string
	deps     []module.Dependency
	failInit bool
	// failUpdateOn makes update fail on that frame number (0 = never).
	failUpdateOn uint64
	failShutdown bool
}

func (m testModule) descriptor(log *eventLog) *module.Descriptor {
	return &module.Descriptor{
		ID:           m.id,
		Name:         m.id,
		Dependencies: m.deps,
		Init: func(ctx context.Context) error {
			log.add("init:" + m.id)
			if m.failInit {
				return errors.New("boom")
			}
			return nil
		},
		Update: func(ctx context.Context, fv *frame.View) error {
			log.add(fmt.Sprintf("update:%s:%d", m.id, fv.Frame()))
			if m.failUpdateOn != 0 && fv.Frame() == m.failUpdateOn {
				return errors.New("boom")
			}
			return nil
		},
		Shutdown: func(ctx context.Context) error {
			log.add("shutdown:" + m.id)
			if m.failShutdown {
				return errors.New("boom")
			}
			return nil
		},
	}
}

func on(id string) module.Dependency { return module.Dependency{ID: id} }

func buildScheduler(t *testing.T, opts Options, log *eventLog, mods ...testModule) *Scheduler {
	t.Helper()
	r := registry.New()
	for _, m := range mods {
		require.NoError(t, r.Register(m.descriptor(log)))
	}
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)
	s, err := New(order, opts)
	require.NoError(t, err)
	return s
}

func TestStartRunsInitInExecutionOrder(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log,
		testModule{id: "a"},
		testModule{id: "b", deps: []module.Dependency{on("a")}},
		testModule{id: "c", deps: []module.Dependency{on("a"), on("b")}},
	)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Running, s.State())
	assert.Equal(t, []string{"init:a", "init:b", "init:c"}, log.list())
}

func TestStartIsRejectedTwice(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log, testModule{id: "a"})
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
}

func TestInitFailureRollsBackInReverseOrderExactlyOnce(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log,
		testModule{id: "a"},
		testModule{id: "b", deps: []module.Dependency{on("a")}},
		testModule{id: "c", deps: []module.Dependency{on("b")}, failInit: true},
		testModule{id: "d", deps: []module.Dependency{on("c")}},
	)

	err := s.Start(context.Background())
	require.Error(t, err)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "c", initErr.ModuleID)
	assert.Empty(t, initErr.RollbackErrs)

	assert.Equal(t, []string{
		"init:a", "init:b", "init:c",
		"shutdown:b", "shutdown:a",
	}, log.list(), "d never initializes; a and b shut down exactly once, in reverse")
	assert.Equal(t, Stopped, s.State())

	// Stopped is terminal.
	assert.Error(t, s.Frame(context.Background()))
	assert.Error(t, s.Start(context.Background()))
}

func TestInitRollbackCollectsShutdownFailures(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log,
		testModule{id: "a", failShutdown: true},
		testModule{id: "b", deps: []module.Dependency{on("a")}, failInit: true},
	)

	err := s.Start(context.Background())
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "b", initErr.ModuleID)
	require.Len(t, initErr.RollbackErrs, 1)
	var shutErr *ShutdownError
	require.ErrorAs(t, initErr.RollbackErrs[0], &shutErr)
	assert.Equal(t, "a", shutErr.ModuleID)
}

func TestUpdateFailureDegradesAndSkips(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log,
		testModule{id: "a"},
		testModule{id: "b", deps: []module.Dependency{on("a")}, failUpdateOn: 1},
		testModule{id: "c", deps: []module.Dependency{on("a")}},
	)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Frame(ctx), "degrade policy keeps the frame loop alive")
	require.NoError(t, s.Frame(ctx))
	require.NoError(t, s.Frame(ctx))

	assert.True(t, s.Degraded("b"))
	assert.False(t, s.Degraded("a"))

	assert.Equal(t, []string{
		"init:a", "init:b", "init:c",
		"update:a:1", "update:b:1", "update:c:1",
		"update:a:2", "update:c:2",
		"update:a:3", "update:c:3",
	}, log.list(), "b is skipped after its failure; a and c keep updating")
	assert.Equal(t, Running, s.State())
}

func TestFatalPolicyEscalatesUpdateFailure(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{Policy: config.PolicyFatal}, log,
		testModule{id: "a", failUpdateOn: 2},
		testModule{id: "b", deps: []module.Dependency{on("a")}},
	)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))

	err := s.Frame(ctx)
	require.Error(t, err)
	var updateErr *UpdateError
	require.ErrorAs(t, err, &updateErr)
	assert.Equal(t, "a", updateErr.ModuleID)
	assert.Equal(t, uint64(2), updateErr.Frame)
	assert.Equal(t, ShuttingDown, s.State())

	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, []string{"shutdown:b", "shutdown:a"}, log.list()[len(log.list())-2:])
}

func TestShutdownIsBestEffortReverseOrder(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log,
		testModule{id: "a"},
		testModule{id: "b", deps: []module.Dependency{on("a")}, failShutdown: true},
		testModule{id: "c", deps: []module.Dependency{on("b")}},
	)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))

	require.NoError(t, s.Shutdown(ctx), "individual shutdown failures never propagate")
	assert.Equal(t, Stopped, s.State())

	events := log.list()
	assert.Equal(t, []string{"shutdown:c", "shutdown:b", "shutdown:a"}, events[len(events)-3:])

	// Shutdown on a stopped scheduler is a no-op.
	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, []string{"shutdown:c", "shutdown:b", "shutdown:a"}, log.list()[len(log.list())-3:])
}

func TestFrameBeforeStartFails(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log, testModule{id: "a"})
	assert.Error(t, s.Frame(context.Background()))
}

func TestStopIsCooperative(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log, testModule{id: "a"})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	assert.False(t, s.StopRequested())
	s.Stop()
	assert.True(t, s.StopRequested())

	// Stop never preempts: a frame issued by the host still completes.
	require.NoError(t, s.Frame(ctx))
	assert.Contains(t, log.list(), "update:a:1")
}

func TestObserverReceivesEntriesInOrder(t *testing.T) {
	log := &eventLog{}
	recorder := schedlog.NewRecorder()
	s := buildScheduler(t, Options{Observer: recorder}, log,
		testModule{id: "a"},
		testModule{id: "b", deps: []module.Dependency{on("a")}},
	)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))
	require.NoError(t, s.Shutdown(ctx))

	var got []string
	for _, e := range recorder.Entries() {
		got = append(got, string(e.Phase)+":"+e.ModuleID)
	}
	assert.Equal(t, []string{
		"init:a", "init:b",
		"update:a", "update:b",
		"shutdown:b", "shutdown:a",
	}, got)
}

func TestObserverEntriesCarryUpdateErrors(t *testing.T) {
	log := &eventLog{}
	recorder := schedlog.NewRecorder()
	s := buildScheduler(t, Options{Observer: recorder}, log,
		testModule{id: "a", failUpdateOn: 1},
	)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))

	entries := recorder.Entries()
	require.Len(t, entries, 2) // init + failed update
	assert.Equal(t, schedlog.PhaseUpdate, entries[1].Phase)
	assert.Error(t, entries[1].Err)
}

func TestDuplicateSlotProducerIsRejected(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(&module.Descriptor{ID: "a", Produces: []frame.Slot{"shared"}}))
	require.NoError(t, r.Register(&module.Descriptor{ID: "b", Produces: []frame.Slot{"shared"}}))
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)

	_, err = New(order, Options{})
	var dup *frame.DuplicateProducerError
	require.ErrorAs(t, err, &dup)
}

func TestSlotsFlowFromProducerToConsumerWithinAFrame(t *testing.T) {
	r := registry.New()
	var seen []int
	require.NoError(t, r.Register(&module.Descriptor{
		ID:       "producer",
		Produces: []frame.Slot{"numbers"},
		Update: func(ctx context.Context, fv *frame.View) error {
			return fv.Put("numbers", int(fv.Frame())*10)
		},
	}))
	require.NoError(t, r.Register(&module.Descriptor{
		ID:           "consumer",
		Dependencies: []module.Dependency{on("producer")},
		Update: func(ctx context.Context, fv *frame.View) error {
			v, ok := fv.Get("numbers")
			if !ok {
				return errors.New("slot absent after producer ran")
			}
			seen = append(seen, v.(int))
			return nil
		},
	}))
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)
	s, err := New(order, Options{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))
	require.NoError(t, s.Frame(ctx))
	assert.Equal(t, []int{10, 20}, seen, "consumer sees the producer's value for the current frame only")
	assert.False(t, s.Degraded("consumer"))
}

func TestNilLifecycleFuncsAreNoOps(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(&module.Descriptor{ID: "bare"}))
	order, err := resolver.Resolve(r.Finalize())
	require.NoError(t, err)

	recorder := schedlog.NewRecorder()
	s, err := New(order, Options{Observer: recorder})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Frame(ctx))
	require.NoError(t, s.Shutdown(ctx))
	assert.Zero(t, recorder.Len(), "no entries for behaviors a module does not implement")
}

func TestFrameCountIsSafeForConcurrentReaders(t *testing.T) {
	log := &eventLog{}
	s := buildScheduler(t, Options{}, log, testModule{id: "a"})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	// Poll the counters the healthcheck handler reads while the frame
	// loop runs, the way the HTTP server goroutine does.
	done := make(chan struct{})
	var last uint64
	go func() {
		defer close(done)
		for s.State() == Running {
			if n := s.FrameCount(); n > last {
				last = n
			}
		}
	}()

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Frame(ctx))
	}
	require.NoError(t, s.Shutdown(ctx))
	<-done

	assert.Equal(t, uint64(100), s.FrameCount())
	assert.LessOrEqual(t, last, uint64(100))
}
