// Package frame implements the per-frame data exchange between modules.
//
// A Context holds named slots. Every slot has exactly one declared
// producer module and any number of readers. Readers that run before the
// producer in the execution order simply observe the slot as absent; no
// value ever survives into the next frame. Writes go through a View bound
// to the writing module's id, which is how the single-writer contract is
// enforced at runtime rather than by convention alone.
package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Slot names one named value in the frame context, e.g. "render.target".
type Slot string

// DuplicateProducerError reports two modules both declaring themselves the
// producer of one slot. This is a configuration error; the engine refuses
// to start.
type DuplicateProducerError struct {
	Slot   Slot
	First  string
	Second string
}

func (e *DuplicateProducerError) Error() string {
	return fmt.Sprintf("slot %q declared by both %q and %q; a slot has exactly one producer", e.Slot, e.First, e.Second)
}

// NotProducerError reports a module writing a slot it did not declare.
type NotProducerError struct {
	Slot     Slot
	Module   string
	Producer string
}

func (e *NotProducerError) Error() string {
	if e.Producer == "" {
		return fmt.Sprintf("module %q wrote undeclared slot %q", e.Module, e.Slot)
	}
	return fmt.Sprintf("module %q wrote slot %q owned by %q", e.Module, e.Slot, e.Producer)
}

// Table is the immutable slot-to-producer mapping derived from the
// registered descriptors. It is built once, before the first frame.
type Table struct {
	producers map[Slot]string
}

// NewTable returns an empty producer table.
func NewTable() *Table {
	return &Table{producers: make(map[Slot]string)}
}

// Declare records moduleID as the sole producer of slot.
func (t *Table) Declare(slot Slot, moduleID string) error {
	if first, ok := t.producers[slot]; ok {
		return &DuplicateProducerError{Slot: slot, First: first, Second: moduleID}
	}
	t.producers[slot] = moduleID
	return nil
}

// Producer returns the declared producer of slot, if any.
func (t *Table) Producer(slot Slot) (string, bool) {
	id, ok := t.producers[slot]
	return id, ok
}

// Context is the shared per-frame object. One Context instance lives for
// the scheduler's lifetime and is reset at the start of every frame, so
// modules can never observe a previous frame's values.
//
// Slot access is guarded by a mutex so that independent modules may run
// concurrently; within a dependency chain the execution order alone
// already serializes producer and consumers.
type Context struct {
	table *Table

	mu     sync.RWMutex
	values map[Slot]any

	frame uint64
	stop  atomic.Bool
}

// NewContext creates a frame context over the given producer table.
func NewContext(table *Table) *Context {
	return &Context{
		table:  table,
		values: make(map[Slot]any),
	}
}

// Reset clears every slot and stamps the context with the new frame
// number. The stop flag intentionally survives: a stop request made
// during frame N must still be visible in frame N+1's bookkeeping.
func (c *Context) Reset(frameNum uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.values)
	c.frame = frameNum
}

// Frame returns the current frame number, starting at 1 for the first
// update pass.
func (c *Context) Frame() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Get returns the value of slot for the current frame. ok is false before
// the slot's producer has run this frame.
func (c *Context) Get(slot Slot) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[slot]
	return v, ok
}

// RequestStop asks the scheduler to stop issuing new frames. Cooperative:
// the current frame always completes.
func (c *Context) RequestStop() {
	c.stop.Store(true)
}

// StopRequested reports whether any module or the host has asked the
// engine to stop. Long-running modules are expected to poll this.
func (c *Context) StopRequested() bool {
	return c.stop.Load()
}

// For returns a view of the context bound to moduleID. All writes a module
// performs go through its view.
func (c *Context) For(moduleID string) *View {
	return &View{ctx: c, moduleID: moduleID}
}

// View is a module-scoped handle on the frame context. Reads are
// unrestricted; writes are checked against the producer table.
type View struct {
	ctx      *Context
	moduleID string
}

// Put writes value into slot. It fails with *NotProducerError when the
// bound module is not the slot's declared producer.
func (v *View) Put(slot Slot, value any) error {
	producer, ok := v.ctx.table.Producer(slot)
	if !ok || producer != v.moduleID {
		return &NotProducerError{Slot: slot, Module: v.moduleID, Producer: producer}
	}
	v.ctx.mu.Lock()
	defer v.ctx.mu.Unlock()
	v.ctx.values[slot] = value
	return nil
}

// Get returns the value of slot for the current frame.
func (v *View) Get(slot Slot) (any, bool) { return v.ctx.Get(slot) }

// Frame returns the current frame number.
func (v *View) Frame() uint64 { return v.ctx.Frame() }

// RequestStop asks the scheduler to stop after the current frame.
func (v *View) RequestStop() { v.ctx.RequestStop() }

// StopRequested reports whether a stop has been requested.
func (v *View) StopRequested() bool { return v.ctx.StopRequested() }
