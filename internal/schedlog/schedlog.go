// Package schedlog records per-module, per-phase timing for the frame
// scheduler. It is a pure observer: nothing recorded here ever feeds back
// into scheduling decisions. When no observer is attached the scheduler
// skips timestamp capture entirely, so a disabled log costs nothing.
package schedlog

import (
	"sync"
	"time"
)

// Phase names the lifecycle phase an entry was recorded in.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseUpdate   Phase = "update"
	PhaseShutdown Phase = "shutdown"
)

// Entry is one timed module execution. Err is non-nil when the lifecycle
// call failed; failed update and shutdown calls are reported here rather
// than propagated.
type Entry struct {
	ModuleID string
	Phase    Phase
	Frame    uint64
	Start    time.Time
	Duration time.Duration
	Err      error
}

// Observer receives entries as the scheduler produces them. Entries
// arrive in deterministic order: execution-order position within a
// phase, even when independent modules ran concurrently.
type Observer interface {
	Record(e Entry)
}

// Recorder is the standard Observer: an append-only, concurrency-safe
// log of entries in occurrence order.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one entry.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Entries returns a copy of all recorded entries in occurrence order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Drain returns all recorded entries in occurrence order and clears the
// recorder.
func (r *Recorder) Drain() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = nil
	return out
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
