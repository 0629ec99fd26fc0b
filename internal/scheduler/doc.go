// Package scheduler drives the engine lifecycle state machine and
// executes modules in resolver-determined order each phase.
//
// # Lifecycle
//
// Uninitialized → Initializing → Running → ShuttingDown → Stopped.
//
// Start runs every module's init in execution order; the first failure
// triggers a compensating shutdown of everything already initialized, in
// reverse order, and lands in Stopped. Frame runs one update pass over a
// freshly reset frame context. Shutdown runs best-effort reverse-order
// shutdown. Stopped is terminal.
//
// # Failure discipline
//
// Update failures are non-fatal by default: the module is marked degraded
// and skipped on later frames while the rest of the frame continues. The
// fatal policy instead escalates the first update failure into a
// shutdown. Shutdown failures never block other modules' shutdown.
//
// # Concurrency
//
// Execution is a single logical stream per frame. When the parallel
// option is set, modules with no directed path between them run
// concurrently within a stage; this is an optimization only, never
// required for correctness, and observer entries are still reported in
// execution-order position.
package scheduler
