package scheduler

import (
	"fmt"
	"strings"
)

// InitError reports a failed init pass. By the time it is surfaced the
// compensating shutdown has already run; RollbackErrs carries any
// failures from that rollback.
type InitError struct {
	ModuleID     string
	Err          error
	RollbackErrs []error
}

func (e *InitError) Error() string {
	msg := fmt.Sprintf("module %q failed to initialize: %v", e.ModuleID, e.Err)
	if len(e.RollbackErrs) == 0 {
		return msg
	}
	parts := make([]string, len(e.RollbackErrs))
	for i, err := range e.RollbackErrs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%s (rollback errors: %s)", msg, strings.Join(parts, "; "))
}

func (e *InitError) Unwrap() error { return e.Err }

// UpdateError reports a failed module update. Under the degrade policy it
// is observed and logged only; under the fatal policy it surfaces from
// Frame and triggers shutdown.
type UpdateError struct {
	ModuleID string
	Frame    uint64
	Err      error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("module %q failed update on frame %d: %v", e.ModuleID, e.Frame, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// ShutdownError reports a failed module shutdown. It is logged and
// observed, never propagated: remaining modules still shut down.
type ShutdownError struct {
	ModuleID string
	Err      error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("module %q failed to shut down: %v", e.ModuleID, e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }
