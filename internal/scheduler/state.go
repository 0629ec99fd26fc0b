package scheduler

// State is the scheduler's lifecycle state.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Running
	ShuttingDown
	Stopped
)

// String returns the state name used in logs and the healthcheck payload.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
