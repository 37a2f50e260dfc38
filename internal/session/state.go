package session

// State is the lifecycle state of a Session. Whether the program is running
// or paused is tracked by the VM, not here.
type State int

const (
	Uninitialized State = iota
	Initialized
	Disconnected
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
