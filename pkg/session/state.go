package session

// State is the connection lifecycle state of a Session.
type State int

// Session states.
const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}
