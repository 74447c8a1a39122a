// Package bridge defines the call-and-poll networking primitive used by the
// polling transport. A bridge performs I/O on its own schedule; callers start
// operations with plain calls and observe their outcome with Poll.
package bridge

import (
	"errors"
	"sync"
)

// ReadyState mirrors the WebSocket readyState values.
type ReadyState int

// Ready states.
const (
	StateConnecting ReadyState = 0
	StateOpen       ReadyState = 1
	StateClosing    ReadyState = 2
	StateClosed     ReadyState = 3
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventType identifies a polled event.
type EventType int

// Event types.
const (
	EventOpen    EventType = 1
	EventClose   EventType = 2
	EventError   EventType = 3
	EventMessage EventType = 4
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one polled event. Data carries the payload of a message event;
// Text carries the close reason or error message. Both are owned by the
// bridge and must be released by the caller.
type Event struct {
	Type EventType
	Code uint16
	Data *Foreign
	Text *Foreign
}

// TakeText copies the text out of the event and releases it.
func (e Event) TakeText() string {
	if e.Text == nil {
		return ""
	}
	s := string(e.Text.Bytes())
	e.Text.Release()
	return s
}

// Release frees any foreign memory still attached to the event.
func (e Event) Release() {
	e.Data.Release()
	e.Text.Release()
}

// Len returns the payload size of a message event.
func (e Event) Len() int {
	if e.Data == nil {
		return 0
	}
	return len(e.Data.Bytes())
}

// Errors returned by bridges.
var (
	ErrUnknownSocket = errors.New("unknown socket")
	ErrNotOpen       = errors.New("socket not open")
)

// Bridge is the host networking primitive. Implementations never block the
// caller on I/O.
type Bridge interface {
	// Connect begins a handshake and returns the socket id.
	Connect(url string, subprotocols []string) (int, error)
	State(id int) ReadyState
	// SendBinary sends p as one binary message. p is not retained.
	SendBinary(id int, p []byte) error
	// Close begins a close handshake. The close event arrives via Poll.
	Close(id int, code uint16, reason string)
	// Poll returns the next pending event for the socket, if any. After the
	// close event has been polled the id is no longer valid.
	Poll(id int) (Event, bool)
}

// Foreign is memory owned by a bridge. It must be released exactly once;
// further releases are ignored and Bytes returns nil afterwards.
type Foreign struct {
	mu   sync.Mutex
	b    []byte
	free func()
}

// NewForeign wraps b. free, if not nil, runs on the first Release.
func NewForeign(b []byte, free func()) *Foreign {
	return &Foreign{b: b, free: free}
}

// Bytes returns the wrapped memory, or nil once released.
func (f *Foreign) Bytes() []byte {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.b
}

// Released reports whether Release was called.
func (f *Foreign) Released() bool {
	if f == nil {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.b == nil && f.free == nil
}

// Release hands the memory back to the bridge.
func (f *Foreign) Release() {
	if f == nil {
		return
	}
	f.mu.Lock()
	free := f.free
	f.b = nil
	f.free = nil
	f.mu.Unlock()
	if free != nil {
		free()
	}
}
