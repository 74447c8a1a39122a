// Package transport defines the contract shared by netpump's two backends.
//
// Both backends expose the same surface to the session layer:
//   - Connect starts a connection attempt to a WebSocket URL
//   - Send copies one frame out to the peer, or silently drops it if not open
//   - Close requests a graceful shutdown
//   - Tick is the pump: queued open/close/error events only ever fire inside it
//
// Backend-specific notes:
//   - threaded: connect blocks the caller; a send goroutine and a receive
//     goroutine drive a blocking socket (coder/websocket or gorilla/websocket)
//   - polling: no goroutines of its own; a host bridge is called and polled
//     from Tick, with per-tick caps on events and bytes
//
// Inbound frames are handed to a FrameSink as borrowed slices that must not be
// retained after OnFrame returns.
package transport

import (
	"context"
)

// FrameSink receives complete inbound frames. The frame slice is only valid
// for the duration of the call.
type FrameSink interface {
	OnFrame(sessionID int, frame []byte)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(sessionID int, frame []byte)

// OnFrame calls f.
func (f FrameSinkFunc) OnFrame(sessionID int, frame []byte) { f(sessionID, frame) }

// Events are the callbacks a transport raises. They are invoked only from
// Tick. Any field may be nil.
type Events struct {
	OnOpen  func()
	OnClose func(code uint16, reason string)
	OnError func(err error)
}

// Transport is implemented by the threaded and the polling backend.
type Transport interface {
	// SetEvents installs the event callbacks. Call before Connect.
	SetEvents(ev Events)
	// Connect starts a connection attempt. Connection failures are reported
	// through the error and close events; the returned error only covers
	// misuse such as connecting twice or after Dispose.
	Connect(ctx context.Context, url string) error
	// Send transmits one frame. It is a no-op while not open.
	Send(frame []byte) error
	// Close requests a graceful close. The close event follows on a later Tick.
	Close()
	// Tick runs queued events on the calling goroutine.
	Tick()
	// IsOpen reports whether frames can currently be sent.
	IsOpen() bool
	// Dispose releases all resources. The transport cannot be reused.
	Dispose()
}
