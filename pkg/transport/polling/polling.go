// Package polling implements the transport backend for hosts without
// threads. All I/O is done by a bridge.Bridge; the transport starts
// operations with plain calls and collects their results by polling the
// bridge from Tick, with a cap on events and bytes per call.
//
// A Transport is driven by a single goroutine: every method must be called
// from the pump.
package polling

import (
	"context"
	"errors"
	"fmt"

	"dominicbreuker/netpump/pkg/bridge"
	"dominicbreuker/netpump/pkg/dispatch"
	"dominicbreuker/netpump/pkg/transport"
)

const backendName = "polling"

const noSocket = -1

// Transport is the polling backend.
type Transport struct {
	bridge   bridge.Bridge
	sink     transport.FrameSink
	opts     transport.Options
	events   transport.Events
	dispatch *dispatch.Queue

	id             int
	disposed       bool
	closeRequested bool
}

var _ transport.Transport = (*Transport)(nil)

// New creates a polling transport on top of b.
func New(b bridge.Bridge, sink transport.FrameSink, opts transport.Options) *Transport {
	t := &Transport{
		bridge: b,
		sink:   sink,
		opts:   opts.WithDefaults(),
		id:     noSocket,
	}
	t.dispatch = dispatch.New(t.onPanic)
	return t
}

// SetEvents installs the event callbacks.
func (t *Transport) SetEvents(ev transport.Events) {
	t.events = ev
}

// Connect asks the bridge to begin a handshake and returns at once. The
// open event is observed by a later Tick.
func (t *Transport) Connect(ctx context.Context, url string) error {
	if t.disposed {
		return transport.ErrDisposed
	}
	if t.id != noSocket {
		return transport.ErrAlreadyRunning
	}

	t.opts.Logger.VerboseMsg("Bridge connect %s", url)
	id, err := t.bridge.Connect(url, t.opts.Subprotocols)
	if err != nil {
		t.opts.Logger.VerboseMsg("Bridge connect %s failed: %s", url, err)
		t.pushError(transport.NewError(transport.ConnectFailure, err))
		t.pushClose(transport.CloseAbnormal, err.Error())
		return nil
	}
	t.id = id
	t.closeRequested = false
	return nil
}

// Send copies frame into a pooled buffer and hands it to the bridge in one
// call. It is a no-op unless the bridge reports the socket open.
func (t *Transport) Send(frame []byte) error {
	if t.disposed || t.id == noSocket {
		return nil
	}
	if len(frame) > t.opts.MaxFrameSize {
		return fmt.Errorf("sending %d bytes: %w", len(frame), transport.ErrFrameTooLarge)
	}
	if t.bridge.State(t.id) != bridge.StateOpen {
		return nil
	}

	buf := t.opts.Arena.Rent(len(frame))
	defer t.opts.Arena.Return(buf)
	buf.N = copy(buf.B, frame)

	if err := t.bridge.SendBinary(t.id, buf.Bytes()); err != nil {
		return fmt.Errorf("sendBinary(%d): %w", t.id, err)
	}
	t.opts.Metrics.FrameSent(backendName, len(frame))
	return nil
}

// Close asks the bridge for a normal close. The close event is observed by
// a later Tick.
func (t *Transport) Close() {
	if t.id == noSocket || t.closeRequested {
		return
	}
	t.closeRequested = true
	t.bridge.Close(t.id, transport.CloseNormal, transport.ReasonNormalClosure)
}

// Tick polls the bridge within the per-call caps, then runs every queued
// event.
func (t *Transport) Tick() {
	if !t.disposed && t.id != noSocket {
		t.poll()
	}
	n := t.dispatch.DrainAll()
	t.opts.Metrics.EventsRun(backendName, n)
}

// poll collects at most MaxEventsPerTick events and MaxBytesPerTick message
// bytes. Whatever is left stays in the bridge for the next call.
func (t *Transport) poll() {
	events, bytes := 0, 0
	for events < t.opts.MaxEventsPerTick && bytes < t.opts.MaxBytesPerTick {
		ev, ok := t.bridge.Poll(t.id)
		if !ok {
			return
		}
		events++

		switch ev.Type {
		case bridge.EventOpen:
			t.opts.Logger.VerboseMsg("Bridge socket %d open", t.id)
			t.pushOpen()
		case bridge.EventClose:
			reason := ev.TakeText()
			t.opts.Logger.VerboseMsg("Bridge socket %d closed: %d %s", t.id, ev.Code, reason)
			t.pushClose(ev.Code, reason)
			t.id = noSocket
			t.closeRequested = false
			return
		case bridge.EventError:
			msg := ev.TakeText()
			if !t.closeRequested {
				t.pushError(transport.NewError(transport.TransportFailure, errors.New(msg)))
			}
		case bridge.EventMessage:
			bytes += ev.Len()
			t.deliver(ev)
		default:
			ev.Release()
		}
	}

	if events >= t.opts.MaxEventsPerTick {
		t.opts.Metrics.TickCapHit(backendName, "events")
	} else {
		t.opts.Metrics.TickCapHit(backendName, "bytes")
	}
}

// deliver copies the bridge-owned payload into the arena, releases the
// bridge memory and hands the copy to the sink.
func (t *Transport) deliver(ev bridge.Event) {
	data := ev.Data.Bytes()
	n := len(data)
	if n == 0 {
		ev.Release()
		return
	}

	buf := t.opts.Arena.Rent(n)
	defer t.opts.Arena.Return(buf)
	buf.N = copy(buf.B, data)
	ev.Release()

	t.sink.OnFrame(t.opts.SessionID, buf.Bytes())
	t.opts.Metrics.FrameReceived(backendName, n)
}

// IsOpen reports whether the bridge has the socket open.
func (t *Transport) IsOpen() bool {
	return !t.disposed && t.id != noSocket && t.bridge.State(t.id) == bridge.StateOpen
}

// Dispose closes the socket and drops undelivered events. Bridge memory
// still attached to unpolled events is released.
func (t *Transport) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true

	if t.id != noSocket {
		id := t.id
		t.Close()
		for {
			ev, ok := t.bridge.Poll(id)
			if !ok {
				break
			}
			ev.Release()
			if ev.Type == bridge.EventClose {
				break
			}
		}
		t.id = noSocket
	}

	if dropped := t.dispatch.Close(); dropped > 0 {
		t.opts.Logger.VerboseMsg("Dropped %d undelivered events on dispose", dropped)
	}
}

func (t *Transport) onPanic(r interface{}) {
	t.opts.Metrics.HandlerPanic(backendName)
	t.opts.Logger.ErrorMsg("event handler panic: %v\n", r)
}

func (t *Transport) pushOpen() {
	t.dispatch.Push(func() {
		if h := t.events.OnOpen; h != nil {
			h()
		}
	})
}

func (t *Transport) pushClose(code uint16, reason string) {
	t.dispatch.Push(func() {
		if h := t.events.OnClose; h != nil {
			h(code, reason)
		}
	})
}

func (t *Transport) pushError(err error) {
	t.dispatch.Push(func() {
		if h := t.events.OnError; h != nil {
			h(err)
		}
	})
}
