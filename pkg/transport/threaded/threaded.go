// Package threaded implements the transport backend for hosts with real
// threads: Connect blocks the caller for the handshake, then one goroutine
// writes queued frames and one goroutine reads whole messages into a
// growable pooled buffer. Lifecycle events are queued and run from Tick.
package threaded

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dominicbreuker/netpump/pkg/dispatch"
	"dominicbreuker/netpump/pkg/transport"
	"dominicbreuker/netpump/pkg/transport/ws"
)

const backendName = "threaded"

// joinTimeout bounds how long Dispose waits for each loop.
const joinTimeout = 100 * time.Millisecond

// Transport is the threaded backend.
type Transport struct {
	dialer   ws.Dialer
	sink     transport.FrameSink
	opts     transport.Options
	events   transport.Events
	dispatch *dispatch.Queue

	disposed atomic.Bool
	active   atomic.Pointer[conn]

	mu          sync.Mutex
	connecting  bool
	dialCancel  context.CancelFunc
	dialAborted bool
	cur         *conn
}

var _ transport.Transport = (*Transport)(nil)

// New creates a threaded transport dialing through dialer and delivering
// inbound frames to sink.
func New(dialer ws.Dialer, sink transport.FrameSink, opts transport.Options) *Transport {
	t := &Transport{
		dialer: dialer,
		sink:   sink,
		opts:   opts.WithDefaults(),
	}
	t.dispatch = dispatch.New(t.onPanic)
	return t
}

// SetEvents installs the event callbacks.
func (t *Transport) SetEvents(ev transport.Events) {
	t.events = ev
}

// Connect performs the handshake on the calling goroutine. On success the
// send and receive loops are started and an open event is queued. On
// failure an error event and a close event (1006) are queued and no
// goroutine is left behind. A Close during the handshake aborts it and
// queues a single local close event instead.
func (t *Transport) Connect(ctx context.Context, url string) error {
	if t.disposed.Load() {
		return transport.ErrDisposed
	}

	dialCtx, prev, err := t.begin(ctx)
	if err != nil {
		return err
	}
	if prev != nil {
		// The previous connection already queued its close event and is
		// only finishing its teardown.
		<-prev.recvDone
	}

	t.opts.Logger.VerboseMsg("Dialing %s", url)
	sock, err := t.dialer.Dial(dialCtx, url, t.opts.Subprotocols)
	if err != nil {
		if t.end(nil) {
			t.opts.Logger.VerboseMsg("Dial %s aborted by close", url)
			t.pushClose(transport.CloseNormal, transport.ReasonLocalClose)
			return nil
		}
		t.opts.Logger.VerboseMsg("Dial %s failed: %s", url, err)
		msg := err.Error()
		t.pushError(transport.NewError(transport.ConnectFailure, err))
		t.pushClose(transport.CloseAbnormal, msg)
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := newConn(sock, loopCtx, cancel)
	if t.end(c) {
		cancel()
		t.opts.Logger.VerboseMsg("Connection to %s closed during handshake", url)
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeWriteTimeout)
		_ = sock.CloseOutput(closeCtx, transport.CloseNormal, transport.ReasonNormalClosure)
		closeCancel()
		_ = sock.CloseNow()
		t.pushClose(transport.CloseNormal, transport.ReasonLocalClose)
		return nil
	}

	t.pushOpen()
	t.active.Store(c)
	go t.sendLoop(c)
	go t.receiveLoop(c)

	t.opts.Logger.VerboseMsg("Connected to %s", url)
	return nil
}

// begin reserves the transport for a connection attempt and returns the
// context to dial with. It also returns the previous connection if that
// one is still tearing down.
func (t *Transport) begin(ctx context.Context) (context.Context, *conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connecting {
		return nil, nil, transport.ErrAlreadyRunning
	}
	prev := t.cur
	if prev != nil && !prev.done() && !prev.finishing.Load() {
		return nil, nil, transport.ErrAlreadyRunning
	}
	dialCtx, cancel := context.WithCancel(ctx)
	t.connecting = true
	t.dialCancel = cancel
	t.dialAborted = false
	return dialCtx, prev, nil
}

// end finishes a connection attempt with c as the current connection. It
// reports true if Close aborted the attempt, in which case c is discarded.
func (t *Transport) end(c *conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dialCancel()
	t.dialCancel = nil
	t.connecting = false
	if t.dialAborted {
		t.cur = nil
		return true
	}
	t.cur = c
	return false
}

// Send copies frame into a pooled buffer and queues it for the send loop.
// It never blocks on I/O and is a no-op while not open.
func (t *Transport) Send(frame []byte) error {
	if t.disposed.Load() {
		return nil
	}
	c := t.active.Load()
	if c == nil {
		return nil
	}
	if len(frame) > t.opts.MaxFrameSize {
		return fmt.Errorf("sending %d bytes: %w", len(frame), transport.ErrFrameTooLarge)
	}

	buf := t.opts.Arena.Rent(len(frame))
	buf.N = copy(buf.B, frame)

	if !c.enqueue(buf) {
		t.opts.Arena.Return(buf)
	}
	return nil
}

// Close requests a graceful close: pending sends are dropped and a close
// frame is queued for the send loop, which interrupts the in-flight read
// once the frame is written. The close event is queued by the receive
// loop. During the handshake Close aborts the dial.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.connecting {
		t.dialAborted = true
		t.dialCancel()
		t.mu.Unlock()
		return
	}
	c := t.cur
	t.mu.Unlock()
	if c == nil || c.done() {
		return
	}

	if !c.closeRequested.CompareAndSwap(false, true) {
		return
	}
	for _, buf := range c.requestClose() {
		t.opts.Arena.Return(buf)
	}
	// a send loop stuck in a write must not hold up the close
	time.AfterFunc(closeWriteTimeout, c.cancel)
}

// Tick runs up to MaxEventsPerTick queued events on the calling goroutine.
func (t *Transport) Tick() {
	n := t.dispatch.Drain(t.opts.MaxEventsPerTick)
	t.opts.Metrics.EventsRun(backendName, n)
	if n == t.opts.MaxEventsPerTick && t.dispatch.Len() > 0 {
		t.opts.Metrics.TickCapHit(backendName, "events")
	}
}

// IsOpen reports whether the loops are running.
func (t *Transport) IsOpen() bool {
	return !t.disposed.Load() && t.active.Load() != nil
}

// Dispose closes the connection, waits briefly for both loops and drops
// any events not yet delivered.
func (t *Transport) Dispose() {
	if !t.disposed.CompareAndSwap(false, true) {
		return
	}
	t.Close()

	t.mu.Lock()
	c := t.cur
	t.mu.Unlock()
	if c != nil {
		join(c.sendDone, joinTimeout)
		join(c.recvDone, joinTimeout)
		_ = c.sock.CloseNow()
	}

	if dropped := t.dispatch.Close(); dropped > 0 {
		t.opts.Logger.VerboseMsg("Dropped %d undelivered events on dispose", dropped)
	}
}

func join(done <-chan struct{}, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
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

// reportError queues an error event for c unless a close was requested or
// an error was already reported for this connection.
func (t *Transport) reportError(c *conn, err error) {
	if c.closeRequested.Load() || c.stopped() {
		return
	}
	if !c.errorReported.CompareAndSwap(false, true) {
		return
	}
	t.opts.Logger.VerboseMsg("Transport error: %s", err)
	t.pushError(transport.NewError(transport.TransportFailure, err))
}

var errFrameTooLarge = errors.New("inbound frame exceeds limit")
