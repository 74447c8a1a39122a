// Package netbridge is a bridge.Bridge for native hosts. Every socket runs
// its handshake, reads and writes on goroutines and queues the results as
// events that the owner collects with Poll. Calls into the bridge never
// block on the network.
package netbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/bridge"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/semaphore"
	"dominicbreuker/netpump/pkg/transport/ws"

	"github.com/eapache/queue"
)

// ErrSendQueueFull is returned by SendBinary when the socket's outbound
// queue is full.
var ErrSendQueueFull = errors.New("send queue full")

// Options configure a Bridge. Zero values select defaults.
type Options struct {
	MaxConcurrentDials int
	DialTimeout        time.Duration
	CloseTimeout       time.Duration
	SendQueueSize      int
	MaxFrameSize       int
	Arena              *arena.Arena
	Logger             *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentDials <= 0 {
		o.MaxConcurrentDials = 8
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = 5 * time.Second
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 1024
	}
	if limit := arena.MaxMessageSize(arena.DefaultMinFree); o.MaxFrameSize <= 0 || o.MaxFrameSize > limit {
		o.MaxFrameSize = limit
	}
	if o.Arena == nil {
		o.Arena = arena.New()
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	return o
}

// Bridge implements bridge.Bridge on top of a ws.Dialer.
type Bridge struct {
	dialer  ws.Dialer
	opts    Options
	limiter *semaphore.DialLimiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	nextID  int
	sockets map[int]*socket
}

var _ bridge.Bridge = (*Bridge)(nil)

// New creates a bridge dialing through dialer.
func New(dialer ws.Dialer, opts Options) *Bridge {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		dialer:  dialer,
		opts:    opts,
		limiter: semaphore.New(opts.MaxConcurrentDials, opts.DialTimeout),
		ctx:     ctx,
		cancel:  cancel,
		nextID:  1,
		sockets: make(map[int]*socket),
	}
}

// Connect starts a handshake on a new socket and returns its id.
func (b *Bridge) Connect(url string, subprotocols []string) (int, error) {
	if b.ctx.Err() != nil {
		return 0, fmt.Errorf("connect(%s): bridge shut down", url)
	}

	ctx, cancel := context.WithCancel(b.ctx)
	s := &socket{
		ctx:    ctx,
		cancel: cancel,
		state:  bridge.StateConnecting,
		events: queue.New(),
		sendCh: make(chan *arena.Buffer, b.opts.SendQueueSize),
		closeR: make(chan closeRequest, 1),
	}

	b.mu.Lock()
	s.id = b.nextID
	b.nextID++
	b.sockets[s.id] = s
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(s, url, subprotocols)
	}()
	return s.id, nil
}

// State returns the socket's ready state. Unknown ids report closed.
func (b *Bridge) State(id int) bridge.ReadyState {
	s := b.lookup(id)
	if s == nil {
		return bridge.StateClosed
	}
	return s.getState()
}

// SendBinary copies p into a pooled buffer and queues it for the writer.
func (b *Bridge) SendBinary(id int, p []byte) error {
	s := b.lookup(id)
	if s == nil {
		return bridge.ErrUnknownSocket
	}
	if s.getState() != bridge.StateOpen {
		return bridge.ErrNotOpen
	}

	buf := b.opts.Arena.Rent(len(p))
	buf.N = copy(buf.B, p)
	select {
	case s.sendCh <- buf:
		return nil
	default:
		b.opts.Arena.Return(buf)
		return ErrSendQueueFull
	}
}

// Close begins closing the socket. Closing a connecting socket aborts the
// handshake.
func (b *Bridge) Close(id int, code uint16, reason string) {
	s := b.lookup(id)
	if s == nil {
		return
	}

	s.mu.Lock()
	prev := s.state
	if prev == bridge.StateConnecting || prev == bridge.StateOpen {
		s.state = bridge.StateClosing
		s.closeRequested = true
	}
	s.mu.Unlock()

	switch prev {
	case bridge.StateConnecting:
		s.cancel()
	case bridge.StateOpen:
		select {
		case s.closeR <- closeRequest{code: code, reason: reason}:
		default:
		}
		time.AfterFunc(b.opts.CloseTimeout, s.cancel)
	}
}

// Poll returns the socket's next event. Once the close event is returned
// the socket is forgotten.
func (b *Bridge) Poll(id int) (bridge.Event, bool) {
	s := b.lookup(id)
	if s == nil {
		return bridge.Event{}, false
	}

	s.mu.Lock()
	if s.events.Length() == 0 {
		s.mu.Unlock()
		return bridge.Event{}, false
	}
	ev := s.events.Remove().(bridge.Event)
	s.mu.Unlock()

	if ev.Type == bridge.EventClose {
		b.mu.Lock()
		delete(b.sockets, id)
		b.mu.Unlock()
	}
	return ev, true
}

// Pending returns the number of unpolled events for id.
func (b *Bridge) Pending(id int) int {
	s := b.lookup(id)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.Length()
}

// Shutdown aborts every socket and waits for their goroutines. Unpolled
// events are released.
func (b *Bridge) Shutdown() {
	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	sockets := b.sockets
	b.sockets = make(map[int]*socket)
	b.mu.Unlock()

	for _, s := range sockets {
		s.mu.Lock()
		for s.events.Length() > 0 {
			s.events.Remove().(bridge.Event).Release()
		}
		s.mu.Unlock()
	}
}

func (b *Bridge) lookup(id int) *socket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sockets[id]
}

// foreignCopy copies p into a pooled buffer handed out as foreign memory.
func (b *Bridge) foreignCopy(p []byte) *bridge.Foreign {
	buf := b.opts.Arena.Rent(len(p))
	buf.N = copy(buf.B, p)
	return bridge.NewForeign(buf.Bytes(), func() { b.opts.Arena.Return(buf) })
}

func textEvent(typ bridge.EventType, code uint16, text string) bridge.Event {
	return bridge.Event{Type: typ, Code: code, Text: bridge.NewForeign([]byte(text), nil)}
}

// run drives one socket from handshake to close. The close event is the
// last event queued for the socket.
func (b *Bridge) run(s *socket, url string, subprotocols []string) {
	defer s.cancel()

	sock, err := b.dial(s.ctx, url, subprotocols)
	if err != nil {
		msg := err.Error()
		if s.isCloseRequested() {
			msg = "connection aborted"
		}
		b.opts.Logger.VerboseMsg("Bridge socket %d: dial failed: %s", s.id, msg)
		s.push(textEvent(bridge.EventError, 0, msg))
		s.finish(textEvent(bridge.EventClose, 1006, msg))
		return
	}

	if !s.open() {
		// Closed while the handshake was completing.
		_ = sock.CloseNow()
		s.finish(textEvent(bridge.EventClose, 1006, "connection aborted"))
		return
	}
	s.push(bridge.Event{Type: bridge.EventOpen})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		b.write(s, sock)
	}()

	code, reason := b.read(s, sock)
	s.cancel()
	_ = sock.CloseNow()
	<-writerDone

	b.opts.Logger.VerboseMsg("Bridge socket %d closed: %d %s", s.id, code, reason)
	s.finish(textEvent(bridge.EventClose, code, reason))
}

func (b *Bridge) dial(ctx context.Context, url string, subprotocols []string) (ws.Socket, error) {
	if err := b.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("dial(%s): %w", url, err)
	}
	defer b.limiter.Release()

	dialCtx, cancel := context.WithTimeout(ctx, b.opts.DialTimeout)
	defer cancel()
	return b.dialer.Dial(dialCtx, url, subprotocols)
}

// read queues message events until the socket ends and returns the close
// code and reason to report.
func (b *Bridge) read(s *socket, sock ws.Socket) (uint16, string) {
	acc := arena.NewAccumulator(b.opts.Arena, 0, 0)
	defer acc.Release()

	for {
		r, err := sock.NextReader(s.ctx)
		if err != nil {
			return b.closeCause(s, err)
		}
		if err := b.readMessage(r, acc); err != nil {
			if errors.Is(err, errTooLarge) {
				_ = sock.CloseOutput(s.ctx, 1009, "frame too large")
				s.push(textEvent(bridge.EventError, 0, err.Error()))
				return 1009, "frame too large"
			}
			return b.closeCause(s, err)
		}
		s.push(bridge.Event{Type: bridge.EventMessage, Data: b.foreignCopy(acc.Bytes())})
		acc.Reset()
	}
}

var errTooLarge = errors.New("inbound frame exceeds limit")

func (b *Bridge) readMessage(r io.Reader, acc *arena.Accumulator) error {
	for {
		acc.EnsureFree()
		free := acc.Free()
		if len(free) == 0 {
			return errTooLarge
		}
		n, err := r.Read(free)
		acc.Advance(n)
		if acc.Len() > b.opts.MaxFrameSize {
			return errTooLarge
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (b *Bridge) closeCause(s *socket, err error) (uint16, string) {
	if ce, ok := ws.AsCloseError(err); ok {
		return ce.Code, ce.Reason
	}
	if s.isCloseRequested() {
		if req, ok := s.requestedClose(); ok {
			return req.code, req.reason
		}
		return 1006, "connection aborted"
	}
	s.push(textEvent(bridge.EventError, 0, err.Error()))
	return 1006, err.Error()
}

// write sends queued buffers until the socket context ends.
func (b *Bridge) write(s *socket, sock ws.Socket) {
	defer func() {
		for {
			select {
			case buf := <-s.sendCh:
				b.opts.Arena.Return(buf)
			default:
				return
			}
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case buf := <-s.sendCh:
			err := sock.WriteMessage(s.ctx, buf.Bytes())
			b.opts.Arena.Return(buf)
			if err != nil {
				_ = sock.CloseNow()
				return
			}
		case req := <-s.closeR:
			s.setRequestedClose(req)
			if err := sock.CloseOutput(s.ctx, req.code, req.reason); err != nil {
				_ = sock.CloseNow()
				return
			}
		}
	}
}
