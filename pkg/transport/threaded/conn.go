package threaded

import (
	"context"
	"sync"
	"sync/atomic"

	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/transport/ws"

	"github.com/eapache/queue"
)

// conn is one live connection: the socket, the loop context and the send
// queue shared between Send and the send loop.
type conn struct {
	sock   ws.Socket
	ctx    context.Context
	cancel context.CancelFunc

	closeRequested atomic.Bool
	errorReported  atomic.Bool
	finishing      atomic.Bool

	sendDone     chan struct{}
	recvDone     chan struct{}
	closeWritten chan struct{}
	closeOnce    sync.Once

	sendMu       sync.Mutex
	sendCond     *sync.Cond
	sendQ        *queue.Queue // of *arena.Buffer
	closePending bool
	stopping     bool
}

func newConn(sock ws.Socket, ctx context.Context, cancel context.CancelFunc) *conn {
	c := &conn{
		sock:     sock,
		ctx:      ctx,
		cancel:   cancel,
		sendDone:     make(chan struct{}),
		recvDone:     make(chan struct{}),
		closeWritten: make(chan struct{}),
		sendQ:        queue.New(),
	}
	c.sendCond = sync.NewCond(&c.sendMu)
	return c
}

// done reports whether the receive loop has exited.
func (c *conn) done() bool {
	select {
	case <-c.recvDone:
		return true
	default:
		return false
	}
}

// enqueue adds buf to the send queue. It reports false if the connection
// no longer accepts frames; the caller keeps ownership of buf then.
func (c *conn) enqueue(buf *arena.Buffer) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.stopping || c.closePending || c.closeRequested.Load() {
		return false
	}
	c.sendQ.Add(buf)
	c.sendCond.Signal()
	return true
}

// requestClose drops pending frames, returning them to the caller, and
// asks the send loop to write a close frame.
func (c *conn) requestClose() []*arena.Buffer {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	dropped := c.drainLocked()
	if !c.stopping {
		c.closePending = true
		c.sendCond.Broadcast()
	}
	return dropped
}

// stop makes the send loop exit and returns the frames it never sent.
func (c *conn) stop() []*arena.Buffer {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.stopping = true
	c.sendCond.Broadcast()
	return c.drainLocked()
}

// markCloseWritten records that the close frame write has finished.
func (c *conn) markCloseWritten() {
	c.closeOnce.Do(func() { close(c.closeWritten) })
}

func (c *conn) stopped() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.stopping
}

func (c *conn) drainLocked() []*arena.Buffer {
	n := c.sendQ.Length()
	if n == 0 {
		return nil
	}
	out := make([]*arena.Buffer, 0, n)
	for c.sendQ.Length() > 0 {
		out = append(out, c.sendQ.Remove().(*arena.Buffer))
	}
	return out
}

type sendItem struct {
	buf   *arena.Buffer
	close bool
}

// next blocks until there is something to send or the loop must stop. A
// requested close frame is still handed out after stop.
func (c *conn) next() (sendItem, bool) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for !c.stopping && !c.closePending && c.sendQ.Length() == 0 {
		c.sendCond.Wait()
	}
	if c.closePending {
		c.closePending = false
		return sendItem{close: true}, true
	}
	if c.stopping {
		return sendItem{}, false
	}
	return sendItem{buf: c.sendQ.Remove().(*arena.Buffer)}, true
}
