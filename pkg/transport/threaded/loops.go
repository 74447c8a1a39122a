package threaded

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/transport"
	"dominicbreuker/netpump/pkg/transport/ws"
)

// closeWriteTimeout bounds the graceful close write.
const closeWriteTimeout = time.Second

// sendLoop writes queued frames until the connection stops. Every buffer
// taken from the queue is returned to the arena whatever the outcome.
func (t *Transport) sendLoop(c *conn) {
	defer close(c.sendDone)

	for {
		item, ok := c.next()
		if !ok {
			break
		}
		if item.close {
			t.writeClose(c)
			c.markCloseWritten()
			// the peer's answer, if any, has been read by now
			c.cancel()
			continue
		}
		t.write(c, item.buf)
	}

	for _, buf := range c.stop() {
		t.opts.Arena.Return(buf)
	}
}

func (t *Transport) write(c *conn, buf *arena.Buffer) {
	defer t.opts.Arena.Return(buf)

	n := buf.N
	if err := c.sock.WriteMessage(c.ctx, buf.Bytes()); err != nil {
		t.reportError(c, fmt.Errorf("write: %w", err))
		// The receive loop notices the broken socket and reports the close.
		_ = c.sock.CloseNow()
		return
	}
	t.opts.Metrics.FrameSent(backendName, n)
}

func (t *Transport) writeClose(c *conn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeWriteTimeout)
	defer cancel()
	if err := c.sock.CloseOutput(ctx, transport.CloseNormal, transport.ReasonNormalClosure); err != nil {
		t.reportError(c, fmt.Errorf("close: %w", err))
	}
}

// receiveLoop reads whole messages and hands each one to the sink as a
// borrowed slice. When the socket closes it stops the send loop, waits for
// it and queues exactly one close event; nothing is queued for this
// connection afterwards.
func (t *Transport) receiveLoop(c *conn) {
	acc := arena.NewAccumulator(t.opts.Arena, t.opts.RecvBufferSize, t.opts.RecvMinFree)

	code, reason := t.readFrames(c, acc)

	c.finishing.Store(true)
	t.active.CompareAndSwap(c, nil)
	if c.closeRequested.Load() {
		join(c.closeWritten, closeWriteTimeout)
	}
	for _, buf := range c.stop() {
		t.opts.Arena.Return(buf)
	}
	_ = c.sock.CloseNow()
	c.cancel()
	<-c.sendDone
	acc.Release()

	t.opts.Logger.VerboseMsg("Connection closed: %d %s", code, reason)
	t.pushClose(code, reason)
	close(c.recvDone)
}

// readFrames runs until the connection ends and returns the close code and
// reason to report.
func (t *Transport) readFrames(c *conn, acc *arena.Accumulator) (uint16, string) {
	for {
		r, err := c.sock.NextReader(c.ctx)
		if err != nil {
			return t.closeCause(c, err)
		}
		if err := t.readMessage(r, acc); err != nil {
			if errors.Is(err, errFrameTooLarge) {
				t.reportError(c, fmt.Errorf("%d bytes: %w", acc.Len(), transport.ErrFrameTooLarge))
				_ = c.sock.CloseOutput(c.ctx, transport.CloseMessageTooBig, "frame too large")
				return transport.CloseMessageTooBig, "frame too large"
			}
			return t.closeCause(c, err)
		}

		n := acc.Len()
		t.sink.OnFrame(t.opts.SessionID, acc.Bytes())
		t.opts.Metrics.FrameReceived(backendName, n)
		acc.Reset()
	}
}

// readMessage appends one message to acc, growing it as needed.
func (t *Transport) readMessage(r io.Reader, acc *arena.Accumulator) error {
	for {
		if acc.EnsureFree() {
			t.opts.Metrics.BufferGrow(backendName)
		}
		free := acc.Free()
		if len(free) == 0 {
			return errFrameTooLarge
		}
		n, err := r.Read(free)
		acc.Advance(n)
		if acc.Len() > t.opts.MaxFrameSize {
			return errFrameTooLarge
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// closeCause maps the error that ended the read loop to a close code and
// reason, queuing an error event for abnormal endings.
func (t *Transport) closeCause(c *conn, err error) (uint16, string) {
	if c.closeRequested.Load() {
		return transport.CloseNormal, transport.ReasonLocalClose
	}
	if ce, ok := ws.AsCloseError(err); ok {
		return ce.Code, ce.Reason
	}
	t.reportError(c, fmt.Errorf("read: %w", err))
	return transport.CloseAbnormal, err.Error()
}
