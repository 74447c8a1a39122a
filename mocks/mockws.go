package mocks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"dominicbreuker/netpump/pkg/transport/ws"
)

// ErrMockSocketClosed is returned by a MockSocket after CloseNow.
var ErrMockSocketClosed = errors.New("mock socket closed")

type mockMessage struct {
	data  []byte
	close *ws.CloseError
}

// MockSocket is an in-memory ws.Socket. The test plays the peer through
// Deliver and PeerClose and inspects what the code under test wrote via
// Sent. With Echo set, every written message is delivered back.
type MockSocket struct {
	Echo bool
	// WriteErr, if set, is returned by every WriteMessage call.
	WriteErr error

	inbox chan mockMessage

	mu        sync.Mutex
	cond      *sync.Cond
	sent      [][]byte
	closeCode uint16
	closeSent bool
	closed    bool
	done      chan struct{}
}

// NewMockSocket creates a connected mock socket.
func NewMockSocket() *MockSocket {
	s := &MockSocket{
		inbox: make(chan mockMessage, 1024),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Deliver queues p as an inbound binary message.
func (s *MockSocket) Deliver(p []byte) {
	s.inbox <- mockMessage{data: append([]byte(nil), p...)}
}

// PeerClose queues a close frame from the peer.
func (s *MockSocket) PeerClose(code uint16, reason string) {
	s.inbox <- mockMessage{close: &ws.CloseError{Code: code, Reason: reason}}
}

// NextReader implements ws.Socket.
func (s *MockSocket) NextReader(ctx context.Context) (io.Reader, error) {
	select {
	case m := <-s.inbox:
		if m.close != nil {
			return nil, m.close
		}
		return bytes.NewReader(m.data), nil
	case <-ctx.Done():
		_ = s.CloseNow()
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrMockSocketClosed
	}
}

// WriteMessage implements ws.Socket.
func (s *MockSocket) WriteMessage(ctx context.Context, p []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrMockSocketClosed
	}
	if s.WriteErr != nil {
		s.mu.Unlock()
		return s.WriteErr
	}
	cp := append([]byte(nil), p...)
	s.sent = append(s.sent, cp)
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.Echo {
		s.Deliver(cp)
	}
	return nil
}

// CloseOutput implements ws.Socket. With Echo set the peer answers with
// the same close frame.
func (s *MockSocket) CloseOutput(ctx context.Context, code uint16, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrMockSocketClosed
	}
	s.closeSent = true
	s.closeCode = code
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.Echo {
		s.PeerClose(code, reason)
	}
	return nil
}

// CloseNow implements ws.Socket.
func (s *MockSocket) CloseNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
		s.cond.Broadcast()
	}
	return nil
}

// Closed reports whether CloseNow was called.
func (s *MockSocket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseSent returns the code of the close frame written, if any.
func (s *MockSocket) CloseSent() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCode, s.closeSent
}

// Sent returns copies of all messages written so far.
func (s *MockSocket) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// WaitSent blocks until at least n messages were written or timeout passes.
func (s *MockSocket) WaitSent(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.sent) < n {
		if time.Now().After(deadline) {
			return false
		}
		s.cond.Wait()
	}
	return true
}

var _ ws.Socket = (*MockSocket)(nil)

// MockDialer hands out a fixed socket or fails with Err.
type MockDialer struct {
	Socket *MockSocket
	Err    error
	// Block, if non-nil, is waited on before Dial returns.
	Block chan struct{}

	mu    sync.Mutex
	dials []string
}

// Dial implements ws.Dialer.
func (d *MockDialer) Dial(ctx context.Context, url string, subprotocols []string) (ws.Socket, error) {
	d.mu.Lock()
	d.dials = append(d.dials, url)
	d.mu.Unlock()

	if d.Block != nil {
		select {
		case <-d.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Socket == nil {
		return NewMockSocket(), nil
	}
	return d.Socket, nil
}

// Dials returns the URLs dialed so far.
func (d *MockDialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

var _ ws.Dialer = (*MockDialer)(nil)
