package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// GorillaDialer dials sockets with github.com/gorilla/websocket.
type GorillaDialer struct {
	// MaxFrameSize bounds a single inbound message. Zero disables the limit.
	MaxFrameSize     int
	HandshakeTimeout time.Duration

	// TLSConfig, if set, is used for wss URLs.
	TLSConfig *tls.Config
}

// NewGorillaDialer creates a gorilla/websocket dialer.
func NewGorillaDialer(maxFrameSize int) *GorillaDialer {
	return &GorillaDialer{MaxFrameSize: maxFrameSize, HandshakeTimeout: 10 * time.Second}
}

// Dial performs the opening handshake.
func (d *GorillaDialer) Dial(ctx context.Context, url string, subprotocols []string) (Socket, error) {
	dialer := websocket.Dialer{
		Subprotocols:     subprotocols,
		HandshakeTimeout: d.HandshakeTimeout,
		TLSClientConfig:  d.TLSConfig,
	}
	c, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket.DialContext(%s): %w", url, err)
	}
	if d.MaxFrameSize > 0 {
		c.SetReadLimit(readLimit(d.MaxFrameSize))
	}
	return &gorillaSocket{conn: c}, nil
}

// gorillaSocket binds read cancellation to a context by closing the
// connection once the context is done. The binding is made once per
// distinct context so steady-state reads do not register anything.
type gorillaSocket struct {
	conn *websocket.Conn

	mu      sync.Mutex
	watched context.Context
	stop    func() bool
}

func (s *gorillaSocket) watch(ctx context.Context) {
	if ctx.Done() == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watched == ctx {
		return
	}
	if s.stop != nil {
		s.stop()
	}
	s.watched = ctx
	s.stop = context.AfterFunc(ctx, func() { _ = s.conn.Close() })
}

func (s *gorillaSocket) NextReader(ctx context.Context) (io.Reader, error) {
	s.watch(ctx)
	_, r, err := s.conn.NextReader()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, gorillaError(err)
	}
	return r, nil
}

func (s *gorillaSocket) WriteMessage(_ context.Context, p []byte) error {
	return gorillaError(s.conn.WriteMessage(websocket.BinaryMessage, p))
}

func (s *gorillaSocket) CloseOutput(_ context.Context, code uint16, reason string) error {
	msg := websocket.FormatCloseMessage(int(code), reason)
	return gorillaError(s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
}

func (s *gorillaSocket) CloseNow() error {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.mu.Unlock()
	return s.conn.Close()
}

func gorillaError(err error) error {
	if err == nil {
		return nil
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: uint16(ce.Code), Reason: ce.Text}
	}
	return err
}
