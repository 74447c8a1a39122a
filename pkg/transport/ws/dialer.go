package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

// CoderDialer dials sockets with github.com/coder/websocket.
type CoderDialer struct {
	// MaxFrameSize bounds a single inbound message. Zero disables the limit.
	MaxFrameSize int

	// TLSConfig, if set, is used for wss URLs.
	TLSConfig *tls.Config
}

// NewCoderDialer creates a coder/websocket dialer.
func NewCoderDialer(maxFrameSize int) *CoderDialer {
	return &CoderDialer{MaxFrameSize: maxFrameSize}
}

// Dial performs the opening handshake.
func (d *CoderDialer) Dial(ctx context.Context, url string, subprotocols []string) (Socket, error) {
	opts := &websocket.DialOptions{
		Subprotocols: subprotocols,
	}
	if d.TLSConfig != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: d.TLSConfig,
			},
		}
	}

	c, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket.Dial(%s): %w", url, err)
	}
	c.SetReadLimit(readLimit(d.MaxFrameSize))
	return &coderSocket{conn: c}, nil
}

type coderSocket struct {
	conn *websocket.Conn
	rd   coderReader
}

func (s *coderSocket) NextReader(ctx context.Context) (io.Reader, error) {
	_, r, err := s.conn.Reader(ctx)
	if err != nil {
		return nil, coderError(err)
	}
	s.rd.r = r
	return &s.rd, nil
}

func (s *coderSocket) WriteMessage(ctx context.Context, p []byte) error {
	return coderError(s.conn.Write(ctx, websocket.MessageBinary, p))
}

func (s *coderSocket) CloseOutput(_ context.Context, code uint16, reason string) error {
	return coderError(s.conn.Close(websocket.StatusCode(code), reason))
}

func (s *coderSocket) CloseNow() error {
	return s.conn.CloseNow()
}

// coderReader maps close errors surfacing mid-message.
type coderReader struct {
	r io.Reader
}

func (cr *coderReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if err != nil && err != io.EOF {
		err = coderError(err)
	}
	return n, err
}

func coderError(err error) error {
	if err == nil {
		return nil
	}
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: uint16(ce.Code), Reason: ce.Reason}
	}
	return err
}
