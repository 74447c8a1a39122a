// Package ws provides the blocking WebSocket primitives used by netpump:
// a message-oriented Socket with coder/websocket and gorilla/websocket
// drivers, and an echo server used by the serve command and by tests.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Socket is a blocking, message-oriented duplex connection. One goroutine
// may read while another writes; CloseNow may be called from any goroutine.
type Socket interface {
	// NextReader blocks until the next data message starts and returns a
	// reader for its payload. The reader hits io.EOF at the message boundary.
	// A close frame from the peer is returned as a *CloseError. Cancelling
	// ctx unblocks a pending read and tears the connection down.
	NextReader(ctx context.Context) (io.Reader, error)
	// WriteMessage sends p as one binary message.
	WriteMessage(ctx context.Context, p []byte) error
	// CloseOutput writes a close frame with code and reason.
	CloseOutput(ctx context.Context, code uint16, reason string) error
	// CloseNow tears the connection down without a close handshake.
	CloseNow() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string, subprotocols []string) (Socket, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string, subprotocols []string) (Socket, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string, subprotocols []string) (Socket, error) {
	return f(ctx, url, subprotocols)
}

// CloseError is returned by NextReader when the peer sent a close frame.
type CloseError struct {
	Code   uint16
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("websocket closed: %d %s", e.Code, e.Reason)
}

// AsCloseError extracts a *CloseError from err.
func AsCloseError(err error) (*CloseError, bool) {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// readLimit is the driver read limit for a frame size limit. It lets one
// byte past the limit through so the caller can detect oversize frames
// itself and answer with a proper close code.
func readLimit(maxFrameSize int) int64 {
	if maxFrameSize <= 0 {
		return -1
	}
	return int64(maxFrameSize) + 1
}
