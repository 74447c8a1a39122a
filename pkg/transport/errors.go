package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Connect while a connection is active.
	ErrAlreadyRunning = errors.New("transport already running")
	// ErrDisposed is returned by operations on a disposed transport.
	ErrDisposed = errors.New("transport disposed")
	// ErrFrameTooLarge is returned by Send for frames above the configured limit.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Close codes used by the transports (RFC 6455 section 7.4.1).
const (
	CloseNormal        uint16 = 1000
	CloseAbnormal      uint16 = 1006
	CloseMessageTooBig uint16 = 1009
)

// Close reasons reported for locally initiated closes.
const (
	ReasonNormalClosure = "Normal Closure"
	ReasonLocalClose    = "Local Close"
)

// ErrorKind classifies errors raised through Events.OnError.
type ErrorKind int

const (
	// ConnectFailure means the handshake never completed.
	ConnectFailure ErrorKind = iota
	// TransportFailure means I/O failed mid-session.
	TransportFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectFailure:
		return "connect failure"
	case TransportFailure:
		return "transport failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error type passed to Events.OnError.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError wraps err with kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConnectFailure reports whether err is a connect failure.
func IsConnectFailure(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == ConnectFailure
}
