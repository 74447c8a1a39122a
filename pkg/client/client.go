// Package client composes a session with a transport backend and hands
// inbound frames to a FrameHandler, the codec layer above netpump.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/metrics"
	"dominicbreuker/netpump/pkg/session"
	"dominicbreuker/netpump/pkg/transport"
	"dominicbreuker/netpump/pkg/transport/polling"
	"dominicbreuker/netpump/pkg/transport/threaded"

	"go.opentelemetry.io/otel/trace"
)

// FrameHandler receives inbound frames. The frame is borrowed: it is only
// valid for the duration of the call.
type FrameHandler interface {
	OnFrame(sessionID int, frame []byte)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(sessionID int, frame []byte)

// OnFrame calls f.
func (f FrameHandlerFunc) OnFrame(sessionID int, frame []byte) { f(sessionID, frame) }

// FrameError reports a panic raised by the FrameHandler.
type FrameError struct {
	SessionID int
	Recovered interface{}
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame handler panic (session %d): %v", e.SessionID, e.Recovered)
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithArena sets the buffer arena used by the transport.
func WithArena(a *arena.Arena) Option {
	return func(c *Client) { c.arena = a }
}

// WithTracerProvider sets the tracer provider of the session.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// Client is one netpump connection: a session on the backend chosen by the
// config, with inbound frames tagged with the session id and handed to the
// frame handler. All events fire from Tick.
type Client struct {
	cfg     config.Client
	handler FrameHandler
	session *session.Session

	logger         *log.Logger
	metrics        *metrics.Collector
	arena          *arena.Arena
	tracerProvider trace.TracerProvider

	// shutdown releases a bridge the client created itself.
	shutdown func()

	mu           sync.Mutex
	onFrameError func(err error)
}

// New validates cfg and builds the client on the backend it names.
func New(cfg *config.Client, handler FrameHandler, opts ...Option) (*Client, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	if handler == nil {
		return nil, fmt.Errorf("a frame handler is required")
	}

	c := &Client{
		cfg:     *cfg,
		handler: handler,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.NewLogger(cfg.Verbose)
	}

	topts := transport.Options{
		SessionID:        cfg.SessionID,
		Subprotocols:     cfg.Subprotocols,
		MaxFrameSize:     cfg.MaxFrameSize,
		MaxEventsPerTick: cfg.MaxEventsPerTick,
		MaxBytesPerTick:  cfg.MaxBytesPerTick,
		RecvBufferSize:   cfg.RecvBufferSize,
		RecvMinFree:      cfg.RecvMinFree,
		Arena:            c.arena,
		Logger:           c.logger,
		Metrics:          c.metrics,
	}

	var tr transport.Transport
	switch cfg.Backend {
	case config.BackendPolling:
		b, err := config.GetBridge(cfg.Deps, cfg)
		if err != nil {
			return nil, fmt.Errorf("config.GetBridge(): %w", err)
		}
		if s, ok := b.(interface{ Shutdown() }); ok && (cfg.Deps == nil || cfg.Deps.Bridge == nil) {
			c.shutdown = s.Shutdown
		}
		tr = polling.New(b, c, topts)
	default:
		d, err := config.GetDialer(cfg.Deps, cfg)
		if err != nil {
			return nil, fmt.Errorf("config.GetDialer(): %w", err)
		}
		tr = threaded.New(d, c, topts)
	}

	c.session = session.New(tr, cfg.URL, session.Options{
		Logger:         c.logger,
		Metrics:        c.metrics,
		TracerProvider: c.tracerProvider,
	})
	c.logger.VerboseMsg("Client using %s backend for %s", cfg.Backend, cfg.URL)
	return c, nil
}

// OnFrame implements transport.FrameSink. It tags the frame with the
// client's session id and recovers a panicking handler so the receive path
// keeps running.
func (c *Client) OnFrame(_ int, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.HandlerPanic(c.cfg.Backend)
			err := &FrameError{SessionID: c.cfg.SessionID, Recovered: r}
			c.logger.ErrorMsg("%s\n", err)

			c.mu.Lock()
			fn := c.onFrameError
			c.mu.Unlock()
			if fn != nil {
				fn(err)
			}
		}
	}()
	c.handler.OnFrame(c.cfg.SessionID, frame)
}

// OnFrameError sets the callback for frame handler panics. It runs on the
// goroutine that delivered the frame.
func (c *Client) OnFrameError(fn func(err error)) {
	c.mu.Lock()
	c.onFrameError = fn
	c.mu.Unlock()
}

// Connect starts connecting to the configured URL.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.session.Connect(ctx); err != nil {
		return fmt.Errorf("connect(%s): %w", c.cfg.URL, err)
	}
	return nil
}

// Close starts a graceful close.
func (c *Client) Close() {
	c.session.Close()
}

// SendFrame forwards frame unchanged. It is a silent no-op while not
// connected.
func (c *Client) SendFrame(frame []byte) error {
	return c.session.SendFrame(frame)
}

// Tick pumps the backend once. Call it from one goroutine at a fixed rate.
func (c *Client) Tick() {
	c.session.Tick()
}

// State returns the session state.
func (c *Client) State() session.State {
	return c.session.State()
}

// SessionID returns the id frames are tagged with.
func (c *Client) SessionID() int {
	return c.cfg.SessionID
}

// Backend returns the backend name.
func (c *Client) Backend() string {
	return c.cfg.Backend
}

// Session returns the underlying session.
func (c *Client) Session() *session.Session {
	return c.session
}

// OnOpen registers fn for open events.
func (c *Client) OnOpen(fn func()) (*session.Registration, error) {
	return c.session.OnOpen(fn)
}

// OnClose registers fn for close events.
func (c *Client) OnClose(fn func(code uint16, reason string)) (*session.Registration, error) {
	return c.session.OnClose(fn)
}

// OnError registers fn for error events.
func (c *Client) OnError(fn func(err error)) (*session.Registration, error) {
	return c.session.OnError(fn)
}

// OnStateChanged registers fn for state changes.
func (c *Client) OnStateChanged(fn func(session.State)) (*session.Registration, error) {
	return c.session.OnStateChanged(fn)
}

// Dispose closes the connection and releases the backend.
func (c *Client) Dispose() {
	c.session.Dispose()
	if c.shutdown != nil {
		c.shutdown()
	}
}
