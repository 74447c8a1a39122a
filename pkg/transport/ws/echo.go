package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"dominicbreuker/netpump/pkg/log"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxConns is the number of concurrent echo connections served
// before new upgrades are answered with 503.
const DefaultMaxConns = 100

// EchoOptions configure the echo server.
type EchoOptions struct {
	MaxConns     int
	MaxFrameSize int
	Subprotocols []string

	// TLSConfig, if set, makes ListenAndServeEcho serve wss.
	TLSConfig *tls.Config

	// Gatherer, if set, is exposed on /metrics.
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// NewEchoRouter returns a router serving the echo endpoint on /ws, a health
// check on /health and, if opts.Gatherer is set, Prometheus metrics on /metrics.
func NewEchoRouter(ctx context.Context, opts EchoOptions) http.Handler {
	if opts.MaxConns <= 0 {
		opts.MaxConns = DefaultMaxConns
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/ws", createEchoHandler(ctx, opts, createConnectionSemaphore(opts.MaxConns)))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServeEcho serves NewEchoRouter on addr until ctx is cancelled.
func ListenAndServeEcho(ctx context.Context, addr string, opts EchoOptions) error {
	listener, err := createNetListener(addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	scheme := "ws"
	if opts.TLSConfig != nil {
		listener = tls.NewListener(listener, opts.TLSConfig)
		scheme = "wss"
	}
	opts.Logger.InfoMsg("Echo server listening on %s://%s/ws\n", scheme, listener.Addr())

	server := &http.Server{
		Handler: NewEchoRouter(ctx, opts),

		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serveWithContext(ctx, server, listener)
}

// createNetListener creates a TCP listener.
func createNetListener(addr string) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	nl, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("net.ListenTCP(tcp, %s): %w", tcpAddr.String(), err)
	}
	return nl, nil
}

// createConnectionSemaphore creates a buffered channel to limit concurrent connections.
func createConnectionSemaphore(capacity int) chan struct{} {
	sem := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		sem <- struct{}{}
	}
	return sem
}

// createEchoHandler creates an HTTP handler that upgrades to WebSocket and echoes messages.
func createEchoHandler(ctx context.Context, opts EchoOptions, sem chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-sem:
			defer func() { sem <- struct{}{} }()
			handleEcho(ctx, w, r, opts)

		default:
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	}
}

// handleEcho upgrades the HTTP connection and writes every message back.
func handleEcho(ctx context.Context, w http.ResponseWriter, r *http.Request, opts EchoOptions) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: opts.Subprotocols,
	})
	if err != nil {
		opts.Logger.ErrorMsg("websocket.Accept(): %s\n", err)
		return
	}
	defer func() { _ = c.CloseNow() }()
	c.SetReadLimit(readLimit(opts.MaxFrameSize))

	opts.Logger.VerboseMsg("New echo connection from %s", r.RemoteAddr)

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				opts.Logger.VerboseMsg("Echo connection from %s closed: %d", r.RemoteAddr, status)
				return
			}
			opts.Logger.VerboseMsg("Echo read from %s: %s", r.RemoteAddr, err)
			return
		}
		if err := c.Write(ctx, typ, data); err != nil {
			opts.Logger.VerboseMsg("Echo write to %s: %s", r.RemoteAddr, err)
			return
		}
	}
}

// serveWithContext runs the HTTP server with context cancellation support.
func serveWithContext(ctx context.Context, server *http.Server, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		_ = listener.Close()
		err := <-errCh
		if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("serving after cancellation: %w", err)

	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http.Server.Serve(): %w", err)
	}
}
