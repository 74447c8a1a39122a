// Package entrypoint runs the netpump commands: an interactive client that
// pumps stdin lines to a WebSocket server and prints what comes back, and
// the echo server used to test against.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dominicbreuker/netpump/pkg/client"
	"dominicbreuker/netpump/pkg/config"
	"dominicbreuker/netpump/pkg/frame"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/metrics"
	"dominicbreuker/netpump/pkg/pipeio"
	"dominicbreuker/netpump/pkg/session"
	"dominicbreuker/netpump/pkg/terminal"
	"dominicbreuker/netpump/pkg/tickloop"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// DefaultTickInterval pumps the client at 60 Hz.
const DefaultTickInterval = time.Second / 60

// DefaultMaxLine bounds stdin lines when no frame size limit is configured.
const DefaultMaxLine = 64 * 1024

const closeGrace = 2 * time.Second

// ConnectOptions control how stdin lines become frames and how received
// frames are printed. The zero value sends every line as a raw frame.
type ConnectOptions struct {
	// Envelope wraps lines as [opcode][payload] frames and prints received
	// frames as "[opcode] payload".
	Envelope bool
	Opcode   int32
	// FrameLog, if set, is a file receiving a hex dump of every frame.
	FrameLog     string
	TickInterval time.Duration
}

// Connect runs the client described by cfg until the connection ends or
// ctx is cancelled.
func Connect(ctx context.Context, cfg *config.Client, opts ConnectOptions) error {
	return connect(ctx, cfg, opts, realClientFactory())
}

func connect(parent context.Context, cfg *config.Client, opts ConnectOptions, newClient clientFactory) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	logger := log.NewLogger(cfg.Verbose)
	stdin := config.GetStdinFunc(cfg.Deps)()
	stdio := pipeio.NewStdio(stdin, config.GetStdoutFunc(cfg.Deps)())
	defer stdio.Close()

	var frameLog *log.FrameLog
	if opts.FrameLog != "" {
		fl, err := log.NewFrameLog(opts.FrameLog)
		if err != nil {
			return fmt.Errorf("log.NewFrameLog(%s): %w", opts.FrameLog, err)
		}
		defer fl.Close()
		frameLog = fl
	}

	clientOpts := []client.Option{client.WithLogger(logger)}
	var reg *prometheus.Registry
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		collector, err := metrics.NewCollector("", reg)
		if err != nil {
			return fmt.Errorf("metrics.NewCollector(): %w", err)
		}
		clientOpts = append(clientOpts, client.WithMetrics(collector))
	}

	c, err := newClient(cfg, newPrinter(stdio, frameLog, opts, logger), clientOpts...)
	if err != nil {
		return fmt.Errorf("client.New(): %w", err)
	}
	defer c.Dispose()

	w, err := watch(c, logger, cancel)
	if err != nil {
		return err
	}

	out := newOutbox(c, frameLog, opts, logger)
	loop := tickloop.New()
	loop.Register(out)
	loop.Register(c)

	if terminal.IsTerminal(stdin) {
		logger.InfoMsg("Each line you type is sent as one frame, Ctrl-D closes the connection\n")
	}
	logger.InfoMsg("Connecting to %s (%s backend)\n", cfg.URL, cfg.Backend)
	if err := c.Connect(ctx); err != nil {
		return err
	}

	maxLine := DefaultMaxLine
	if cfg.MaxFrameSize > 0 {
		maxLine = cfg.MaxFrameSize
	}
	go readLines(ctx, stdio, maxLine, out, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx, opts.TickInterval)
	})
	if reg != nil {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, reg, logger)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		closeGracefully(c, w, loop, opts.TickInterval)
		return err
	}

	closeGracefully(c, w, loop, opts.TickInterval)
	return w.result()
}

// closeGracefully starts a close if the connection is still up and keeps
// pumping until the close event arrives or closeGrace passes.
func closeGracefully(c clientInterface, w *watcher, loop *tickloop.Loop, interval time.Duration) {
	if w.isClosed() {
		return
	}
	if s := c.State(); s == session.Connecting || s == session.Connected {
		c.Close()
	}

	deadline := time.Now().Add(closeGrace)
	for time.Now().Before(deadline) {
		loop.TickAll()
		if w.isClosed() {
			return
		}
		time.Sleep(interval)
	}
}

// watcher follows the session and cancels the run on the close event,
// which is the last event of every connection.
type watcher struct {
	mu      sync.Mutex
	closed  bool
	faulted bool
	lastErr error
}

func watch(c clientInterface, logger *log.Logger, cancel context.CancelFunc) (*watcher, error) {
	w := &watcher{}

	if _, err := c.OnOpen(func() {
		logger.InfoMsg("Connected\n")
	}); err != nil {
		return nil, err
	}
	if _, err := c.OnError(func(err error) {
		logger.ErrorMsg("%s\n", err)
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
	}); err != nil {
		return nil, err
	}
	if _, err := c.OnClose(func(code uint16, reason string) {
		logger.InfoMsg("Connection closed (%d %s)\n", code, reason)
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		cancel()
	}); err != nil {
		return nil, err
	}
	if _, err := c.OnStateChanged(func(s session.State) {
		logger.VerboseMsg("Session %d: %s", c.SessionID(), s)
		if s == session.Faulted {
			w.mu.Lock()
			w.faulted = true
			w.mu.Unlock()
		}
	}); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *watcher) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *watcher) result() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.faulted {
		return nil
	}
	if w.lastErr == nil {
		return fmt.Errorf("connection faulted")
	}
	return fmt.Errorf("connection faulted: %w", w.lastErr)
}

// readLines feeds stdin lines to out until input ends or ctx is done.
func readLines(ctx context.Context, stdio *pipeio.Stdio, maxLine int, out *outbox, logger *log.Logger) {
	defer out.finish()

	err := pipeio.ScanLines(stdio, maxLine, func(line []byte) error {
		return out.push(ctx, line)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorMsg("Reading input: %s\n", err)
	}
}

// printer writes received frames to stdout.
type printer struct {
	stdio    *pipeio.Stdio
	frameLog *log.FrameLog
	logger   *log.Logger
	router   *frame.Router
}

func newPrinter(stdio *pipeio.Stdio, frameLog *log.FrameLog, opts ConnectOptions, logger *log.Logger) *printer {
	p := &printer{stdio: stdio, frameLog: frameLog, logger: logger}
	if opts.Envelope {
		p.router = frame.NewRouter(logger)
		p.router.OnUnhandled = func(_ int, opcode int32, payload []byte) {
			p.write([]byte(fmt.Sprintf("[%d] %s", opcode, payload)))
		}
		p.router.OnParseError = func(sessionID int, err error) {
			logger.ErrorMsg("Session %d: %s\n", sessionID, err)
		}
	}
	return p
}

// OnFrame implements client.FrameHandler.
func (p *printer) OnFrame(sessionID int, f []byte) {
	if err := p.frameLog.Received(sessionID, f); err != nil {
		p.logger.ErrorMsg("%s\n", err)
	}
	if p.router != nil {
		p.router.OnFrame(sessionID, f)
		return
	}
	p.write(f)
}

func (p *printer) write(line []byte) {
	if err := pipeio.WriteLine(p.stdio, line); err != nil {
		p.logger.VerboseMsg("Writing output: %s", err)
	}
}
