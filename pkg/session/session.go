// Package session tracks the lifecycle of one connection on top of a
// transport.Transport and fans its events out to registered listeners.
//
// All notifications run on the goroutine calling Tick. State changes caused
// by Connect or Close are announced on the next Tick.
package session

import (
	"context"
	"errors"
	"sync"

	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/metrics"
	"dominicbreuker/netpump/pkg/transport"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosing is returned by Connect while a close is in progress.
var ErrClosing = errors.New("session is closing")

const tracerName = "dominicbreuker/netpump/pkg/session"

// Options configure a Session.
type Options struct {
	Logger         *log.Logger
	Metrics        *metrics.Collector
	TracerProvider trace.TracerProvider
}

// Session is the connection state machine.
type Session struct {
	tr      transport.Transport
	url     string
	logger  *log.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	mu      sync.Mutex
	state   State
	pending []State

	openLs  listeners[func()]
	closeLs listeners[func(code uint16, reason string)]
	errorLs listeners[func(err error)]
	stateLs listeners[func(State)]
}

// New wraps tr. The session takes over tr's event callbacks.
func New(tr transport.Transport, url string, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	s := &Session{
		tr:      tr,
		url:     url,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.TracerProvider.Tracer(tracerName),
		state:   Disconnected,
	}
	tr.SetEvents(transport.Events{
		OnOpen:  s.handleOpen,
		OnClose: s.handleClose,
		OnError: s.handleError,
	})
	return s
}

// URL returns the endpoint the session connects to.
func (s *Session) URL() string {
	return s.url
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts connecting. It does nothing while connecting or connected
// and fails with ErrClosing while a close is in progress. An error from the
// transport faults the session if it is still connecting.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.Connect",
		trace.WithAttributes(attribute.String("netpump.url", s.url)))
	defer span.End()

	s.mu.Lock()
	switch s.state {
	case Connecting, Connected:
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("netpump.ignored", true))
		return nil
	case Closing:
		s.mu.Unlock()
		span.SetStatus(codes.Error, ErrClosing.Error())
		return ErrClosing
	}
	s.setLocked(Connecting)
	s.mu.Unlock()

	if err := s.tr.Connect(ctx, s.url); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.mu.Lock()
		if s.state == Connecting {
			s.setLocked(Faulted)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close starts a graceful close. It does nothing unless connecting or
// connected.
func (s *Session) Close() {
	_, span := s.tracer.Start(context.Background(), "session.Close")
	defer span.End()

	s.mu.Lock()
	if s.state != Connecting && s.state != Connected {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("netpump.ignored", true))
		return
	}
	s.setLocked(Closing)
	s.mu.Unlock()

	s.tr.Close()
}

// SendFrame hands frame to the transport unchanged.
func (s *Session) SendFrame(frame []byte) error {
	return s.tr.Send(frame)
}

// Tick pumps the transport once and delivers all notifications.
func (s *Session) Tick() {
	s.flush()
	s.tr.Tick()
	s.flush()
}

// Dispose releases the transport, moves to Disconnected and drops all
// listeners. The state change is the last notification delivered.
func (s *Session) Dispose() {
	s.tr.Dispose()

	s.mu.Lock()
	s.setLocked(Disconnected)
	s.mu.Unlock()
	s.flush()

	s.openLs.clear()
	s.closeLs.clear()
	s.errorLs.clear()
	s.stateLs.clear()
}

// OnOpen registers fn for open events.
func (s *Session) OnOpen(fn func()) (*Registration, error) {
	return s.openLs.add(fn)
}

// OnClose registers fn for close events.
func (s *Session) OnClose(fn func(code uint16, reason string)) (*Registration, error) {
	return s.closeLs.add(fn)
}

// OnError registers fn for error events.
func (s *Session) OnError(fn func(err error)) (*Registration, error) {
	return s.errorLs.add(fn)
}

// OnStateChanged registers fn for state changes.
func (s *Session) OnStateChanged(fn func(State)) (*Registration, error) {
	return s.stateLs.add(fn)
}

// setLocked moves to next and queues a notification if the state changed.
func (s *Session) setLocked(next State) {
	if s.state == next {
		return
	}
	s.logger.VerboseMsg("Session %s -> %s", s.state, next)
	s.state = next
	s.pending = append(s.pending, next)
	s.metrics.StateChanged(next.String())
}

// flush delivers queued state notifications outside the lock.
func (s *Session) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, st := range pending {
		for _, fn := range s.stateLs.snapshot() {
			s.notifyState(fn, st)
		}
	}
}

// notifyState runs one state listener, logging and swallowing a panic.
func (s *Session) notifyState(fn func(State), st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorMsg("state listener panic: %v\n", r)
		}
	}()
	fn(st)
}

func (s *Session) handleOpen() {
	s.mu.Lock()
	if s.state == Connecting {
		s.setLocked(Connected)
	}
	s.mu.Unlock()
	s.flush()

	for _, fn := range s.openLs.snapshot() {
		fn()
	}
}

func (s *Session) handleClose(code uint16, reason string) {
	s.mu.Lock()
	switch s.state {
	case Closing, Connected, Connecting:
		s.setLocked(Disconnected)
	}
	s.mu.Unlock()
	s.flush()

	for _, fn := range s.closeLs.snapshot() {
		fn(code, reason)
	}
}

func (s *Session) handleError(err error) {
	s.mu.Lock()
	if s.state != Disconnected {
		s.setLocked(Faulted)
	}
	s.mu.Unlock()
	s.flush()

	for _, fn := range s.errorLs.snapshot() {
		fn(err)
	}
}
