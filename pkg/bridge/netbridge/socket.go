package netbridge

import (
	"context"
	"sync"

	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/bridge"

	"github.com/eapache/queue"
)

type closeRequest struct {
	code   uint16
	reason string
}

type socket struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc
	sendCh chan *arena.Buffer
	closeR chan closeRequest

	mu             sync.Mutex
	state          bridge.ReadyState
	events         *queue.Queue // of bridge.Event
	closeRequested bool
	requested      *closeRequest
}

func (s *socket) getState() bridge.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *socket) isCloseRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeRequested
}

func (s *socket) setRequestedClose(req closeRequest) {
	s.mu.Lock()
	s.requested = &req
	s.mu.Unlock()
}

func (s *socket) requestedClose() (closeRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requested == nil {
		return closeRequest{}, false
	}
	return *s.requested, true
}

// open moves a connecting socket to open. It fails if a close was requested
// during the handshake.
func (s *socket) open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != bridge.StateConnecting {
		return false
	}
	s.state = bridge.StateOpen
	return true
}

func (s *socket) push(ev bridge.Event) {
	s.mu.Lock()
	s.events.Add(ev)
	s.mu.Unlock()
}

// finish queues the close event and marks the socket closed.
func (s *socket) finish(ev bridge.Event) {
	s.mu.Lock()
	s.state = bridge.StateClosed
	s.events.Add(ev)
	s.mu.Unlock()
}
