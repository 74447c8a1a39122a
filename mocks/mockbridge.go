package mocks

import (
	"fmt"
	"sync"

	"dominicbreuker/netpump/pkg/bridge"
)

// MockBridge is a scripted bridge.Bridge. Tests push events with Open,
// Message, Fail and PeerClose; the code under test collects them with Poll.
// Foreign memory handed out is tracked so leaks show up in Outstanding.
type MockBridge struct {
	// ConnectErr, if set, makes Connect fail.
	ConnectErr error
	// AutoOpen queues an open event on Connect.
	AutoOpen bool

	mu          sync.Mutex
	nextID      int
	sockets     map[int]*mockBridgeSocket
	outstanding int
	sent        [][]byte
	closes      []string
}

type mockBridgeSocket struct {
	state  bridge.ReadyState
	events []bridge.Event
}

// NewMockBridge creates an empty mock bridge.
func NewMockBridge() *MockBridge {
	return &MockBridge{nextID: 1, sockets: make(map[int]*mockBridgeSocket)}
}

// Connect implements bridge.Bridge.
func (m *MockBridge) Connect(url string, subprotocols []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return 0, m.ConnectErr
	}
	id := m.nextID
	m.nextID++
	s := &mockBridgeSocket{state: bridge.StateConnecting}
	m.sockets[id] = s
	if m.AutoOpen {
		s.state = bridge.StateOpen
		s.events = append(s.events, bridge.Event{Type: bridge.EventOpen})
	}
	return id, nil
}

// State implements bridge.Bridge.
func (m *MockBridge) State(id int) bridge.ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sockets[id]
	if !ok {
		return bridge.StateClosed
	}
	return s.state
}

// SendBinary implements bridge.Bridge.
func (m *MockBridge) SendBinary(id int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sockets[id]
	if !ok {
		return bridge.ErrUnknownSocket
	}
	if s.state != bridge.StateOpen {
		return bridge.ErrNotOpen
	}
	m.sent = append(m.sent, append([]byte(nil), p...))
	return nil
}

// Close implements bridge.Bridge. The close event is queued right away.
func (m *MockBridge) Close(id int, code uint16, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sockets[id]
	if !ok || s.state == bridge.StateClosing || s.state == bridge.StateClosed {
		return
	}
	m.closes = append(m.closes, fmt.Sprintf("%d %s", code, reason))
	s.state = bridge.StateClosing
	s.events = append(s.events, m.textEventLocked(bridge.EventClose, code, reason))
}

// Poll implements bridge.Bridge.
func (m *MockBridge) Poll(id int) (bridge.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sockets[id]
	if !ok || len(s.events) == 0 {
		return bridge.Event{}, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	if ev.Type == bridge.EventClose {
		s.state = bridge.StateClosed
		delete(m.sockets, id)
	}
	return ev, true
}

// Open marks the socket open and queues an open event.
func (m *MockBridge) Open(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[id]; ok {
		s.state = bridge.StateOpen
		s.events = append(s.events, bridge.Event{Type: bridge.EventOpen})
	}
}

// Message queues an inbound message.
func (m *MockBridge) Message(id int, p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[id]; ok {
		s.events = append(s.events, bridge.Event{Type: bridge.EventMessage, Data: m.foreignLocked(append([]byte(nil), p...))})
	}
}

// Fail queues an error event.
func (m *MockBridge) Fail(id int, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[id]; ok {
		s.events = append(s.events, m.textEventLocked(bridge.EventError, 0, msg))
	}
}

// PeerClose queues a close event as if the peer closed.
func (m *MockBridge) PeerClose(id int, code uint16, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[id]; ok {
		s.state = bridge.StateClosing
		s.events = append(s.events, m.textEventLocked(bridge.EventClose, code, reason))
	}
}

// Pending returns the number of unpolled events for id.
func (m *MockBridge) Pending(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[id]; ok {
		return len(s.events)
	}
	return 0
}

// Outstanding returns the number of foreign handles not yet released.
func (m *MockBridge) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outstanding
}

// Sent returns the frames passed to SendBinary.
func (m *MockBridge) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

// Closes returns the "code reason" of every Close call.
func (m *MockBridge) Closes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closes...)
}

func (m *MockBridge) foreignLocked(b []byte) *bridge.Foreign {
	m.outstanding++
	return bridge.NewForeign(b, func() {
		m.mu.Lock()
		m.outstanding--
		m.mu.Unlock()
	})
}

func (m *MockBridge) textEventLocked(typ bridge.EventType, code uint16, text string) bridge.Event {
	return bridge.Event{Type: typ, Code: code, Text: m.foreignLocked([]byte(text))}
}

var _ bridge.Bridge = (*MockBridge)(nil)
