package netbridge

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"dominicbreuker/netpump/mocks"
	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/bridge"
)

// pollUntil polls id until an event of type want arrives and returns it.
// Events of other types are collected into seen.
func pollUntil(t *testing.T, b *Bridge, id int, want bridge.EventType, seen *[]bridge.EventType) bridge.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev, ok := b.Poll(id)
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if seen != nil {
			*seen = append(*seen, ev.Type)
		}
		if ev.Type == want {
			return ev
		}
		ev.Release()
	}
	t.Fatalf("no %s event before timeout", want)
	return bridge.Event{}
}

func TestEchoRoundTrip(t *testing.T) {
	t.Parallel()

	a := arena.New()
	sock := mocks.NewMockSocket()
	sock.Echo = true
	b := New(&mocks.MockDialer{Socket: sock}, Options{Arena: a})
	defer b.Shutdown()

	id, err := b.Connect("ws://echo", nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	pollUntil(t, b, id, bridge.EventOpen, nil)
	if got := b.State(id); got != bridge.StateOpen {
		t.Fatalf("State() = %s, want open", got)
	}

	payload := []byte{1, 2, 3}
	if err := b.SendBinary(id, payload); err != nil {
		t.Fatalf("SendBinary() error = %v", err)
	}
	ev := pollUntil(t, b, id, bridge.EventMessage, nil)
	if !bytes.Equal(ev.Data.Bytes(), payload) {
		t.Errorf("message = %x, want %x", ev.Data.Bytes(), payload)
	}
	ev.Release()

	b.Close(id, 1000, "Normal Closure")
	ev = pollUntil(t, b, id, bridge.EventClose, nil)
	if ev.Code != 1000 {
		t.Errorf("close code = %d, want 1000", ev.Code)
	}
	if got := ev.TakeText(); got != "Normal Closure" {
		t.Errorf("close reason = %q", got)
	}
	if got := b.State(id); got != bridge.StateClosed {
		t.Errorf("State() after close = %s, want closed", got)
	}
}

func TestDialFailure(t *testing.T) {
	t.Parallel()

	b := New(&mocks.MockDialer{Err: errors.New("connection refused")}, Options{})
	defer b.Shutdown()

	id, err := b.Connect("ws://127.0.0.1:1", nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var seen []bridge.EventType
	ev := pollUntil(t, b, id, bridge.EventClose, &seen)
	if ev.Code != 1006 {
		t.Errorf("close code = %d, want 1006", ev.Code)
	}
	if len(seen) != 2 || seen[0] != bridge.EventError {
		t.Errorf("events = %v, want [error close]", seen)
	}
	if _, ok := b.Poll(id); ok {
		t.Error("Poll() returned an event after close")
	}
}

func TestSendWhenNotOpen(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	b := New(&mocks.MockDialer{Block: block}, Options{})
	defer b.Shutdown()

	if err := b.SendBinary(42, []byte("x")); !errors.Is(err, bridge.ErrUnknownSocket) {
		t.Errorf("SendBinary(unknown) error = %v", err)
	}

	id, _ := b.Connect("ws://slow", nil)
	if err := b.SendBinary(id, []byte("x")); !errors.Is(err, bridge.ErrNotOpen) {
		t.Errorf("SendBinary(connecting) error = %v", err)
	}
	close(block)
}

func TestCloseWhileConnecting(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	b := New(&mocks.MockDialer{Block: block}, Options{})
	defer b.Shutdown()

	id, _ := b.Connect("ws://slow", nil)
	b.Close(id, 1000, "")

	ev := pollUntil(t, b, id, bridge.EventClose, nil)
	if ev.Code != 1006 {
		t.Errorf("close code = %d, want 1006", ev.Code)
	}
}

func TestPeerClose(t *testing.T) {
	t.Parallel()

	sock := mocks.NewMockSocket()
	b := New(&mocks.MockDialer{Socket: sock}, Options{})
	defer b.Shutdown()

	id, _ := b.Connect("ws://x", nil)
	pollUntil(t, b, id, bridge.EventOpen, nil)
	sock.PeerClose(4001, "bye")

	var seen []bridge.EventType
	ev := pollUntil(t, b, id, bridge.EventClose, &seen)
	if ev.Code != 4001 || ev.TakeText() != "bye" {
		t.Errorf("close = %d, want 4001 bye", ev.Code)
	}
	if len(seen) != 1 {
		t.Errorf("events = %v, want only close", seen)
	}
}

func TestMessagesQueuedInOrder(t *testing.T) {
	t.Parallel()

	sock := mocks.NewMockSocket()
	b := New(&mocks.MockDialer{Socket: sock}, Options{})
	defer b.Shutdown()

	id, _ := b.Connect("ws://x", nil)
	pollUntil(t, b, id, bridge.EventOpen, nil)
	for i := 0; i < 100; i++ {
		sock.Deliver([]byte{byte(i)})
	}
	sock.PeerClose(1000, "")

	for next := 0; next < 100; next++ {
		ev := pollUntil(t, b, id, bridge.EventMessage, nil)
		if got := ev.Data.Bytes()[0]; got != byte(next) {
			t.Fatalf("message %d = %d", next, got)
		}
		ev.Release()
	}
	pollUntil(t, b, id, bridge.EventClose, nil)
}

func TestShutdownReleasesMemory(t *testing.T) {
	t.Parallel()

	a := arena.New()
	sock := mocks.NewMockSocket()
	b := New(&mocks.MockDialer{Socket: sock}, Options{Arena: a})

	id, _ := b.Connect("ws://x", nil)
	pollUntil(t, b, id, bridge.EventOpen, nil)
	for i := 0; i < 10; i++ {
		sock.Deliver(make([]byte, 512))
	}
	deadline := time.Now().Add(2 * time.Second)
	for b.Pending(id) < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	b.Shutdown()
	if inUse := a.Stats().InUse; inUse != 0 {
		t.Errorf("buffers in use after shutdown = %d, want 0", inUse)
	}
	if _, err := b.Connect("ws://x", nil); err == nil {
		t.Error("Connect() after Shutdown succeeded")
	}
}
