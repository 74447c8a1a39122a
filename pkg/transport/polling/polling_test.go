package polling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"dominicbreuker/netpump/mocks"
	"dominicbreuker/netpump/pkg/arena"
	"dominicbreuker/netpump/pkg/transport"
)

type recorder struct {
	events []string
	errs   []error
	frames [][]byte
}

func (r *recorder) OnFrame(sessionID int, frame []byte) {
	r.frames = append(r.frames, append([]byte(nil), frame...))
}

func (r *recorder) handlers() transport.Events {
	return transport.Events{
		OnOpen: func() { r.events = append(r.events, "open") },
		OnClose: func(code uint16, reason string) {
			r.events = append(r.events, fmt.Sprintf("close %d %s", code, reason))
		},
		OnError: func(err error) {
			r.errs = append(r.errs, err)
			r.events = append(r.events, "error")
		},
	}
}

func newTransport(t *testing.T, b *mocks.MockBridge, opts transport.Options) (*Transport, *recorder) {
	t.Helper()
	rec := &recorder{}
	if opts.Arena == nil {
		opts.Arena = arena.New()
	}
	tr := New(b, rec, opts)
	tr.SetEvents(rec.handlers())
	t.Cleanup(tr.Dispose)
	return tr, rec
}

func TestConnectRefused(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	b.ConnectErr = errors.New("connection refused")
	tr, rec := newTransport(t, b, transport.Options{})

	if err := tr.Connect(context.Background(), "ws://127.0.0.1:1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	tr.Tick()

	want := []string{"error", "close 1006 connection refused"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Fatalf("events = %q, want %q", rec.events, want)
	}
	if !transport.IsConnectFailure(rec.errs[0]) {
		t.Errorf("error %v is not a connect failure", rec.errs[0])
	}
}

func TestOpenObservedOnTick(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	tr, rec := newTransport(t, b, transport.Options{})

	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := tr.Connect(context.Background(), "ws://x"); !errors.Is(err, transport.ErrAlreadyRunning) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyRunning", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("events before tick = %q", rec.events)
	}
	tr.Tick()
	if len(rec.events) != 0 {
		t.Fatalf("events while connecting = %q", rec.events)
	}

	b.Open(tr.id)
	tr.Tick()
	if fmt.Sprint(rec.events) != "[open]" {
		t.Errorf("events = %q, want [open]", rec.events)
	}
	if !tr.IsOpen() {
		t.Error("IsOpen() = false")
	}
}

func TestSend(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	b.AutoOpen = true
	a := arena.New()
	tr, _ := newTransport(t, b, transport.Options{Arena: a, MaxFrameSize: 64})

	if err := tr.Send([]byte("early")); err != nil {
		t.Errorf("Send() before connect error = %v", err)
	}
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	tr.Tick()

	frame := []byte{1, 2, 3}
	if err := tr.Send(frame); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := tr.Send(make([]byte, 65)); !errors.Is(err, transport.ErrFrameTooLarge) {
		t.Errorf("Send(oversize) error = %v, want ErrFrameTooLarge", err)
	}

	sent := b.Sent()
	if len(sent) != 1 || !bytes.Equal(sent[0], frame) {
		t.Errorf("sent = %x, want [%x]", sent, frame)
	}
	if a.Stats().InUse != 0 {
		t.Errorf("buffers in use = %d, want 0", a.Stats().InUse)
	}
}

func TestEventCapPerTick(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	tr, rec := newTransport(t, b, transport.Options{MaxEventsPerTick: 128})
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	id := tr.id
	for i := 0; i < 1000; i++ {
		b.Message(id, []byte{byte(i)})
	}

	tr.Tick()
	if got := len(rec.frames); got != 128 {
		t.Errorf("frames after first tick = %d, want 128", got)
	}
	if got := b.Pending(id); got != 872 {
		t.Errorf("pending after first tick = %d, want 872", got)
	}

	tr.Tick()
	if got := len(rec.frames); got != 256 {
		t.Errorf("frames after second tick = %d, want 256", got)
	}
	for i, f := range rec.frames {
		if f[0] != byte(i) {
			t.Fatalf("frame %d = %d, out of order", i, f[0])
		}
	}
}

func TestByteCapPerTick(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	tr, rec := newTransport(t, b, transport.Options{MaxBytesPerTick: 256 * 1024})
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	id := tr.id
	for i := 0; i < 10; i++ {
		b.Message(id, make([]byte, 64*1024))
	}

	tr.Tick()
	if got := len(rec.frames); got != 4 {
		t.Errorf("frames after first tick = %d, want 4", got)
	}
	if got := b.Pending(id); got != 6 {
		t.Errorf("pending = %d, want 6", got)
	}
}

func TestForeignMemoryReleased(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	a := arena.New()
	tr, rec := newTransport(t, b, transport.Options{Arena: a})
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	id := tr.id
	b.Open(id)
	b.Message(id, []byte("hello"))
	b.Message(id, nil)
	b.Fail(id, "boom")
	b.PeerClose(id, 4001, "bye")

	tr.Tick()

	want := []string{"open", "error", "close 4001 bye"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %q, want %q", rec.events, want)
	}
	if len(rec.frames) != 1 || string(rec.frames[0]) != "hello" {
		t.Errorf("frames = %q, want [hello]", rec.frames)
	}
	if n := b.Outstanding(); n != 0 {
		t.Errorf("outstanding foreign handles = %d, want 0", n)
	}
	if a.Stats().InUse != 0 {
		t.Errorf("buffers in use = %d, want 0", a.Stats().InUse)
	}
	if tr.IsOpen() {
		t.Error("IsOpen() = true after close")
	}
}

func TestLocalClose(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	b.AutoOpen = true
	tr, rec := newTransport(t, b, transport.Options{})
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	tr.Tick()

	tr.Close()
	tr.Close()
	if len(rec.events) != 1 {
		t.Fatalf("close delivered synchronously: %q", rec.events)
	}
	tr.Tick()

	want := []string{"open", "close 1000 Normal Closure"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %q, want %q", rec.events, want)
	}
	if closes := b.Closes(); len(closes) != 1 {
		t.Errorf("bridge closes = %q, want one", closes)
	}

	// Reconnect after close.
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("reconnect error = %v", err)
	}
	tr.Tick()
	if rec.events[len(rec.events)-1] != "open" {
		t.Errorf("last event = %q, want open", rec.events[len(rec.events)-1])
	}
}

func TestDisposeReleasesPending(t *testing.T) {
	t.Parallel()

	b := mocks.NewMockBridge()
	tr, rec := newTransport(t, b, transport.Options{})
	if err := tr.Connect(context.Background(), "ws://x"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	b.Open(tr.id)
	b.Message(tr.id, []byte("unread"))

	tr.Dispose()
	tr.Dispose()
	if n := b.Outstanding(); n != 0 {
		t.Errorf("outstanding foreign handles = %d, want 0", n)
	}
	tr.Tick()
	if len(rec.events) != 0 {
		t.Errorf("events after dispose = %q", rec.events)
	}
	if err := tr.Connect(context.Background(), "ws://x"); !errors.Is(err, transport.ErrDisposed) {
		t.Errorf("Connect() after dispose error = %v, want ErrDisposed", err)
	}
}
