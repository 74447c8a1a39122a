package entrypoint

import (
	"context"
	"testing"

	"dominicbreuker/netpump/pkg/frame"
	"dominicbreuker/netpump/pkg/log"
	"dominicbreuker/netpump/pkg/session"
)

// it should hold frames until the session is connected
func TestOutbox_WaitsForConnected(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{state: session.Connecting}
	o := newOutbox(fc, nil, ConnectOptions{}, log.Discard())

	if err := o.push(context.Background(), []byte("a")); err != nil {
		t.Fatalf("push() error = %v", err)
	}
	o.Tick()
	if sent, _ := fc.snapshot(); len(sent) != 0 {
		t.Fatalf("sent %d frames while connecting, want 0", len(sent))
	}

	fc.setState(session.Connected)
	o.Tick()
	sent, _ := fc.snapshot()
	if len(sent) != 1 || string(sent[0]) != "a" {
		t.Errorf("sent = %q, want [a]", sent)
	}
}

// it should close the client once input ends and the outbox is drained
func TestOutbox_CloseAfterFinish(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{state: session.Connected}
	o := newOutbox(fc, nil, ConnectOptions{}, log.Discard())

	for _, l := range []string{"a", "b"} {
		if err := o.push(context.Background(), []byte(l)); err != nil {
			t.Fatalf("push() error = %v", err)
		}
	}
	o.finish()

	o.Tick()
	o.Tick()

	sent, closed := fc.snapshot()
	if len(sent) != 2 {
		t.Errorf("sent %d frames, want 2", len(sent))
	}
	if closed != 1 {
		t.Errorf("Close() called %d times, want 1", closed)
	}
}

// it should wrap lines in the frame envelope
func TestOutbox_Envelope(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{state: session.Connected}
	o := newOutbox(fc, nil, ConnectOptions{Envelope: true, Opcode: 42}, log.Discard())

	if err := o.push(context.Background(), []byte("hi")); err != nil {
		t.Fatalf("push() error = %v", err)
	}
	o.Tick()

	sent, _ := fc.snapshot()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	op, payload, err := frame.Parse(sent[0])
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if op != 42 || string(payload) != "hi" {
		t.Errorf("frame = (%d, %q), want (42, \"hi\")", op, payload)
	}
}

// it should copy lines since the scanner reuses its buffer
func TestOutbox_CopiesLine(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{state: session.Connected}
	o := newOutbox(fc, nil, ConnectOptions{}, log.Discard())

	line := []byte("abc")
	if err := o.push(context.Background(), line); err != nil {
		t.Fatalf("push() error = %v", err)
	}
	line[0] = 'x'
	o.Tick()

	if sent, _ := fc.snapshot(); string(sent[0]) != "abc" {
		t.Errorf("sent %q, want \"abc\"", sent[0])
	}
}

// it should give up on a full outbox once the context is done
func TestOutbox_PushCancelled(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{state: session.Connecting}
	o := newOutbox(fc, nil, ConnectOptions{}, log.Discard())
	for i := 0; i < outboxSize; i++ {
		if err := o.push(context.Background(), []byte("x")); err != nil {
			t.Fatalf("push() error = %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.push(ctx, []byte("x")); err == nil {
		t.Error("push() on a full outbox with a cancelled context returned nil")
	}
}
