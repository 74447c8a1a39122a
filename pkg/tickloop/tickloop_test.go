package tickloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type counter struct {
	n atomic.Int64
}

func (c *counter) Tick() { c.n.Add(1) }

func TestRegister(t *testing.T) {
	t.Parallel()

	l := New()
	a, b := &counter{}, &counter{}

	l.Register(a)
	l.Register(a)
	l.Register(b)
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	l.TickAll()
	if a.n.Load() != 1 || b.n.Load() != 1 {
		t.Errorf("ticks = %d, %d; want 1, 1", a.n.Load(), b.n.Load())
	}

	l.Unregister(a)
	l.Unregister(a)
	l.TickAll()
	if a.n.Load() != 1 || b.n.Load() != 2 {
		t.Errorf("ticks after unregister = %d, %d; want 1, 2", a.n.Load(), b.n.Load())
	}
}

type selfRemover struct {
	loop  *Loop
	ticks int
}

func (s *selfRemover) Tick() {
	s.ticks++
	s.loop.Unregister(s)
}

func TestUnregisterDuringTick(t *testing.T) {
	t.Parallel()

	l := New()
	s := &selfRemover{loop: l}
	c := &counter{}
	l.Register(s)
	l.Register(c)

	l.TickAll()
	l.TickAll()

	if s.ticks != 1 {
		t.Errorf("self remover ticked %d times, want 1", s.ticks)
	}
	if c.n.Load() != 2 {
		t.Errorf("counter ticked %d times, want 2", c.n.Load())
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	l := New()
	c := &counter{}
	l.Register(c)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := l.Run(ctx, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want DeadlineExceeded", err)
	}
	if c.n.Load() == 0 {
		t.Error("Run() never ticked")
	}
}
