// Package dispatch implements the queue that defers transport events to the
// pump. Producers push from any goroutine; a single consumer drains the queue
// from its own Tick call, so callbacks never run concurrently with each
// other or with the consumer's code.
package dispatch

import (
	"sync"

	"github.com/eapache/queue"
)

// Event is a deferred action. It must only capture copied or immutable data.
type Event func()

// PanicHandler receives the value recovered from a panicking event.
type PanicHandler func(recovered interface{})

// Queue is a mutex-guarded FIFO of events.
type Queue struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	onPanic PanicHandler
}

// New creates an empty queue. onPanic may be nil.
func New(onPanic PanicHandler) *Queue {
	return &Queue{
		q:       queue.New(),
		onPanic: onPanic,
	}
}

// Push appends ev. It reports false if the queue has been closed, in which
// case ev is dropped.
func (d *Queue) Push(ev Event) bool {
	if ev == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.q.Add(ev)
	return true
}

// Drain runs up to max queued events in FIFO order on the calling goroutine
// and returns how many ran. Each event runs outside the lock; a panicking
// event is recovered and does not stop the remaining ones.
func (d *Queue) Drain(max int) int {
	ran := 0
	for ran < max {
		ev, ok := d.pop()
		if !ok {
			break
		}
		ran++
		d.run(ev)
	}
	return ran
}

// DrainAll runs every event queued when it is called. Events pushed while
// it runs wait for the next call.
func (d *Queue) DrainAll() int {
	return d.Drain(d.Len())
}

func (d *Queue) pop() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.q.Length() == 0 {
		return nil, false
	}
	return d.q.Remove().(Event), true
}

func (d *Queue) run(ev Event) {
	defer func() {
		if r := recover(); r != nil && d.onPanic != nil {
			d.onPanic(r)
		}
	}()
	ev()
}

// Len returns the number of pending events.
func (d *Queue) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Length()
}

// Close discards all pending events and rejects further pushes. It is only
// used when the owning transport is torn down.
func (d *Queue) Close() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	dropped := d.q.Length()
	d.q = queue.New()
	d.closed = true
	return dropped
}
