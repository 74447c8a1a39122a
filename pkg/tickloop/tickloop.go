// Package tickloop pumps a set of clients from one goroutine at a fixed
// rate.
package tickloop

import (
	"context"
	"sync"
	"time"
)

// Tickable is anything pumped by a Loop, typically a *client.Client.
type Tickable interface {
	Tick()
}

// Loop holds the registered items. Register and Unregister may be called
// from any goroutine, including from inside a Tick.
type Loop struct {
	mu    sync.Mutex
	items []Tickable
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{}
}

// Register adds t. Registering an item twice has no effect.
func (l *Loop) Register(t Tickable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.items {
		if it == t {
			return
		}
	}
	l.items = append(l.items, t)
}

// Unregister removes t.
func (l *Loop) Unregister(t Tickable) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, it := range l.items {
		if it == t {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered items.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// TickAll ticks every registered item once, in registration order.
func (l *Loop) TickAll() {
	l.mu.Lock()
	items := make([]Tickable, len(l.items))
	copy(items, l.items)
	l.mu.Unlock()

	for _, it := range items {
		it.Tick()
	}
}

// Run calls TickAll every interval until ctx is done.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.TickAll()
		}
	}
}
