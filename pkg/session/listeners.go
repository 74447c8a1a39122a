package session

import (
	"errors"
	"sync"
)

// MaxListeners bounds the listeners registered per event kind.
const MaxListeners = 32

// ErrTooManyListeners is returned when a listener list is full.
var ErrTooManyListeners = errors.New("too many listeners")

// Registration is the handle of a registered listener.
type Registration struct {
	once   sync.Once
	remove func()
}

// Remove unregisters the listener. It is safe to call more than once.
func (r *Registration) Remove() {
	if r == nil {
		return
	}
	r.once.Do(r.remove)
}

type entry[F any] struct {
	id uint64
	fn F
}

// listeners is a bounded list of callbacks. Callbacks run on a snapshot, so
// a listener may remove itself or others while being notified.
type listeners[F any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry[F]
}

func (l *listeners[F]) add(fn F) (*Registration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= MaxListeners {
		return nil, ErrTooManyListeners
	}
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, entry[F]{id: id, fn: fn})
	return &Registration{remove: func() { l.remove(id) }}, nil
}

func (l *listeners[F]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners[F]) snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]F, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

func (l *listeners[F]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *listeners[F]) clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
