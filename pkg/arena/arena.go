// Package arena provides pooled byte buffers for the frame send and receive
// paths. Buffers are rented in power-of-two size classes and handed back
// exactly once; free lists are kept per class and never shrink, so a warmed
// up arena serves the steady state without touching the heap.
package arena

import (
	"fmt"
	"math/bits"
	"sync"
)

const (
	minClassShift = 8  // 256 B
	maxClassShift = 26 // 64 MiB
	numClasses    = maxClassShift - minClassShift + 1

	// MinClassSize is the smallest capacity handed out by Rent.
	MinClassSize = 1 << minClassShift
	// MaxClassSize is the largest capacity Rent can serve.
	MaxClassSize = 1 << maxClassShift
)

// AllocationError reports a request the arena cannot serve. It is raised as a
// panic: running out of buffer space is not recoverable by the caller.
type AllocationError struct {
	Size int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("arena: cannot allocate %d bytes (max %d)", e.Size, MaxClassSize)
}

// Buffer is a rented byte buffer. B spans the full capacity; N is the number
// of valid bytes. A Buffer has exactly one owner between Rent and Return.
type Buffer struct {
	B []byte
	N int

	class  int
	rented bool
}

// Bytes returns the valid portion of the buffer.
func (b *Buffer) Bytes() []byte { return b.B[:b.N] }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.B) }

// Reset sets the valid length to zero.
func (b *Buffer) Reset() { b.N = 0 }

// Stats is a snapshot of arena counters.
type Stats struct {
	Rents       uint64
	Returns     uint64
	Allocations uint64
	InUse       int64
}

// Arena is a set of per-size-class free lists guarded by one mutex.
type Arena struct {
	mu    sync.Mutex
	free  [numClasses][]*Buffer
	stats Stats
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{}
}

var defaultArena = New()

// Default returns the process-wide arena.
func Default() *Arena {
	return defaultArena
}

// classFor returns the size class index for n bytes.
func classFor(n int) int {
	if n <= MinClassSize {
		return 0
	}
	return bits.Len(uint(n-1)) - minClassShift
}

// Rent returns a buffer with capacity of at least minSize. Its content is
// not cleared and its valid length is zero.
func (a *Arena) Rent(minSize int) *Buffer {
	if minSize < 0 || minSize > MaxClassSize {
		panic(&AllocationError{Size: minSize})
	}
	class := classFor(minSize)

	a.mu.Lock()
	a.stats.Rents++
	a.stats.InUse++
	list := a.free[class]
	if n := len(list); n > 0 {
		b := list[n-1]
		list[n-1] = nil
		a.free[class] = list[:n-1]
		a.mu.Unlock()
		b.rented = true
		b.N = 0
		return b
	}
	a.stats.Allocations++
	a.mu.Unlock()

	return &Buffer{
		B:      make([]byte, 1<<(class+minClassShift)),
		class:  class,
		rented: true,
	}
}

// Return hands a rented buffer back. Returning a buffer twice, or one that
// was not rented from an arena, panics.
func (a *Arena) Return(b *Buffer) {
	if b == nil {
		return
	}
	if !b.rented {
		panic("arena: buffer returned twice")
	}
	b.rented = false
	b.N = 0

	a.mu.Lock()
	a.free[b.class] = append(a.free[b.class], b)
	a.stats.Returns++
	a.stats.InUse--
	a.mu.Unlock()
}

// Stats returns a snapshot of the arena counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
