package arena

const (
	// DefaultAccumulatorSize is the initial receive buffer capacity.
	DefaultAccumulatorSize = 64 * 1024
	// DefaultMinFree is the headroom below which the accumulator grows.
	DefaultMinFree = 8 * 1024
)

// MaxMessageSize returns the largest message an accumulator keeping
// minFree bytes of headroom can hold without renting past MaxClassSize.
func MaxMessageSize(minFree int) int {
	if minFree <= 0 {
		minFree = DefaultMinFree
	}
	return MaxClassSize - minFree
}

// Accumulator collects the fragments of one inbound message into a single
// rented buffer, doubling the buffer whenever headroom drops below minFree.
// It is owned by one goroutine.
type Accumulator struct {
	arena   *Arena
	buf     *Buffer
	minFree int
	grows   int
}

// NewAccumulator rents the initial buffer from a.
func NewAccumulator(a *Arena, initial, minFree int) *Accumulator {
	if initial <= 0 {
		initial = DefaultAccumulatorSize
	}
	if initial > MaxClassSize {
		initial = MaxClassSize
	}
	if minFree <= 0 {
		minFree = DefaultMinFree
	}
	return &Accumulator{
		arena:   a,
		buf:     a.Rent(initial),
		minFree: minFree,
	}
}

// EnsureFree grows the buffer until at least minFree bytes of headroom remain.
// Growth is a single grow-and-copy: the new capacity is found by doubling,
// one larger buffer is rented, unread bytes are copied and the old buffer is
// returned. Capacity never exceeds MaxClassSize, so a full buffer at that
// size stays full. It reports whether a grow happened.
func (acc *Accumulator) EnsureFree() bool {
	if acc.buf == nil {
		return false
	}
	if acc.buf.Cap()-acc.buf.N >= acc.minFree {
		return false
	}

	size := acc.buf.Cap()
	for size-acc.buf.N < acc.minFree && size < MaxClassSize {
		size *= 2
	}
	if size > MaxClassSize {
		size = MaxClassSize
	}
	if size <= acc.buf.Cap() {
		return false
	}

	next := acc.arena.Rent(size)
	next.N = copy(next.B, acc.buf.B[:acc.buf.N])
	acc.arena.Return(acc.buf)
	acc.buf = next
	acc.grows++
	return true
}

// Free returns the writable window after the valid bytes.
func (acc *Accumulator) Free() []byte {
	return acc.buf.B[acc.buf.N:]
}

// Advance marks n more bytes of the free window as valid.
func (acc *Accumulator) Advance(n int) {
	acc.buf.N += n
}

// Bytes returns the accumulated bytes. The slice is only valid until the
// next Reset, EnsureFree or Release.
func (acc *Accumulator) Bytes() []byte {
	return acc.buf.Bytes()
}

// Len returns the number of accumulated bytes.
func (acc *Accumulator) Len() int {
	return acc.buf.N
}

// Cap returns the current buffer capacity.
func (acc *Accumulator) Cap() int {
	return acc.buf.Cap()
}

// Grows returns how many grow-and-copy cycles have happened.
func (acc *Accumulator) Grows() int {
	return acc.grows
}

// Reset discards the accumulated bytes and keeps the buffer.
func (acc *Accumulator) Reset() {
	acc.buf.N = 0
}

// Release returns the buffer to the arena. The accumulator is unusable after.
func (acc *Accumulator) Release() {
	if acc.buf == nil {
		return
	}
	acc.arena.Return(acc.buf)
	acc.buf = nil
}
