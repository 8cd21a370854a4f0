// Package ring provides a fixed-capacity circular buffer used to hand
// timestamped MIDI events from a driver callback to a consumer loop.
package ring

// Buffer is a circular queue over a fixed block of storage. The
// capacity is rounded up to the next power of two so cursor arithmetic
// can mask instead of dividing. A full Buffer overwrites its oldest
// element on PushBack and counts the loss in Dropped.
//
// A single producer and a single consumer may share a Buffer only with
// external synchronization establishing memory order between them.
// Reset and Clear require the buffer to be idle.
type Buffer[T any] struct {
	buf     []T
	size    int
	mask    int
	head    int // read cursor
	tail    int // write cursor
	count   int
	dropped int
}

// New returns a Buffer holding at least sz elements. Sizes below one
// are treated as one.
func New[T any](sz int) *Buffer[T] {
	if sz < 1 {
		sz = 1
	}
	psize := 1
	for psize < sz {
		psize <<= 1
	}
	return &Buffer[T]{
		buf:  make([]T, psize),
		size: psize,
		mask: psize - 1,
	}
}

// Capacity returns the rounded-up storage size.
func (b *Buffer[T]) Capacity() int { return b.size }

// Count returns the number of stored elements.
func (b *Buffer[T]) Count() int { return b.count }

// Dropped returns how many elements PushBack has overwritten since
// construction or the last Clear.
func (b *Buffer[T]) Dropped() int { return b.dropped }

// Empty reports whether no elements are stored.
func (b *Buffer[T]) Empty() bool { return b.count == 0 }

// Full reports whether the buffer is at capacity.
func (b *Buffer[T]) Full() bool { return b.count == b.size }

// WriteSpace returns the number of free slots.
func (b *Buffer[T]) WriteSpace() int { return b.size - b.count }

// ReadSpace returns the number of readable elements.
func (b *Buffer[T]) ReadSpace() int { return b.count }

// Write stores item at the tail if a slot is free and returns the new
// element count. It returns 0, storing nothing, when the buffer is
// full. Use PushBack when overwriting the oldest element is wanted.
func (b *Buffer[T]) Write(item T) int {
	if b.count >= b.size {
		return 0
	}
	b.PushBack(item)
	return b.count
}

// PushBack stores item at the tail unconditionally. On a full buffer
// the oldest element is evicted first and the drop counter advances.
func (b *Buffer[T]) PushBack(item T) {
	if b.count == 0 {
		b.tail = b.head
	} else if b.count >= b.size {
		b.head = (b.head + 1) & b.mask
		b.count--
		b.dropped++
	}
	b.buf[b.tail] = item
	b.tail = (b.tail + 1) & b.mask
	b.count++
}

// Read copies the oldest element into dest and removes it, returning
// the count of elements still stored. It returns 0 with dest untouched
// when the buffer is empty.
func (b *Buffer[T]) Read(dest *T) int {
	if b.count == 0 {
		return 0
	}
	*dest = b.buf[b.head]
	b.PopFront()
	return b.count
}

// Front returns the value in the oldest slot without removing it. On
// an empty buffer the slot holds stale data; check Empty first.
func (b *Buffer[T]) Front() T { return b.buf[b.head] }

// Back returns the value in the newest slot.
func (b *Buffer[T]) Back() T { return b.buf[(b.tail-1)&b.mask] }

// PopFront removes the oldest element. It does nothing when the buffer
// is empty.
func (b *Buffer[T]) PopFront() {
	if b.count == 0 {
		return
	}
	b.head = (b.head + 1) & b.mask
	b.count--
}

// Reset zeroes the cursors only, leaving count and drop bookkeeping
// alone. Most callers want Clear.
func (b *Buffer[T]) Reset() {
	b.head, b.tail = 0, 0
}

// Clear empties the buffer: cursors, count and drop counter go to
// zero and the storage is reset to zero values.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.buf {
		b.buf[i] = zero
	}
	b.head, b.tail, b.count, b.dropped = 0, 0, 0, 0
}
