// Package ring provides a fixed-capacity ring buffer.
// Appending beyond capacity evicts the oldest element, so "keep the last N"
// histories can never grow past their declared size.
package ring

// Buffer is a fixed-capacity FIFO over a circular slice.
// It is not safe for concurrent use; owners are expected to hold their own lock.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a buffer with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full.
func (b *Buffer[T]) Push(v T) {
	tail := (b.head + b.size) % len(b.items)
	b.items[tail] = v
	if b.size < len(b.items) {
		b.size++
	} else {
		b.head = (b.head + 1) % len(b.items)
	}
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Items returns a copy of the contents, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns a copy of the most recent n elements, oldest first.
// If fewer than n are stored, all of them are returned.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	out := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// Do calls fn for each element, oldest first, without copying.
func (b *Buffer[T]) Do(fn func(v T)) {
	for i := 0; i < b.size; i++ {
		fn(b.items[(b.head+i)%len(b.items)])
	}
}
