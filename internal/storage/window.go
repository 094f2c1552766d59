package storage

// Window is a fixed-capacity ring buffer that keeps the most recent items.
// It is not safe for concurrent use.
type Window[T any] struct {
	items []T
	start int
	size  int
}

// NewWindow allocates a window holding at most capacity items. Capacity
// below one is treated as one.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest one when the window is full.
func (w *Window[T]) Push(item T) {
	if w.size < len(w.items) {
		w.items[(w.start+w.size)%len(w.items)] = item
		w.size++
		return
	}
	w.items[w.start] = item
	w.start = (w.start + 1) % len(w.items)
}

// Len returns the number of items currently held.
func (w *Window[T]) Len() int {
	return w.size
}

// Each calls fn for every item from oldest to newest.
func (w *Window[T]) Each(fn func(T)) {
	for i := 0; i < w.size; i++ {
		fn(w.items[(w.start+i)%len(w.items)])
	}
}

