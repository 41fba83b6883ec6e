package queues

// Queue is a FIFO backed by a slice. The zero value is an empty queue.
type Queue[T comparable] []T

func NewQueue[T comparable](items ...T) *Queue[T] {
	q := Queue[T](append([]T{}, items...))
	return &q
}

func (q *Queue[T]) Push(x T) {
	*q = append(*q, x)
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}
	return (*q)[0], true
}

// Pop removes and returns the front element. ok is false on an empty queue.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.IsEmpty() {
		return zero, false
	}
	x := (*q)[0]
	(*q)[0] = zero
	*q = (*q)[1:]
	return x, true
}

// Remove deletes every occurrence of x and reports how many were removed.
func (q *Queue[T]) Remove(x T) int {
	kept := (*q)[:0]
	removed := 0
	for _, v := range *q {
		if v == x {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	*q = kept
	return removed
}

func (q *Queue[T]) Contains(x T) bool {
	for _, v := range *q {
		if v == x {
			return true
		}
	}
	return false
}

// Items returns a copy of the queue contents, front first.
func (q *Queue[T]) Items() []T {
	return append([]T{}, (*q)...)
}

func (q *Queue[T]) Len() int {
	return len(*q)
}

func (q *Queue[T]) IsEmpty() bool {
	return len(*q) == 0
}
