package dispatch

import "sync"

// Queue is an unbounded FIFO that doubles its ring when full, so posting
// never blocks the producer.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int // read position
	tail   int // write position
	count  int
	closed bool

	// Stats
	totalPosted    int64
	totalDelivered int64
	resizeCount    int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Queue[T]{
		buf: make([]T, initialCapacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Post appends an item. Returns false if the queue is closed.
func (q *Queue[T]) Post(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.buf) {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.totalPosted++

	q.cond.Signal()
	return true
}

// Receive blocks until an item is available or the queue is closed and
// drained, in which case it returns the zero value and false.
func (q *Queue[T]) Receive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.buf[q.head]
	q.buf[q.head] = zero // release reference
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.totalDelivered++

	return item, true
}

// Close stops accepting items. Pending items are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of undelivered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pending:        q.count,
		Capacity:       len(q.buf),
		TotalPosted:    q.totalPosted,
		TotalDelivered: q.totalDelivered,
		ResizeCount:    q.resizeCount,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Pending        int
	Capacity       int
	TotalPosted    int64
	TotalDelivered int64
	ResizeCount    int
}

// grow doubles the ring. Must be called with lock held.
func (q *Queue[T]) grow() {
	newBuf := make([]T, len(q.buf)*2)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.resizeCount++
}
