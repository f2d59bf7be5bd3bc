// Package dispatch delivers events to caller-supplied handlers on a single
// goroutine, in the order they were posted.
//
// Producers (socket readers, timer callbacks) post without blocking and
// without holding their own locks while handlers run, so handlers may call
// back into the producer.
package dispatch

import "sync"

// Dispatcher drains a Queue into a handler function.
type Dispatcher[T any] struct {
	queue  *Queue[T]
	handle func(T)

	closeOnce sync.Once
	done      chan struct{}
}

// New starts a dispatcher that calls handle for every posted item.
func New[T any](initialCapacity int, handle func(T)) *Dispatcher[T] {
	d := &Dispatcher[T]{
		queue:  NewQueue[T](initialCapacity),
		handle: handle,
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Post enqueues item. Returns false after Close.
func (d *Dispatcher[T]) Post(item T) bool {
	return d.queue.Post(item)
}

// Close stops accepting items and waits until the pending ones have been
// handled. It must not be called from inside the handler.
func (d *Dispatcher[T]) Close() {
	d.closeOnce.Do(d.queue.Close)
	<-d.done
}

// Stats returns the underlying queue statistics.
func (d *Dispatcher[T]) Stats() QueueStats {
	return d.queue.Stats()
}

func (d *Dispatcher[T]) run() {
	defer close(d.done)
	for {
		item, ok := d.queue.Receive()
		if !ok {
			return
		}
		d.handle(item)
	}
}
