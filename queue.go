package gamenet

import "sync"

// messageQueue is an unbounded FIFO. Push never blocks; a consumer drains
// everything at once with popAll. Queues that share a wake channel let one
// goroutine sleep on several of them.
type messageQueue[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan struct{}
}

func newMessageQueue[T any](wake chan struct{}) *messageQueue[T] {
	return &messageQueue[T]{wake: wake}
}

// push appends v and nudges the consumer.
func (q *messageQueue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

// pushFront puts items back ahead of anything queued since they were popped.
func (q *messageQueue[T]) pushFront(items []T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
	q.mu.Unlock()
}

// popAll removes and returns every queued item in FIFO order.
func (q *messageQueue[T]) popAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *messageQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *messageQueue[T]) clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

func (q *messageQueue[T]) signal() {
	if q.wake == nil {
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
