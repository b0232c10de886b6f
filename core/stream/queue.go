package stream

import (
	"context"
	"sync"
)

// queueItem is either a message or the stop item. The stop item is a tag,
// so an empty message can never be mistaken for it.
type queueItem struct {
	msg  Message
	stop bool
}

// Queue is an unbounded FIFO hand-off between a producer and a dispatcher.
// Put never blocks; Take blocks until an item is available.
// Once Close is called the stop item is the last item a taker observes.
type Queue struct {
	mu     sync.Mutex
	items  []queueItem
	closed bool
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Put appends msg to the queue. Returns ErrQueueClosed after Close.
func (q *Queue) Put(msg Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, queueItem{msg: msg})
	q.mu.Unlock()

	q.wake()
	return nil
}

// Take removes and returns the oldest message, blocking while the queue is empty.
// Returns ErrQueueClosed once the stop item is reached; the stop item is never
// consumed, so every later Take returns ErrQueueClosed as well.
func (q *Queue) Take(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			head := q.items[0]
			if head.stop {
				q.mu.Unlock()
				return Message{}, ErrQueueClosed
			}

			q.items[0] = queueItem{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()

			if more {
				q.wake()
			}
			return head.msg, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close enqueues the stop item behind every queued message.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = append(q.items, queueItem{stop: true})
	q.mu.Unlock()

	q.wake()
}

// Clear drops every queued message and returns how many were dropped.
// Blocked takers are not woken. A pending stop item is kept.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	kept := q.items[:0]
	for _, it := range q.items {
		if it.stop {
			kept = append(kept, it)
			continue
		}
		dropped++
	}
	clear(q.items[len(kept):])
	q.items = kept
	return dropped
}

// Len returns the number of queued messages, not counting the stop item.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if q.closed && n > 0 && q.items[n-1].stop {
		n--
	}
	return n
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
