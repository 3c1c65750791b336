package jobs

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Push and Pop once the queue is closed and,
	// for Pop, empty.
	ErrClosed = errors.New("job queue closed")

	// ErrDrained is delivered to the reply channel of jobs discarded by a
	// reset.
	ErrDrained = errors.New("job discarded by reset")
)

// Queue is an unbounded FIFO safe for many producers and one consumer.
// Push never blocks; Pop blocks while the queue is empty.
type Queue struct {
	mu     sync.Mutex
	items  []Job
	closed bool

	// ready holds a token whenever items may be non-empty
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
	}
}

// Push appends j to the queue.
func (q *Queue) Push(j Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, j)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop removes and returns the oldest job, blocking until one is available,
// ctx is done, or the queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			j := q.items[0]
			q.items[0] = Job{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return j, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Job{}, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// TryPop returns the oldest job without blocking.
func (q *Queue) TryPop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Job{}, false
	}
	j := q.items[0]
	q.items[0] = Job{}
	q.items = q.items[1:]
	return j, true
}

// Drain removes and returns every pending job.
func (q *Queue) Drain() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = nil
	return drained
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes. Pending jobs can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
