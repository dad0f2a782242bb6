// Package framequeue implements the bounded, drop-oldest per-pipeline
// frame queue.
package framequeue

import (
	"sync"
	"time"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// PushResult reports what Push did.
type PushResult int

const (
	// Accepted means the frame was enqueued with room to spare.
	Accepted PushResult = iota
	// Evicted means the queue was full, the oldest entry was dropped, and
	// the new frame was enqueued in its place.
	Evicted
)

// Queue is a single-producer/single-consumer bounded queue with capacity Q
// (the registry's default is 2) that evicts the oldest entry on overflow rather than
// blocking the producer or rejecting the new frame.
type Queue struct {
	capacity int

	mu      sync.Mutex
	entries []*framebuf.Buffer
	closed  bool
	notify  chan struct{} // capacity 1; signals a push or close to a blocked Pop
}

// New constructs a Queue with the given capacity. Capacity must be >= 1.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{capacity: capacity, notify: make(chan struct{}, 1)}
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Capacity returns the queue's configured capacity.
func (q *Queue) Capacity() int { return q.capacity }

// Push enqueues buf. If the queue is full, it evicts exactly one entry
// (the oldest) and returns it to the caller for release, then enqueues buf
// and returns Evicted. Otherwise it returns Accepted and a nil evicted
// buffer. Push never retries and never blocks.
func (q *Queue) Push(buf *framebuf.Buffer) (result PushResult, evicted *framebuf.Buffer) {
	q.mu.Lock()
	if len(q.entries) >= q.capacity {
		evicted = q.entries[0]
		q.entries = q.entries[1:]
		result = Evicted
	} else {
		result = Accepted
	}
	q.entries = append(q.entries, buf)
	q.mu.Unlock()

	q.signal()
	return result, evicted
}

// Depth returns the current number of queued entries.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Pop blocks until an entry is available, the timeout elapses, or the
// queue is closed. ok is false on timeout or close.
func (q *Queue) Pop(timeout time.Duration) (buf *framebuf.Buffer, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			buf = q.entries[0]
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return buf, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
			continue
		case <-timer.C:
			return nil, false
		}
	}
}

// Drain removes up to n entries without blocking, returning the buffers so
// the caller can release them. Used by the producer to relieve
// backpressure when the buffer pool is exhausted.
func (q *Queue) Drain(n int) []*framebuf.Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.entries) {
		n = len(q.entries)
	}
	out := make([]*framebuf.Buffer, n)
	copy(out, q.entries[:n])
	q.entries = q.entries[n:]
	return out
}

// Close wakes any blocked Pop call; it does not release queued buffers.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}
