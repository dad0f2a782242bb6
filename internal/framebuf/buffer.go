// Package framebuf implements a reference-counted pixel buffer wrapper and
// the bounded pool that owns its backing memory.
package framebuf

import (
	"sync"
	"sync/atomic"
	"time"
)

// Shape describes the fixed geometry of a pixel buffer. It never changes
// after a Buffer is created.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

// Size returns the number of bytes a buffer of this shape occupies.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

// Buffer is a reference-counted wrapper over a fixed-shape pixel slice.
// Acquire/Release are concurrency-safe; the release callback supplied at
// construction runs exactly once, when the count transitions to zero.
type Buffer struct {
	shape   Shape
	pix     []byte
	created time.Time

	refCount int32 // atomic
	returned int32 // atomic bool: 1 once the release callback has fired

	onZero func(*Buffer)

	mu       sync.Mutex
	enqueued map[string]time.Time
}

func newBuffer(shape Shape, onZero func(*Buffer)) *Buffer {
	return &Buffer{
		shape:    shape,
		pix:      make([]byte, shape.Size()),
		created:  time.Now(),
		refCount: 1, // the caller that creates a buffer holds the first reference
		onZero:   onZero,
		enqueued: make(map[string]time.Time),
	}
}

// NewStandalone creates a FrameBuffer not backed by any pool. Its release
// callback is a no-op, so its memory is simply garbage collected once the
// last reference drops. Used for display/annotated-frame copies that must
// be independent of the buffer pool.
func NewStandalone(shape Shape) *Buffer {
	return newBuffer(shape, nil)
}

// WrapBytes wraps already-allocated pixel data (e.g. a ModifiableView
// copy) in a standalone FrameBuffer without copying it again.
func WrapBytes(shape Shape, pix []byte) *Buffer {
	b := newBuffer(shape, nil)
	b.pix = pix
	return b
}

// Shape returns the buffer's fixed geometry.
func (b *Buffer) Shape() Shape { return b.shape }

// CreatedAt returns the buffer's creation timestamp.
func (b *Buffer) CreatedAt() time.Time { return b.created }

// Acquire increments the reference count. It must be called once per new
// independent holder of the buffer (queue push, display slot, raw slot...).
func (b *Buffer) Acquire() {
	atomic.AddInt32(&b.refCount, 1)
}

// RefCount returns the current reference count, for tests and the
// modifiable-view safety heuristic.
func (b *Buffer) RefCount() int32 {
	return atomic.LoadInt32(&b.refCount)
}

// Release decrements the reference count. If the post-decrement count is
// zero, the pool-supplied release callback runs exactly once. A release on
// an already-returned buffer is a silent no-op: shutdown races can cause
// double releases and the contract forbids faulting on them.
func (b *Buffer) Release() {
	n := atomic.AddInt32(&b.refCount, -1)
	if n > 0 {
		return
	}
	if n < 0 {
		// Already at zero; someone released twice. No-op, never go negative
		// again so a third release also no-ops.
		atomic.AddInt32(&b.refCount, 1)
		return
	}
	if atomic.CompareAndSwapInt32(&b.returned, 0, 1) && b.onZero != nil {
		b.onZero(b)
	}
}

// ReadView returns the pixel data for read-only use. The returned slice is
// only valid for the duration of the caller's own reference; callers must
// not retain it past their Release call.
func (b *Buffer) ReadView() []byte {
	return b.pix
}

// WritableCopy returns an independent copy of the pixel data that the
// caller may mutate freely.
func (b *Buffer) WritableCopy() []byte {
	cp := make([]byte, len(b.pix))
	copy(cp, b.pix)
	return cp
}

// ModifiableView returns a slice safe to mutate in place if the current
// reference count is at most two (the producer's own reference plus the
// display slot); otherwise it returns an independent copy. The bool result
// reports whether the returned slice aliases the buffer's own memory.
func (b *Buffer) ModifiableView() (view []byte, inPlace bool) {
	if b.RefCount() <= 2 {
		return b.pix, true
	}
	return b.WritableCopy(), false
}

// MarkEnqueued records the time a frame was handed to a pipeline's queue.
func (b *Buffer) MarkEnqueued(pipelineID string, ts time.Time) {
	b.mu.Lock()
	b.enqueued[pipelineID] = ts
	b.mu.Unlock()
}

// PopEnqueueTimestamp removes and returns the enqueue timestamp recorded
// for pipelineID. Only the consuming pipeline worker calls this, on
// dequeue.
func (b *Buffer) PopEnqueueTimestamp(pipelineID string) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.enqueued[pipelineID]
	if ok {
		delete(b.enqueued, pipelineID)
	}
	return ts, ok
}
