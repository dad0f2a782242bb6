package framebuf

import (
	"sync"
	"time"
)

// shrinkCheckPeriod is the number of release_buffer calls between shrink
// attempts. Checking on every release would make the shrink gate itself a
// hot-path cost; checking too rarely would delay reclaiming a burst for a
// long time.
const shrinkCheckPeriod = 32

// Config holds the pool's sizing and shrink policy.
type Config struct {
	InitialBuffers    int
	MaxBuffers        int
	HighWaterMark     int
	ShrinkIdleSeconds float64
}

// Pool is a bounded, shape-locked cache of pre-allocated pixel buffers.
// initial_buffers <= high_water_mark <= max_buffers is the caller's
// responsibility to arrange; Pool does not itself validate the ordering
// beyond what the shrink policy needs.
type Pool struct {
	cfg Config

	mu        sync.Mutex
	shape     Shape
	shapeSet  bool
	free      []*Buffer
	allocated int
	lastAlloc time.Time
	sinceShrinkCheck int
}

// New constructs a Pool. The pool is not usable for GetBuffer until
// Initialize has been called at least once.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// Initialize sets the pool's shape on first use, or discards all cached
// buffers and re-allocates initial_buffers when the sample's shape differs
// from the current shape. Calling it again with the same shape is a no-op:
// the pool retains all free buffers and its allocated count.
func (p *Pool) Initialize(sample Shape) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shapeSet && sample == p.shape {
		return
	}

	p.shape = sample
	p.shapeSet = true
	p.free = p.free[:0]
	p.allocated = 0
	for i := 0; i < p.cfg.InitialBuffers; i++ {
		p.free = append(p.free, newBuffer(p.shape, p.releaseBuffer))
		p.allocated++
	}
	p.lastAlloc = time.Now()
}

// GetBuffer pops a free buffer if one is available; otherwise, if the pool
// has not reached max_buffers, it allocates a new one. Returns ok=false to
// signal exhaustion, a backpressure condition rather than an error.
func (p *Pool) GetBuffer() (buf *Buffer, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		buf = p.free[n-1]
		p.free = p.free[:n-1]
		// Freshly popped buffers start at refcount zero (they were
		// released down to zero and returned to the pool); hand out a
		// single live reference to the new holder.
		buf.returned = 0
		buf.refCount = 1
		buf.enqueued = make(map[string]time.Time)
		buf.created = time.Now()
		return buf, true
	}

	if p.allocated >= p.cfg.MaxBuffers {
		return nil, false
	}

	buf = newBuffer(p.shape, p.releaseBuffer)
	p.allocated++
	p.lastAlloc = time.Now()
	return buf, true
}

// releaseBuffer is installed as every Buffer's release callback. It pushes
// the buffer onto the free list and, every shrinkCheckPeriod releases,
// attempts a shrink.
func (p *Pool) releaseBuffer(buf *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if buf.shape != p.shape {
		// Checked out before Initialize switched to a new shape; it is no
		// longer counted in allocated, so it is not cached.
		return
	}
	p.free = append(p.free, buf)
	p.sinceShrinkCheck++
	if p.sinceShrinkCheck >= shrinkCheckPeriod {
		p.sinceShrinkCheck = 0
		p.maybeShrinkLocked()
	}
}

// maybeShrinkLocked drains the pool back to initial_buffers when all of:
// allocated exceeds initial_buffers, allocated has reached high_water_mark,
// the pool has been idle (no new allocation) for at least
// shrink_idle_seconds, and every allocated buffer is currently free.
func (p *Pool) maybeShrinkLocked() {
	if p.allocated <= p.cfg.InitialBuffers {
		return
	}
	if p.allocated < p.cfg.HighWaterMark {
		return
	}
	idle := time.Since(p.lastAlloc).Seconds()
	if idle < p.cfg.ShrinkIdleSeconds {
		return
	}
	if len(p.free) < p.allocated {
		return
	}

	drop := p.allocated - p.cfg.InitialBuffers
	p.free = p.free[:len(p.free)-drop]
	p.allocated = p.cfg.InitialBuffers
	p.lastAlloc = time.Now()
}

// Allocated reports the current allocated-buffer count, for tests and
// metrics.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// FreeCount reports the current free-list length.
func (p *Pool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Shape returns the pool's current shape and whether it has been set.
func (p *Pool) Shape() (Shape, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shape, p.shapeSet
}
