// Package pubslot implements single-value publication slots: the pattern
// used throughout the producer/consumer pipeline to expose "the latest X"
// to external readers without blocking the data path.
package pubslot

import (
	"sync"
	"time"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// FrameSlot publishes the most recently produced frame buffer, paired with
// a monotonic sequence number. Readers take a reference via Get and must
// Release it themselves.
type FrameSlot struct {
	mu  sync.RWMutex
	buf *framebuf.Buffer
	seq uint64
	ts  time.Time
}

// Publish installs buf as the new latest frame, releasing whatever was
// published before it. The caller must have already Acquired a reference
// for the slot.
func (s *FrameSlot) Publish(buf *framebuf.Buffer, seq uint64, ts time.Time) {
	s.mu.Lock()
	old := s.buf
	s.buf = buf
	s.seq = seq
	s.ts = ts
	s.mu.Unlock()
	if old != nil {
		old.Release()
	}
}

// Get returns the currently published buffer with an additional reference
// acquired on the caller's behalf, or ok=false if nothing has been
// published yet. Callers must Release the returned buffer.
func (s *FrameSlot) Get() (buf *framebuf.Buffer, seq uint64, ts time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil {
		return nil, 0, time.Time{}, false
	}
	s.buf.Acquire()
	return s.buf, s.seq, s.ts, true
}

// Clear releases the published buffer, if any, and leaves the slot empty.
// Used when a raw-frame publication stops being requested.
func (s *FrameSlot) Clear() {
	s.mu.Lock()
	old := s.buf
	s.buf = nil
	s.mu.Unlock()
	if old != nil {
		old.Release()
	}
}

// ResultSlot publishes the most recent value of an arbitrary payload type,
// sequence-numbered, for non-buffer publications like pipeline results.
type ResultSlot[T any] struct {
	mu  sync.RWMutex
	val T
	seq uint64
	ts  time.Time
	has bool
}

// Publish installs val as the slot's current value.
func (s *ResultSlot[T]) Publish(val T, seq uint64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = val
	s.seq = seq
	s.ts = ts
	s.has = true
}

// Get returns the slot's current value, or ok=false if nothing has been
// published yet.
func (s *ResultSlot[T]) Get() (val T, seq uint64, ts time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.val, s.seq, s.ts, s.has
}
