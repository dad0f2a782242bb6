package framebuf

import (
	"testing"
	"time"
)

func TestBufferReleaseInvokesCallbackOnce(t *testing.T) {
	calls := 0
	b := newBuffer(Shape{Height: 2, Width: 2, Channels: 1}, func(*Buffer) { calls++ })
	b.Acquire() // refcount 2
	b.Release() // refcount 1
	if calls != 0 {
		t.Fatalf("callback fired early: calls=%d", calls)
	}
	b.Release() // refcount 0
	if calls != 1 {
		t.Fatalf("want 1 callback, got %d", calls)
	}
	// Double release must be a silent no-op, not a second callback.
	b.Release()
	if calls != 1 {
		t.Fatalf("double release invoked callback again: calls=%d", calls)
	}
}

func TestBufferModifiableViewSafety(t *testing.T) {
	b := newBuffer(Shape{Height: 1, Width: 1, Channels: 1}, func(*Buffer) {})
	view, inPlace := b.ModifiableView()
	if !inPlace {
		t.Fatalf("refcount 1 should be safe in place")
	}
	b.Acquire() // refcount 2
	_, inPlace = b.ModifiableView()
	if !inPlace {
		t.Fatalf("refcount 2 should still be safe in place")
	}
	b.Acquire() // refcount 3
	view, inPlace = b.ModifiableView()
	if inPlace {
		t.Fatalf("refcount 3 must force a copy")
	}
	if &view[0] == &b.pix[0] {
		t.Fatalf("copy must not alias underlying buffer")
	}
}

func TestEnqueueTimestampRoundTrip(t *testing.T) {
	b := newBuffer(Shape{Height: 1, Width: 1, Channels: 1}, func(*Buffer) {})
	now := time.Now()
	b.MarkEnqueued("p1", now)
	got, ok := b.PopEnqueueTimestamp("p1")
	if !ok || !got.Equal(now) {
		t.Fatalf("want %v, got %v ok=%v", now, got, ok)
	}
	if _, ok := b.PopEnqueueTimestamp("p1"); ok {
		t.Fatalf("pop must remove the entry")
	}
}
