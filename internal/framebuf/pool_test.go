package framebuf

import (
	"testing"
	"time"
)

func testShape() Shape { return Shape{Height: 4, Width: 4, Channels: 1} }

func TestPoolInitializeNoOpSameShape(t *testing.T) {
	p := New(Config{InitialBuffers: 2, MaxBuffers: 4, HighWaterMark: 3, ShrinkIdleSeconds: 1})
	p.Initialize(testShape())
	if p.Allocated() != 2 {
		t.Fatalf("want 2 allocated, got %d", p.Allocated())
	}
	p.Initialize(testShape())
	if p.Allocated() != 2 || p.FreeCount() != 2 {
		t.Fatalf("re-initializing with the same shape must be a no-op")
	}
}

func TestPoolInitializeResetsOnShapeChange(t *testing.T) {
	p := New(Config{InitialBuffers: 2, MaxBuffers: 4, HighWaterMark: 3, ShrinkIdleSeconds: 1})
	p.Initialize(testShape())
	p.Initialize(Shape{Height: 8, Width: 4, Channels: 1})
	shape, ok := p.Shape()
	if !ok || shape.Height != 8 {
		t.Fatalf("shape not updated: %+v ok=%v", shape, ok)
	}
	if p.Allocated() != 2 {
		t.Fatalf("reinitialize should re-allocate initial_buffers, got %d", p.Allocated())
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := New(Config{InitialBuffers: 1, MaxBuffers: 1, HighWaterMark: 1, ShrinkIdleSeconds: 0})
	p.Initialize(testShape())

	buf, ok := p.GetBuffer()
	if !ok {
		t.Fatalf("first GetBuffer should succeed")
	}
	if _, ok := p.GetBuffer(); ok {
		t.Fatalf("pool at max_buffers with no free buffers must report exhaustion")
	}
	buf.Release()
	if _, ok := p.GetBuffer(); !ok {
		t.Fatalf("after release, a buffer should be available again")
	}
}

func TestPoolNeverExceedsMaxBuffers(t *testing.T) {
	p := New(Config{InitialBuffers: 0, MaxBuffers: 3, HighWaterMark: 3, ShrinkIdleSeconds: 0})
	p.Initialize(testShape())
	var bufs []*Buffer
	for i := 0; i < 3; i++ {
		b, ok := p.GetBuffer()
		if !ok {
			t.Fatalf("expected allocation %d to succeed", i)
		}
		bufs = append(bufs, b)
	}
	if _, ok := p.GetBuffer(); ok {
		t.Fatalf("pool must not exceed max_buffers")
	}
	if p.Allocated() != 3 {
		t.Fatalf("want allocated=3, got %d", p.Allocated())
	}
	for _, b := range bufs {
		b.Release()
	}
}

func TestPoolShrinksToInitialAfterBurstAndIdle(t *testing.T) {
	p := New(Config{InitialBuffers: 2, MaxBuffers: 10, HighWaterMark: 5, ShrinkIdleSeconds: 0})
	p.Initialize(testShape())

	var bufs []*Buffer
	for i := 0; i < 5; i++ {
		b, ok := p.GetBuffer()
		if !ok {
			t.Fatalf("allocation %d should succeed under max_buffers", i)
		}
		bufs = append(bufs, b)
	}
	if p.Allocated() != 5 {
		t.Fatalf("want allocated=5 after burst, got %d", p.Allocated())
	}

	// Release every buffer once (iterations that reach a buffer already at
	// refcount zero are skipped), so every buffer is back in the free list.
	// These five releases do not reach shrinkCheckPeriod on their own.
	for i := 0; i < shrinkCheckPeriod+len(bufs); i++ {
		idx := i % len(bufs)
		if bufs[idx].RefCount() == 0 {
			continue
		}
		bufs[idx].Release()
	}
	time.Sleep(time.Millisecond)
	// Run the periodic shrink check directly, as releaseBuffer would once
	// the period elapses, so the test does not depend on the release count.
	p.mu.Lock()
	p.sinceShrinkCheck = shrinkCheckPeriod
	p.maybeShrinkLocked()
	p.mu.Unlock()

	if p.Allocated() != 2 {
		t.Fatalf("want pool to shrink back to initial_buffers=2, got %d", p.Allocated())
	}
}
