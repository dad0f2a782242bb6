package framequeue

import (
	"testing"
	"time"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

func newTestBuffer(pool *framebuf.Pool) *framebuf.Buffer {
	buf, ok := pool.GetBuffer()
	if !ok {
		panic("test pool unexpectedly exhausted")
	}
	return buf
}

func testPool(t *testing.T, n int) *framebuf.Pool {
	p := framebuf.New(framebuf.Config{InitialBuffers: n, MaxBuffers: n, HighWaterMark: n, ShrinkIdleSeconds: 0})
	p.Initialize(framebuf.Shape{Height: 1, Width: 1, Channels: 1})
	return p
}

func TestQueueAcceptsUnderCapacity(t *testing.T) {
	q := New(2)
	pool := testPool(t, 2)
	b1 := newTestBuffer(pool)
	result, evicted := q.Push(b1)
	if result != Accepted || evicted != nil {
		t.Fatalf("want Accepted/nil, got %v/%v", result, evicted)
	}
	if q.Depth() != 1 {
		t.Fatalf("want depth 1, got %d", q.Depth())
	}
}

func TestQueueEvictsOldestOnOverflow(t *testing.T) {
	q := New(1)
	pool := testPool(t, 3)
	b1 := newTestBuffer(pool)
	b2 := newTestBuffer(pool)

	result, evicted := q.Push(b1)
	if result != Accepted || evicted != nil {
		t.Fatalf("first push should be accepted")
	}
	result, evicted = q.Push(b2)
	if result != Evicted || evicted != b1 {
		t.Fatalf("second push into a full capacity-1 queue should evict the first")
	}
	if q.Depth() != 1 {
		t.Fatalf("want depth 1 after evict-then-push, got %d", q.Depth())
	}
}

func TestQueuePopFIFO(t *testing.T) {
	q := New(4)
	pool := testPool(t, 2)
	b1 := newTestBuffer(pool)
	b2 := newTestBuffer(pool)
	q.Push(b1)
	q.Push(b2)

	got1, ok := q.Pop(time.Second)
	if !ok || got1 != b1 {
		t.Fatalf("want b1 first")
	}
	got2, ok := q.Pop(time.Second)
	if !ok || got2 != b2 {
		t.Fatalf("want b2 second")
	}
}

func TestQueuePopTimesOutWhenEmpty(t *testing.T) {
	q := New(2)
	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	if ok {
		t.Fatalf("pop on empty queue should time out")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("pop returned suspiciously fast")
	}
}

func TestQueueDrain(t *testing.T) {
	q := New(4)
	pool := testPool(t, 3)
	for i := 0; i < 3; i++ {
		q.Push(newTestBuffer(pool))
	}
	drained := q.Drain(2)
	if len(drained) != 2 {
		t.Fatalf("want 2 drained, got %d", len(drained))
	}
	if q.Depth() != 1 {
		t.Fatalf("want depth 1 remaining, got %d", q.Depth())
	}
}

func TestQueuePopUnblocksOnClose(t *testing.T) {
	q := New(2)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(time.Second)
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("pop after close should report not-ok")
		}
	case <-time.After(time.Second):
		t.Fatalf("pop did not unblock on close")
	}
}
