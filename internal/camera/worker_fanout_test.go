package camera_test

import (
	"context"
	"testing"
	"time"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/camera/fakedriver"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/framequeue"
)

func TestWorkerFansOutAndPublishesDisplay(t *testing.T) {
	shape := framebuf.Shape{Height: 8, Width: 8, Channels: 1}
	pool := framebuf.New(framebuf.Config{InitialBuffers: 2, MaxBuffers: 4, HighWaterMark: 3, ShrinkIdleSeconds: 1})

	q := framequeue.New(2)
	w := camera.NewWorker(camera.WorkerConfig{
		Identifier:     "cam1",
		CameraType:     "fake",
		NewDriver:      fakedriver.Factory(shape, 200),
		Pool:           pool,
		ReconnectDelay: 50 * time.Millisecond,
	})
	w.AddQueue("pipeline-a", q)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	<-done

	if w.State() != camera.StateStopped {
		t.Fatalf("worker should settle in StateStopped after ctx cancellation, got %v", w.State())
	}
	if _, _, _, ok := w.DisplaySlot().Get(); !ok {
		t.Fatalf("expected at least one published display frame")
	}
	if q.Depth() == 0 {
		t.Fatalf("expected at least one frame fanned out to the pipeline queue")
	}
}

func TestWorkerDrainsQueuesOnPoolExhaustion(t *testing.T) {
	shape := framebuf.Shape{Height: 4, Width: 4, Channels: 1}
	pool := framebuf.New(framebuf.Config{InitialBuffers: 1, MaxBuffers: 1, HighWaterMark: 1, ShrinkIdleSeconds: 0})

	q := framequeue.New(1)
	w := camera.NewWorker(camera.WorkerConfig{
		Identifier:     "cam2",
		CameraType:     "fake",
		NewDriver:      fakedriver.Factory(shape, 500),
		Pool:           pool,
		ReconnectDelay: 50 * time.Millisecond,
	})
	w.AddQueue("pipeline-a", q)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	<-done

	// The pool can never hold more than max_buffers allocated even though
	// many frames were produced under sustained single-buffer pressure.
	if pool.Allocated() > 1 {
		t.Fatalf("pool must never exceed max_buffers, got allocated=%d", pool.Allocated())
	}
}
