package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/framequeue"
)

type stubPipeline struct {
	fail bool
}

func (s *stubPipeline) ProcessFrame(view []byte, shape framebuf.Shape, intrinsics Intrinsics) (ProcessOutput, error) {
	if s.fail {
		return ProcessOutput{}, errors.New("boom")
	}
	return ProcessOutput{Payload: map[string]any{"ok": true}}, nil
}

func (s *stubPipeline) DescribeConfig() map[string]any { return nil }

func testPoolBuffer(t *testing.T) *framebuf.Buffer {
	t.Helper()
	pool := framebuf.New(framebuf.Config{InitialBuffers: 1, MaxBuffers: 1, HighWaterMark: 1})
	pool.Initialize(framebuf.Shape{Height: 2, Width: 2, Channels: 1})
	buf, ok := pool.GetBuffer()
	if !ok {
		t.Fatalf("pool unexpectedly exhausted")
	}
	return buf
}

func TestWorkerPublishesResultAndAnnotatedFrame(t *testing.T) {
	q := framequeue.New(2)
	buf := testPoolBuffer(t)
	buf.MarkEnqueued("p1", time.Now())
	q.Push(buf)

	w := NewWorker(WorkerConfig{
		Descriptor: Descriptor{PipelineID: "p1", PipelineType: "AprilTag"},
		Queue:      q,
		Pipeline:   &stubPipeline{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()
	<-done

	result, seq, _, ok := w.Results().Get()
	if !ok {
		t.Fatalf("expected a published result")
	}
	if seq != 1 {
		t.Fatalf("want sequence 1, got %d", seq)
	}
	if result.Err != nil {
		t.Fatalf("unexpected error in result: %v", result.Err)
	}
	if _, _, _, ok := w.Annotated().Get(); !ok {
		t.Fatalf("expected a published annotated frame")
	}
}

func TestWorkerReportsLastErrorAndContinues(t *testing.T) {
	q := framequeue.New(2)
	buf := testPoolBuffer(t)
	q.Push(buf)

	w := NewWorker(WorkerConfig{
		Descriptor: Descriptor{PipelineID: "p1"},
		Queue:      q,
		Pipeline:   &stubPipeline{fail: true},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()
	<-done

	result, _, _, ok := w.Results().Get()
	if !ok {
		t.Fatalf("expected a published result even on pipeline failure")
	}
	if result.Err == nil {
		t.Fatalf("expected the processing error to be reported in the result")
	}
	if !errors.Is(result.Err, ErrPipelineProcessing) {
		t.Fatalf("expected result.Err to be a ProcessingError, got %v", result.Err)
	}
}

func TestPinholeFromShapeDefaults(t *testing.T) {
	shape := framebuf.Shape{Height: 480, Width: 640, Channels: 1}
	in := PinholeFromShape(shape)
	if !in.Valid {
		t.Fatalf("synthesized intrinsics must be marked valid")
	}
	wantFX := 0.9 * 640.0
	if in.Matrix.FX() != wantFX || in.Matrix.FY() != wantFX {
		t.Fatalf("want fx=fy=%v, got fx=%v fy=%v", wantFX, in.Matrix.FX(), in.Matrix.FY())
	}
	if in.Matrix.CX() != 320 || in.Matrix.CY() != 240 {
		t.Fatalf("want cx=320 cy=240, got cx=%v cy=%v", in.Matrix.CX(), in.Matrix.CY())
	}
}
