package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/framequeue"
	"github.com/warpcomdev/asicamera2/internal/pubslot"
	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

// MetricsRecorder is the subset of MetricsRegistry a Worker needs.
type MetricsRecorder interface {
	RecordLatencies(pipelineID string, total, queueWait, processing time.Duration)
	RecordProcessed(pipelineID string)
}

// WorkerConfig configures a Worker for one (camera, pipeline) pair.
type WorkerConfig struct {
	CameraIdentifier string
	Descriptor       Descriptor
	Queue            *framequeue.Queue
	Pipeline         VisionPipeline
	Metrics          MetricsRecorder
	Logger           servicelog.Logger

	// LatencyWarnMS and QueueHighUtilPct parameterize the slow-pipeline
	// warning policy; zero values fall back to the documented defaults
	// (150ms, 80%).
	LatencyWarnMS    float64
	QueueHighUtilPct float64
}

// Worker is the consumer: one goroutine per (camera, pipeline_id) that
// pops frames, runs the pipeline, and publishes results + an annotated
// frame.
type Worker struct {
	cfg WorkerConfig

	seq uint64 // atomic

	results   pubslot.ResultSlot[Result]
	annotated pubslot.FrameSlot

	warnMu   sync.Mutex
	lastWarn time.Time
}

// NewWorker constructs a Worker. The caller starts it with Run in its own
// goroutine.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.LatencyWarnMS <= 0 {
		cfg.LatencyWarnMS = 150
	}
	if cfg.QueueHighUtilPct <= 0 {
		cfg.QueueHighUtilPct = 80
	}
	if cfg.Logger == nil {
		cfg.Logger = servicelog.Nop()
	}
	return &Worker{cfg: cfg}
}

// Results returns the latest-result publication slot.
func (w *Worker) Results() *pubslot.ResultSlot[Result] { return &w.results }

// Annotated returns the latest-annotated-frame publication slot.
func (w *Worker) Annotated() *pubslot.FrameSlot { return &w.annotated }

// NewConstructionErrorWorker builds a Worker for a pipeline that failed to
// construct: there is no VisionPipeline to run, so the result slot is
// populated once with the construction error and Run just waits for ctx to
// be cancelled. This keeps a failed pipeline visible through
// GetLatestResults instead of the pipeline_id being silently absent.
func NewConstructionErrorWorker(descriptor Descriptor, cerr *ConstructionError) *Worker {
	w := &Worker{cfg: WorkerConfig{Descriptor: descriptor}}
	now := time.Now()
	w.results.Publish(Result{Err: cerr, CapturedAt: now}, 0, now)
	return w
}

// Run pops frames with a short timeout until ctx is cancelled. A Worker
// with no Queue (see NewConstructionErrorWorker) has nothing to pop and
// just idles until cancellation.
func (w *Worker) Run(ctx context.Context) {
	if w.cfg.Queue == nil {
		<-ctx.Done()
		return
	}
	const popTimeout = time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		buf, ok := w.cfg.Queue.Pop(popTimeout)
		if !ok {
			continue // timeout: re-check stop signal and try again
		}
		w.processFrame(buf)
	}
}

func (w *Worker) processFrame(buf *framebuf.Buffer) {
	defer buf.Release()

	dequeueTS := time.Now()
	var queueWait time.Duration
	if enqTS, ok := buf.PopEnqueueTimestamp(w.cfg.Descriptor.PipelineID); ok {
		queueWait = dequeueTS.Sub(enqTS)
	}

	intrinsics := w.cfg.Descriptor.Intrinsics
	if !intrinsics.Valid {
		intrinsics = PinholeFromShape(buf.Shape())
	}

	out, procErr := w.cfg.Pipeline.ProcessFrame(buf.ReadView(), buf.Shape(), intrinsics)

	writable := buf.WritableCopy()
	if procErr == nil && out.DrawOverlay != nil {
		out.DrawOverlay(writable, buf.Shape())
	}
	annotated := framebuf.WrapBytes(buf.Shape(), writable)

	now := time.Now()
	processing := now.Sub(dequeueTS)
	total := now.Sub(buf.CreatedAt())
	seq := atomic.AddUint64(&w.seq, 1)

	result := Result{
		Sequence:       seq,
		CapturedAt:     now,
		TotalLatencyMS: msOf(total),
		QueueWaitMS:    msOf(queueWait),
		ProcessingMS:   msOf(processing),
	}
	if procErr != nil {
		result.Err = &ProcessingError{PipelineID: w.cfg.Descriptor.PipelineID, Err: procErr}
	} else {
		result.Payload = out.Payload
	}

	w.results.Publish(result, seq, now)
	w.annotated.Publish(annotated, seq, now)

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.RecordLatencies(w.cfg.Descriptor.PipelineID, total, queueWait, processing)
		w.cfg.Metrics.RecordProcessed(w.cfg.Descriptor.PipelineID)
	}
	if procErr != nil {
		w.cfg.Logger.Warn("pipeline processing error",
			servicelog.String("pipeline", w.cfg.Descriptor.PipelineID),
			servicelog.Error(procErr))
	}

	w.maybeWarnSlow(result)
}

func msOf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// maybeWarnSlow implements the slow-pipeline warning policy: at most one
// log per five seconds, triggered by total latency exceeding the
// configured threshold, queue utilization exceeding the configured
// threshold, or queue-wait exceeding max(0.6*threshold, 50ms).
func (w *Worker) maybeWarnSlow(result Result) {
	utilPct := 0.0
	if cap := w.cfg.Queue.Capacity(); cap > 0 {
		utilPct = float64(w.cfg.Queue.Depth()) / float64(cap) * 100
	}
	queueWaitThreshold := 0.6 * w.cfg.LatencyWarnMS
	if queueWaitThreshold < 50 {
		queueWaitThreshold = 50
	}

	slow := result.TotalLatencyMS > w.cfg.LatencyWarnMS ||
		utilPct > w.cfg.QueueHighUtilPct ||
		result.QueueWaitMS > queueWaitThreshold
	if !slow {
		return
	}

	w.warnMu.Lock()
	defer w.warnMu.Unlock()
	if time.Since(w.lastWarn) < 5*time.Second {
		return
	}
	w.lastWarn = time.Now()
	w.cfg.Logger.Warn("slow pipeline",
		servicelog.String("pipeline", w.cfg.Descriptor.PipelineID),
		servicelog.Any("total_ms", result.TotalLatencyMS),
		servicelog.Any("queue_wait_ms", result.QueueWaitMS),
		servicelog.Any("queue_utilization_pct", utilPct))
}
