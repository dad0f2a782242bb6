package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/framequeue"
	"github.com/warpcomdev/asicamera2/internal/pubslot"
	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

// State is a CameraWorker lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MetricsRecorder is the subset of MetricsRegistry a Worker needs. It is
// declared here, not imported from the metrics package, so camera stays
// free of a dependency on it.
type MetricsRecorder interface {
	RecordQueueDepth(pipelineID string, depth, capacity int)
	RecordDrop(pipelineID string, depth, capacity int)
}

// CalibrationQuery answers whether a camera's calibration-capture mode is
// currently active; when true, the producer pays the cost of maintaining a
// "latest raw frame" publication.
type CalibrationQuery func(identifier string) bool

// WorkerConfig configures a Worker for one camera.
type WorkerConfig struct {
	Identifier        string
	CameraType        string
	NewDriver         Factory
	Pool              *framebuf.Pool
	ReconnectDelay    time.Duration
	Metrics           MetricsRecorder
	Logger            servicelog.Logger
	CalibrationActive CalibrationQuery
}

// Worker is the producer: a single long-running loop per camera that
// connects, reads, rotates, stamps the display overlay, fans out to
// pipeline queues, and reconnects on failure.
type Worker struct {
	cfg WorkerConfig

	state int32 // atomic State

	orientation        int32 // atomic Orientation
	orientationChanged int32 // atomic bool

	mu     sync.Mutex
	queues map[string]*framequeue.Queue

	display pubslot.FrameSlot
	raw     pubslot.FrameSlot
	rawOn   bool // producer-goroutine-only, no lock needed

	displaySeq uint64 // atomic

	fpsMu          sync.Mutex
	fpsCount       int
	fpsWindowStart time.Time
	fps            float64

	dropMu      sync.Mutex
	dropStreak  int
	lastDropLog time.Time
}

// NewWorker constructs a Worker. The caller starts it with Run in its own
// goroutine.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = servicelog.Nop()
	}
	return &Worker{
		cfg:    cfg,
		queues: make(map[string]*framequeue.Queue),
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	return State(atomic.LoadInt32(&w.state))
}

func (w *Worker) setState(s State) {
	atomic.StoreInt32(&w.state, int32(s))
}

// SetOrientation requests a rotation change, applied atomically by the
// producer loop between frames.
func (w *Worker) SetOrientation(o Orientation) {
	atomic.StoreInt32(&w.orientation, int32(o))
	atomic.StoreInt32(&w.orientationChanged, 1)
}

func (w *Worker) currentOrientation() Orientation {
	return Orientation(atomic.LoadInt32(&w.orientation))
}

// AddQueue registers pipelineID's queue with the producer's fan-out set.
func (w *Worker) AddQueue(pipelineID string, q *framequeue.Queue) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queues[pipelineID] = q
}

// RemoveQueue deregisters a pipeline's queue and returns it, or nil if
// absent.
func (w *Worker) RemoveQueue(pipelineID string) *framequeue.Queue {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.queues[pipelineID]
	delete(w.queues, pipelineID)
	return q
}

// DisplaySlot returns the publication slot for the latest display frame.
func (w *Worker) DisplaySlot() *pubslot.FrameSlot { return &w.display }

// RawSlot returns the publication slot for the latest raw (calibration)
// frame.
func (w *Worker) RawSlot() *pubslot.FrameSlot { return &w.raw }

// FPS returns the most recent 1Hz frames-per-second estimate.
func (w *Worker) FPS() float64 {
	w.fpsMu.Lock()
	defer w.fpsMu.Unlock()
	return w.fps
}

// Run is the outer loop: instantiate the driver, connect, run the inner
// loop until it exits (frame error or disconnection), disconnect, and
// retry after a delay unless ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.setState(StateStarting)
	defer w.setState(StateStopped)

	for ctx.Err() == nil {
		drv, err := w.cfg.NewDriver(w.cfg.CameraType)
		if err != nil {
			w.cfg.Logger.Error("instantiate driver", servicelog.String("camera_type", w.cfg.CameraType), servicelog.Error(err))
			if !w.waitReconnect(ctx) {
				return
			}
			continue
		}

		if err := drv.Connect(ctx); err != nil {
			connErr := &DriverConnectionError{CameraType: w.cfg.CameraType, Err: err}
			w.cfg.Logger.Warn("camera connect failed", servicelog.String("camera", w.cfg.Identifier), servicelog.Error(connErr))
			if !w.waitReconnect(ctx) {
				return
			}
			continue
		}

		w.setState(StateRunning)
		w.innerLoop(ctx, drv)
		drv.Disconnect()
		w.raw.Clear()

		if ctx.Err() != nil {
			return
		}
		w.setState(StateReconnecting)
		if !w.waitReconnect(ctx) {
			return
		}
	}
}

func (w *Worker) waitReconnect(ctx context.Context) bool {
	t := time.NewTimer(w.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *Worker) innerLoop(ctx context.Context, drv Driver) {
	shapeSeeded := false

	for {
		if ctx.Err() != nil {
			return
		}

		changed := atomic.CompareAndSwapInt32(&w.orientationChanged, 1, 0)
		orient := w.currentOrientation()

		frame, err := drv.GetFrame(ctx)
		if err != nil {
			acqErr := &DriverFrameAcquisitionError{CameraType: w.cfg.CameraType, Err: err}
			w.cfg.Logger.Warn("frame acquisition failed", servicelog.String("camera", w.cfg.Identifier), servicelog.Error(acqErr))
			return
		}
		if frame == nil {
			return // driver signalled disconnection
		}

		pix, shape, err := Rotate(frame.Pix, frame.Shape, orient)
		if err != nil {
			w.cfg.Logger.Error("rotate frame", servicelog.String("camera", w.cfg.Identifier), servicelog.Error(err))
			return
		}

		if !shapeSeeded || changed {
			w.cfg.Pool.Initialize(shape)
			shapeSeeded = true
		}

		buf, ok := w.cfg.Pool.GetBuffer()
		if !ok {
			w.drainQueues(2)
			continue
		}
		copy(buf.ReadView(), pix)

		if w.cfg.CalibrationActive != nil && w.cfg.CalibrationActive(w.cfg.Identifier) {
			buf.Acquire()
			w.raw.Publish(buf, 0, time.Now())
			w.rawOn = true
		} else if w.rawOn {
			w.raw.Clear()
			w.rawOn = false
		}

		w.fanOut(buf)
		w.publishDisplay(buf)
		buf.Release()
		w.tickFPS()
	}
}

// drainQueues relieves backpressure on pool exhaustion by popping up to n
// frames from every registered pipeline queue and releasing them.
func (w *Worker) drainQueues(n int) {
	w.mu.Lock()
	queues := make([]*framequeue.Queue, 0, len(w.queues))
	for _, q := range w.queues {
		queues = append(queues, q)
	}
	w.mu.Unlock()

	for _, q := range queues {
		for _, b := range q.Drain(n) {
			b.Release()
		}
	}
}

func (w *Worker) fanOut(buf *framebuf.Buffer) {
	w.mu.Lock()
	snapshot := make(map[string]*framequeue.Queue, len(w.queues))
	for id, q := range w.queues {
		snapshot[id] = q
	}
	w.mu.Unlock()

	anyDrop := false
	for pipelineID, q := range snapshot {
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.RecordQueueDepth(pipelineID, q.Depth(), q.Capacity())
		}

		buf.Acquire()
		result, evicted := q.Push(buf)
		if result == framequeue.Evicted {
			if evicted != nil {
				evicted.Release()
			}
			anyDrop = true
			if w.cfg.Metrics != nil {
				w.cfg.Metrics.RecordDrop(pipelineID, q.Depth(), q.Capacity())
			}
		}
		buf.MarkEnqueued(pipelineID, time.Now())

		if w.cfg.Metrics != nil {
			w.cfg.Metrics.RecordQueueDepth(pipelineID, q.Depth(), q.Capacity())
		}
	}
	w.recordDropThrottled(anyDrop)
}

// recordDropThrottled logs at most one drop warning per camera per five
// seconds, plus extra bursts at consecutive-drop counts 1, 5, and 10.
func (w *Worker) recordDropThrottled(dropped bool) {
	w.dropMu.Lock()
	defer w.dropMu.Unlock()

	if !dropped {
		w.dropStreak = 0
		return
	}
	w.dropStreak++
	now := time.Now()
	burst := w.dropStreak == 1 || w.dropStreak == 5 || w.dropStreak == 10
	if burst || now.Sub(w.lastDropLog) >= 5*time.Second {
		w.cfg.Logger.Warn("dropping frames",
			servicelog.String("camera", w.cfg.Identifier),
			servicelog.Int("consecutive_drops", w.dropStreak))
		w.lastDropLog = now
	}
}

func (w *Worker) publishDisplay(buf *framebuf.Buffer) {
	view, inPlace := buf.ModifiableView()
	w.drawOverlay(view, buf.Shape())

	seq := atomic.AddUint64(&w.displaySeq, 1)
	if inPlace {
		buf.Acquire()
		w.display.Publish(buf, seq, time.Now())
		return
	}
	w.display.Publish(framebuf.WrapBytes(buf.Shape(), view), seq, time.Now())
}

func (w *Worker) drawOverlay(pix []byte, shape framebuf.Shape) {
	mt, err := matType(shape.Channels)
	if err != nil {
		return
	}
	mat, err := gocv.NewMatFromBytes(shape.Height, shape.Width, mt, pix)
	if err != nil {
		return
	}
	defer mat.Close()

	text := fmt.Sprintf("%.1f fps", w.FPS())
	gocv.PutText(&mat, text, image.Pt(8, 24), gocv.FontHersheyPlain, 1.2, color.RGBA{R: 0, G: 255, B: 0, A: 0}, 2)
}

func (w *Worker) tickFPS() {
	w.fpsMu.Lock()
	defer w.fpsMu.Unlock()

	if w.fpsWindowStart.IsZero() {
		w.fpsWindowStart = time.Now()
	}
	w.fpsCount++
	if elapsed := time.Since(w.fpsWindowStart); elapsed >= time.Second {
		w.fps = float64(w.fpsCount) / elapsed.Seconds()
		w.fpsCount = 0
		w.fpsWindowStart = time.Now()
	}
}
