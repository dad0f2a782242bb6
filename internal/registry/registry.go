package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/framequeue"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
	"github.com/warpcomdev/asicamera2/internal/pubslot"
	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

const joinTimeout = 5 * time.Second

// Metrics is the combined metrics surface the registry's workers record
// against.
type Metrics interface {
	camera.MetricsRecorder
	pipeline.MetricsRecorder
}

// Config configures a CameraRegistry.
type Config struct {
	NewDriver         camera.Factory
	PipelineFactory   pipeline.Factory
	Metrics           Metrics
	Logger            servicelog.Logger
	CalibrationActive camera.CalibrationQuery

	PoolConfig           framebuf.Config
	ReconnectDelay       time.Duration
	DefaultQueueCapacity int
}

// CameraRegistry is the process-wide table of running camera groups. It
// exclusively owns the set of CameraGroup records; each group exclusively
// owns its worker handles.
type CameraRegistry struct {
	cfg Config

	mu     sync.Mutex
	groups map[string]*cameraGroup
}

// New constructs an empty CameraRegistry.
func New(cfg Config) *CameraRegistry {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.DefaultQueueCapacity <= 0 {
		cfg.DefaultQueueCapacity = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = servicelog.Nop()
	}
	return &CameraRegistry{cfg: cfg, groups: make(map[string]*cameraGroup)}
}

// StartCamera builds a BufferPool, a CameraWorker, and one PipelineWorker
// per descriptor-supplied pipeline, and starts them all. A second call
// for an identifier that is already present is a no-op.
func (r *CameraRegistry) StartCamera(d CameraDescriptor) error {
	if err := validateCameraDescriptor(d); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.groups[d.Identifier]; exists {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	pool := framebuf.New(r.cfg.PoolConfig)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	worker := camera.NewWorker(camera.WorkerConfig{
		Identifier:        d.Identifier,
		CameraType:        d.CameraType,
		NewDriver:         r.cfg.NewDriver,
		Pool:              pool,
		ReconnectDelay:    r.cfg.ReconnectDelay,
		Metrics:           r.cfg.Metrics,
		Logger:            r.cfg.Logger,
		CalibrationActive: r.cfg.CalibrationActive,
	})
	worker.SetOrientation(d.Orientation)

	group := newCameraGroup(d.Identifier, pool, worker, cancel, done, d.Intrinsics)

	r.mu.Lock()
	if _, exists := r.groups[d.Identifier]; exists {
		r.mu.Unlock()
		cancel()
		return nil
	}
	r.groups[d.Identifier] = group
	r.mu.Unlock()

	go func() { worker.Run(ctx); close(done) }()

	for _, pd := range d.Pipelines {
		if err := r.addPipelineLocked(group, pd); err != nil {
			r.cfg.Logger.Error("starting initial pipeline",
				servicelog.String("camera", d.Identifier),
				servicelog.String("pipeline", pd.PipelineID),
				servicelog.Error(err))
		}
	}
	return nil
}

// StopCamera copies the worker handles under the lock, marks the group
// stopping, releases the lock, signals stop on every worker, joins with a
// timeout, and removes the group from the map. A second concurrent call
// for the same identifier is a no-op.
func (r *CameraRegistry) StopCamera(identifier string) {
	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return
	}

	group.mu.Lock()
	if group.stopping {
		group.mu.Unlock()
		return
	}
	group.stopping = true
	handles := make([]*pipelineHandle, 0, len(group.pipelines))
	for _, h := range group.pipelines {
		handles = append(handles, h)
	}
	group.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	group.cancel()

	for _, h := range handles {
		joinWithTimeout(h.done, joinTimeout)
		if h.closer != nil {
			h.closer.Close()
		}
	}
	joinWithTimeout(group.done, joinTimeout)

	r.mu.Lock()
	delete(r.groups, identifier)
	r.mu.Unlock()
}

// AddPipeline refuses if the group is stopping, absent, or the
// pipeline_id is already present; otherwise it creates a FrameQueue,
// registers it with the producer, and starts a PipelineWorker.
func (r *CameraRegistry) AddPipeline(identifier string, pd pipeline.Descriptor) error {
	if err := validatePipelineDescriptor(pd); err != nil {
		return err
	}

	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return &ValidationError{Field: "identifier", Err: fmt.Errorf("camera %q is not running", identifier)}
	}
	return r.addPipelineLocked(group, pd)
}

func (r *CameraRegistry) addPipelineLocked(group *cameraGroup, pd pipeline.Descriptor) error {
	group.mu.Lock()
	if group.stopping {
		group.mu.Unlock()
		return &ValidationError{Field: "identifier", Err: fmt.Errorf("camera %q is stopping", group.identifier)}
	}
	if _, exists := group.pipelines[pd.PipelineID]; exists {
		group.mu.Unlock()
		return &ValidationError{Field: "pipeline_id", Err: fmt.Errorf("pipeline %q already exists", pd.PipelineID)}
	}
	group.mu.Unlock()

	if !pd.Intrinsics.Valid {
		pd.Intrinsics = group.intrinsics
	}

	vp, err := r.cfg.PipelineFactory(pd.PipelineType, pd.Config)
	if err != nil {
		return r.installFailedPipeline(group, pd, err)
	}

	capacity := pd.QueueCapacity
	if capacity <= 0 {
		capacity = r.cfg.DefaultQueueCapacity
	}
	queue := framequeue.New(capacity)
	group.worker.AddQueue(pd.PipelineID, queue)

	pctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	pw := pipeline.NewWorker(pipeline.WorkerConfig{
		CameraIdentifier: group.identifier,
		Descriptor:       pd,
		Queue:            queue,
		Pipeline:         vp,
		Metrics:          r.cfg.Metrics,
		Logger:           r.cfg.Logger,
	})

	var closer interface{ Close() }
	if c, ok := vp.(interface{ Close() }); ok {
		closer = c
	}

	handle := &pipelineHandle{descriptor: pd, worker: pw, queue: queue, cancel: cancel, done: done, closer: closer}

	group.mu.Lock()
	if group.stopping {
		group.mu.Unlock()
		cancel()
		group.worker.RemoveQueue(pd.PipelineID)
		if closer != nil {
			closer.Close()
		}
		return &ValidationError{Field: "identifier", Err: fmt.Errorf("camera %q is stopping", group.identifier)}
	}
	group.pipelines[pd.PipelineID] = handle
	group.mu.Unlock()

	go func() { pw.Run(pctx); close(done) }()
	return nil
}

// installFailedPipeline records a pipeline_id that failed construction as
// a handle whose result slot permanently holds the construction error,
// instead of leaving the pipeline_id absent from the group. The original
// error is still returned so the caller can log it.
func (r *CameraRegistry) installFailedPipeline(group *cameraGroup, pd pipeline.Descriptor, cause error) error {
	var cerr *pipeline.ConstructionError
	if !errors.As(cause, &cerr) {
		cerr = &pipeline.ConstructionError{PipelineType: pd.PipelineType, Err: cause}
	}
	cerr.PipelineID = pd.PipelineID

	pctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	pw := pipeline.NewConstructionErrorWorker(pd, cerr)
	handle := &pipelineHandle{descriptor: pd, worker: pw, cancel: cancel, done: done}

	group.mu.Lock()
	if group.stopping {
		group.mu.Unlock()
		cancel()
		return cerr
	}
	group.pipelines[pd.PipelineID] = handle
	group.mu.Unlock()

	go func() { pw.Run(pctx); close(done) }()
	return cerr
}

// RemovePipeline signals stop on the pipeline's worker, deregisters its
// queue from the producer, joins with a timeout, and removes it from the
// group.
func (r *CameraRegistry) RemovePipeline(identifier, pipelineID string) {
	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.removePipelineLocked(group, pipelineID)
}

func (r *CameraRegistry) removePipelineLocked(group *cameraGroup, pipelineID string) {
	group.mu.Lock()
	handle, ok := group.pipelines[pipelineID]
	if ok {
		delete(group.pipelines, pipelineID)
	}
	group.mu.Unlock()
	if !ok {
		return
	}

	handle.cancel()
	group.worker.RemoveQueue(pipelineID)
	joinWithTimeout(handle.done, joinTimeout)
	if handle.closer != nil {
		handle.closer.Close()
	}
}

// UpdatePipeline is remove_pipeline followed by add_pipeline: the
// producer is never paused, and any frames in flight for the old worker
// may be lost.
func (r *CameraRegistry) UpdatePipeline(identifier string, pd pipeline.Descriptor) error {
	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return &ValidationError{Field: "identifier", Err: fmt.Errorf("camera %q is not running", identifier)}
	}
	r.removePipelineLocked(group, pd.PipelineID)
	return r.addPipelineLocked(group, pd)
}

// LatestResult is one pipeline's most recently published result, paired
// with the identifying pipeline_id.
type LatestResult struct {
	PipelineID string
	Result     pipeline.Result
	HasResult  bool
}

// GetLatestResults snapshots every pipeline worker's latest result slot
// for a camera.
func (r *CameraRegistry) GetLatestResults(identifier string) []LatestResult {
	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	handles := group.snapshotPipelines()
	out := make([]LatestResult, 0, len(handles))
	for id, h := range handles {
		result, _, _, has := h.worker.Results().Get()
		out = append(out, LatestResult{PipelineID: id, Result: result, HasResult: has})
	}
	return out
}

// IsRunning reports whether a non-stopping group exists for identifier
// and its producer is live.
func (r *CameraRegistry) IsRunning(identifier string) bool {
	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if group.isStopping() {
		return false
	}
	return group.worker.State() != camera.StateStopped
}

// DisplaySlot returns the camera's latest-display-frame publication slot,
// or nil if the camera is not running.
func (r *CameraRegistry) DisplaySlot(identifier string) *pubslot.FrameSlot {
	r.mu.Lock()
	group, ok := r.groups[identifier]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return group.worker.DisplaySlot()
}
