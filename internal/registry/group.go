package registry

import (
	"context"
	"sync"
	"time"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/framequeue"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
)

// pipelineHandle bundles a running PipelineWorker with the goroutine
// lifecycle plumbing needed to stop it.
type pipelineHandle struct {
	descriptor pipeline.Descriptor
	worker     *pipeline.Worker
	queue      *framequeue.Queue
	cancel     context.CancelFunc
	done       chan struct{}
	closer     interface{ Close() }
}

// cameraGroup is the registry's record for one running camera: the
// producer handle, its pool, and every attached pipeline worker. While
// stopping is true, no pipeline may be added or updated.
type cameraGroup struct {
	identifier string

	pool       *framebuf.Pool
	worker     *camera.Worker
	cancel     context.CancelFunc
	done       chan struct{}
	intrinsics pipeline.Intrinsics

	mu        sync.Mutex
	pipelines map[string]*pipelineHandle
	stopping  bool
}

func newCameraGroup(identifier string, pool *framebuf.Pool, worker *camera.Worker, cancel context.CancelFunc, done chan struct{}, intrinsics pipeline.Intrinsics) *cameraGroup {
	return &cameraGroup{
		identifier: identifier,
		pool:       pool,
		worker:     worker,
		cancel:     cancel,
		done:       done,
		intrinsics: intrinsics,
		pipelines:  make(map[string]*pipelineHandle),
	}
}

func (g *cameraGroup) isStopping() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopping
}

// snapshotPipelines returns a copy of the current pipeline handle map,
// safe to range over without holding g.mu across I/O.
func (g *cameraGroup) snapshotPipelines() map[string]*pipelineHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]*pipelineHandle, len(g.pipelines))
	for k, v := range g.pipelines {
		out[k] = v
	}
	return out
}

func joinWithTimeout(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
