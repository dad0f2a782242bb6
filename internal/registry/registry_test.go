package registry_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/camera/fakedriver"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
	"github.com/warpcomdev/asicamera2/internal/registry"
)

type stubMetrics struct{}

func (stubMetrics) RecordQueueDepth(string, int, int)                       {}
func (stubMetrics) RecordDrop(string, int, int)                             {}
func (stubMetrics) RecordLatencies(string, time.Duration, time.Duration, time.Duration) {}
func (stubMetrics) RecordProcessed(string)                                  {}

func stubPipelineFactory(pipelineType string, config json.RawMessage) (pipeline.VisionPipeline, error) {
	switch pipelineType {
	case "AprilTag", "ColouredShape":
		return &noopPipeline{}, nil
	default:
		return nil, &pipeline.ConstructionError{PipelineType: pipelineType, Err: errors.New("model runtime not linked into this build")}
	}
}

type noopPipeline struct{}

func (noopPipeline) ProcessFrame(view []byte, shape framebuf.Shape, intrinsics pipeline.Intrinsics) (pipeline.ProcessOutput, error) {
	return pipeline.ProcessOutput{Payload: map[string]any{"ok": true}}, nil
}
func (noopPipeline) DescribeConfig() map[string]any { return nil }

func newTestRegistry() *registry.CameraRegistry {
	shape := framebuf.Shape{Height: 8, Width: 8, Channels: 1}
	return registry.New(registry.Config{
		NewDriver:       fakedriver.Factory(shape, 200),
		PipelineFactory: stubPipelineFactory,
		Metrics:         stubMetrics{},
		PoolConfig:      framebuf.Config{InitialBuffers: 2, MaxBuffers: 4, HighWaterMark: 4},
		ReconnectDelay:  10 * time.Millisecond,
	})
}

func baseDescriptor(identifier string) registry.CameraDescriptor {
	return registry.CameraDescriptor{
		Identifier:  identifier,
		CameraType:  "fake",
		Orientation: camera.Orient0,
	}
}

func TestStartCameraRejectsInvalidDescriptor(t *testing.T) {
	r := newTestRegistry()
	err := r.StartCamera(registry.CameraDescriptor{Identifier: "", CameraType: "fake", Orientation: camera.Orient0})
	var verr *registry.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}
}

func TestStartCameraIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	d := baseDescriptor("cam1")
	if err := r.StartCamera(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.StartCamera(d); err != nil {
		t.Fatalf("second start_camera should be a no-op, got error: %v", err)
	}
	r.StopCamera("cam1")
}

func TestAddPipelineRejectsDuplicateAndUnknownCamera(t *testing.T) {
	r := newTestRegistry()
	d := baseDescriptor("cam2")
	if err := r.StartCamera(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.StopCamera("cam2")

	pd := pipeline.Descriptor{PipelineID: "p1", PipelineType: "ColouredShape"}
	if err := r.AddPipeline("cam2", pd); err != nil {
		t.Fatalf("unexpected error adding pipeline: %v", err)
	}
	if err := r.AddPipeline("cam2", pd); err == nil {
		t.Fatalf("expected an error adding a duplicate pipeline_id")
	}
	if err := r.AddPipeline("does-not-exist", pd); err == nil {
		t.Fatalf("expected an error adding a pipeline to an unknown camera")
	}
}

func TestAddPipelineRefusesUnsupportedType(t *testing.T) {
	r := newTestRegistry()
	d := baseDescriptor("cam3")
	if err := r.StartCamera(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.StopCamera("cam3")

	err := r.AddPipeline("cam3", pipeline.Descriptor{PipelineID: "p1", PipelineType: "ObjectDetectionML"})
	var cerr *pipeline.ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected a ConstructionError, got %v", err)
	}
}

func TestStopCameraIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	d := baseDescriptor("cam4")
	if err := r.StartCamera(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.StopCamera("cam4")
	r.StopCamera("cam4") // must not block or panic

	if r.IsRunning("cam4") {
		t.Fatalf("expected camera to be reported as not running after stop")
	}
}

func TestUpdatePipelineReplacesDescriptor(t *testing.T) {
	r := newTestRegistry()
	d := baseDescriptor("cam5")
	if err := r.StartCamera(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.StopCamera("cam5")

	pd := pipeline.Descriptor{PipelineID: "p1", PipelineType: "ColouredShape", Config: json.RawMessage(`{"min_area_px":1}`)}
	if err := r.AddPipeline("cam5", pd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated := pipeline.Descriptor{PipelineID: "p1", PipelineType: "ColouredShape", Config: json.RawMessage(`{"min_area_px":2}`)}
	if err := r.UpdatePipeline("cam5", updated); err != nil {
		t.Fatalf("unexpected error updating pipeline: %v", err)
	}
}
