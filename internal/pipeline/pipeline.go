// Package pipeline defines the VisionPipeline contract, the per-pipeline
// descriptor and result types, and the PipelineWorker consumer loop that
// drives a pipeline off a camera's FrameQueue.
package pipeline

import (
	"encoding/json"
	"time"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// Matrix3 is a row-major 3x3 camera intrinsic matrix.
type Matrix3 [3][3]float64

func (m Matrix3) FX() float64 { return m[0][0] }
func (m Matrix3) FY() float64 { return m[1][1] }
func (m Matrix3) CX() float64 { return m[0][2] }
func (m Matrix3) CY() float64 { return m[1][2] }

// Intrinsics carries the camera matrix and distortion coefficients a
// pipeline needs for pose estimation. Valid is false when no calibration
// has been supplied yet.
type Intrinsics struct {
	Matrix Matrix3
	Dist   []float64
	Valid  bool
}

// PinholeFromShape synthesizes a default pinhole model from frame
// dimensions: fx = fy = 0.9*width, cx = width/2, cy = height/2. Used when
// no calibration is available so a pipeline can still run.
func PinholeFromShape(shape framebuf.Shape) Intrinsics {
	fx := 0.9 * float64(shape.Width)
	cx := float64(shape.Width) / 2
	cy := float64(shape.Height) / 2
	return Intrinsics{
		Matrix: Matrix3{
			{fx, 0, cx},
			{0, fx, cy},
			{0, 0, 1},
		},
		Valid: true,
	}
}

// Descriptor is the immutable input used to build and run one
// PipelineWorker. Updates never mutate a Descriptor in place; they replace
// the worker with a fresh one built from a new Descriptor.
type Descriptor struct {
	PipelineID    string
	PipelineType  string
	Config        json.RawMessage
	Intrinsics    Intrinsics
	QueueCapacity int
}

// ProcessOutput is what a VisionPipeline hands back for one frame: an
// opaque, pipeline-defined JSON-shaped payload, plus an optional overlay
// drawer the worker invokes against a writable copy of the frame.
type ProcessOutput struct {
	Payload     any
	DrawOverlay func(pix []byte, shape framebuf.Shape)
}

// VisionPipeline is the external contract every vision algorithm plug-in
// satisfies (the reference AprilTag and ColouredShape implementations live
// in sibling packages).
type VisionPipeline interface {
	ProcessFrame(view []byte, shape framebuf.Shape, intrinsics Intrinsics) (ProcessOutput, error)
	DescribeConfig() map[string]any
}

// Factory builds a VisionPipeline for a given pipeline_type from its
// serialized config. An unsupported pipeline_type or invalid config must
// return a PipelineConstructionError.
type Factory func(pipelineType string, config json.RawMessage) (VisionPipeline, error)

// Result is the published per-pipeline output: latencies, a monotonic
// sequence number, a capture timestamp, and either a payload or the last
// processing error.
type Result struct {
	Payload        any
	Err            error
	TotalLatencyMS float64
	QueueWaitMS    float64
	ProcessingMS   float64
	Sequence       uint64
	CapturedAt     time.Time
}
