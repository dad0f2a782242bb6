// Package registry implements the process-wide CameraRegistry: the
// start/stop/add-pipeline/remove-pipeline/update-pipeline lifecycle for
// every running camera and its attached vision pipelines.
package registry

import (
	"fmt"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
)

// CameraDescriptor is the external, validated input used to start one
// camera and its initial set of pipelines.
type CameraDescriptor struct {
	ID            int
	Identifier    string
	CameraType    string
	Orientation   camera.Orientation
	Intrinsics    pipeline.Intrinsics
	DepthEnabled  bool
	Framerate     int
	Pipelines     []pipeline.Descriptor
}

// ValidationError reports an invalid descriptor supplied by a caller of
// start_camera, add_pipeline, or update_pipeline. It never causes a
// worker to start.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }

func validateCameraDescriptor(d CameraDescriptor) error {
	if d.Identifier == "" {
		return &ValidationError{Field: "identifier", Err: fmt.Errorf("must not be empty")}
	}
	if d.CameraType == "" {
		return &ValidationError{Field: "camera_type", Err: fmt.Errorf("must not be empty")}
	}
	switch d.Orientation {
	case camera.Orient0, camera.Orient90, camera.Orient180, camera.Orient270:
	default:
		return &ValidationError{Field: "orientation", Err: fmt.Errorf("must be one of 0, 90, 180, 270")}
	}
	seen := make(map[string]bool, len(d.Pipelines))
	for _, p := range d.Pipelines {
		if err := validatePipelineDescriptor(p); err != nil {
			return err
		}
		if seen[p.PipelineID] {
			return &ValidationError{Field: "pipelines", Err: fmt.Errorf("duplicate pipeline_id %q", p.PipelineID)}
		}
		seen[p.PipelineID] = true
	}
	return nil
}

func validatePipelineDescriptor(p pipeline.Descriptor) error {
	if p.PipelineID == "" {
		return &ValidationError{Field: "pipeline_id", Err: fmt.Errorf("must not be empty")}
	}
	switch p.PipelineType {
	case "AprilTag", "ColouredShape", "ObjectDetectionML":
	default:
		return &ValidationError{Field: "pipeline_type", Err: fmt.Errorf("unknown pipeline_type %q", p.PipelineType)}
	}
	return nil
}
