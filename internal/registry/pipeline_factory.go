package registry

import (
	"encoding/json"
	"fmt"

	"github.com/warpcomdev/asicamera2/internal/apriltag"
	"github.com/warpcomdev/asicamera2/internal/colouredshape"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

// DetectorFactory builds an apriltag.Detector, for whichever native
// detector backend a build links in. Builds without one wired pass a
// factory that always returns apriltag.NullDetector{}.
type DetectorFactory func() apriltag.Detector

// NewPipelineFactory returns a pipeline.Factory that dispatches on
// pipeline_type: AprilTag and ColouredShape are real implementations,
// ObjectDetectionML is registered but returns a ConstructionError, since
// no model runtime is linked into this build.
func NewPipelineFactory(detectors DetectorFactory, logger servicelog.Logger) pipeline.Factory {
	if detectors == nil {
		detectors = func() apriltag.Detector { return apriltag.NullDetector{} }
	}
	return func(pipelineType string, config json.RawMessage) (pipeline.VisionPipeline, error) {
		switch pipelineType {
		case "AprilTag":
			return apriltag.New(config, detectors(), logger)
		case "ColouredShape":
			return colouredshape.New(config)
		case "ObjectDetectionML":
			return nil, &pipeline.ConstructionError{
				PipelineType: pipelineType,
				Err:          fmt.Errorf("model runtime not linked into this build"),
			}
		default:
			return nil, &pipeline.ConstructionError{
				PipelineType: pipelineType,
				Err:          fmt.Errorf("unknown pipeline_type"),
			}
		}
	}
}
