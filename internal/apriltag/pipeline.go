// Package apriltag implements the AprilTag fiducial-detection vision
// pipeline: tag detection (via a pluggable Detector), per-tag pose
// estimation, optional multi-tag field-pose reconciliation against a
// known field layout, and FRC-convention pose reporting.
package apriltag

import (
	"encoding/json"
	"fmt"

	"github.com/warpcomdev/asicamera2/internal/fieldlayout"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
	"github.com/warpcomdev/asicamera2/internal/servicelog"
)

// poseResult pairs a detection's ID with its estimated pose,
// for handoff from ProcessFrame to the overlay drawer.
type poseResult struct {
	id   int
	pose PoseEstimate
}

// TagResult is the JSON-shaped per-tag payload reported in ProcessOutput.
type TagResult struct {
	ID             int     `json:"id"`
	Hamming        int     `json:"hamming"`
	DecisionMargin float64 `json:"decision_margin"`
	Roll           float64 `json:"roll_rad"`
	Pitch          float64 `json:"pitch_rad"`
	Yaw            float64 `json:"yaw_rad"`
	X              float64 `json:"x_m"`
	Y              float64 `json:"y_m"`
	Z              float64 `json:"z_m"`
	ReprojError    float64 `json:"reproj_error"`
}

// FieldPoseResult is the reconciled camera-to-field pose, present only
// when multi-tag solving is enabled and succeeds.
type FieldPoseResult struct {
	Roll      float64 `json:"roll_rad"`
	Pitch     float64 `json:"pitch_rad"`
	Yaw       float64 `json:"yaw_rad"`
	X         float64 `json:"x_m"`
	Y         float64 `json:"y_m"`
	Z         float64 `json:"z_m"`
	Inliers   []int   `json:"inliers"`
	MeanError float64 `json:"mean_error"`
}

// Payload is the full per-frame AprilTag pipeline output.
type Payload struct {
	Tags      []TagResult      `json:"tags"`
	FieldPose *FieldPoseResult `json:"field_pose,omitempty"`
}

// Pipeline is the AprilTag VisionPipeline implementation.
type Pipeline struct {
	cfg      Config
	detector Detector
	layout   *fieldlayout.Watcher
	logger   servicelog.Logger
}

// New constructs an AprilTag Pipeline from raw JSON configuration. The
// detector backend is supplied by the caller: when none is linked into
// the build, pass NullDetector{} so the rest of the pipeline (config
// validation, multi-tag wiring, overlay plumbing) is still exercisable.
func New(config json.RawMessage, detector Detector, logger servicelog.Logger) (*Pipeline, error) {
	cfg, err := ParseConfig(config)
	if err != nil {
		return nil, &pipeline.ConstructionError{PipelineType: "AprilTag", Err: fmt.Errorf("decoding config: %w", err)}
	}
	if detector == nil {
		detector = NullDetector{}
	}
	if logger == nil {
		logger = servicelog.Nop()
	}

	p := &Pipeline{cfg: cfg, detector: detector, logger: logger}

	if cfg.MultiTagEnabled {
		if cfg.FieldLayoutPath == "" {
			return nil, &pipeline.ConstructionError{PipelineType: "AprilTag", Err: fmt.Errorf("multi_tag_enabled requires field_layout")}
		}
		watcher, err := fieldlayout.NewWatcher(cfg.FieldLayoutPath, logger)
		if err != nil {
			return nil, &pipeline.ConstructionError{PipelineType: "AprilTag", Err: fmt.Errorf("loading field layout: %w", err)}
		}
		p.layout = watcher
	}
	return p, nil
}

// ProcessFrame runs detection and pose estimation on a single grayscale
// frame.
func (p *Pipeline) ProcessFrame(view []byte, shape framebuf.Shape, intrinsics pipeline.Intrinsics) (pipeline.ProcessOutput, error) {
	detections, err := p.detector.Detect(view, shape.Width, shape.Height)
	if err != nil {
		return pipeline.ProcessOutput{}, fmt.Errorf("tag detection: %w", err)
	}

	fx, fy, cx, cy := intrinsics.Matrix.FX(), intrinsics.Matrix.FY(), intrinsics.Matrix.CX(), intrinsics.Matrix.CY()

	tags := make([]TagResult, 0, len(detections))
	poses := make(map[int]PoseEstimate, len(detections))
	overlays := make([]poseResult, 0, len(detections))

	for _, det := range detections {
		if det.Hamming > 1 || det.DecisionMargin < p.cfg.DecisionMargin {
			continue
		}
		est := EstimateOrthogonalIteration(det.Corners, p.cfg.TagSizeM, fx, fy, cx, cy, p.cfg.PoseIterations)
		frcT, frcR := FRCFromOpenCV(est.Translation, est.Rotation)
		roll, pitch, yaw := EulerRPY(frcR)

		tags = append(tags, TagResult{
			ID:             det.ID,
			Hamming:        det.Hamming,
			DecisionMargin: det.DecisionMargin,
			Roll:           roll,
			Pitch:          pitch,
			Yaw:            yaw,
			X:              frcT.X,
			Y:              frcT.Y,
			Z:              frcT.Z,
			ReprojError:    est.Error,
		})
		poses[det.ID] = est
		overlays = append(overlays, poseResult{id: det.ID, pose: est})
	}

	payload := Payload{Tags: tags}
	if p.layout != nil && len(poses) > 0 {
		if estimate, ok := EstimateMultiTag(poses, p.layout.Current(), p.cfg.multiTagConfig()); ok {
			frcT, frcR := FRCFromOpenCV(estimate.Translation, estimate.Rotation)
			roll, pitch, yaw := EulerRPY(frcR)
			payload.FieldPose = &FieldPoseResult{
				Roll: roll, Pitch: pitch, Yaw: yaw,
				X: frcT.X, Y: frcT.Y, Z: frcT.Z,
				Inliers: estimate.Inliers, MeanError: estimate.MeanError,
			}
		}
	}

	return pipeline.ProcessOutput{
		Payload: payload,
		DrawOverlay: func(pix []byte, shape framebuf.Shape) {
			drawOverlay(pix, shape, overlays, p.cfg.TagSizeM, fx, fy, cx, cy)
		},
	}, nil
}

// DescribeConfig returns the pipeline's effective configuration.
func (p *Pipeline) DescribeConfig() map[string]any {
	return p.cfg.asMap()
}

// Close releases the detector and field-layout watcher.
func (p *Pipeline) Close() {
	p.detector.Close()
	if p.layout != nil {
		p.layout.Close()
	}
}
