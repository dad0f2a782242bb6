package apriltag

import (
	"testing"

	"github.com/warpcomdev/asicamera2/internal/fieldlayout"
)

func TestEstimateMultiTagNoVisibleKnownTags(t *testing.T) {
	layout, err := fieldlayout.Parse([]byte(`{"tags":[]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	poses := map[int]PoseEstimate{
		7: {Rotation: Identity3, Translation: Vec3{X: 0, Y: 0, Z: 1}},
	}
	_, ok := EstimateMultiTag(poses, layout, MultiTagConfig{MinInliers: 1})
	if ok {
		t.Fatalf("expected no estimate when no visible tag is in the layout")
	}
}

func TestEstimateMultiTagSingleTagAgreesWithItself(t *testing.T) {
	layoutJSON := `{"tags":[
		{"ID": 3, "pose": {"translation": {"x": 2, "y": 0, "z": 0}, "rotation": {"quaternion": {"w": 1, "x": 0, "y": 0, "z": 0}}}}
	]}`
	layout, err := fieldlayout.Parse([]byte(layoutJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	poses := map[int]PoseEstimate{
		3: {Rotation: Identity3, Translation: Vec3{X: 0, Y: 0, Z: 1}},
	}
	est, ok := EstimateMultiTag(poses, layout, MultiTagConfig{MinInliers: 1, ReprojThreshold: 0.05})
	if !ok {
		t.Fatalf("expected a multi-tag estimate from a single known tag")
	}
	if len(est.Inliers) != 1 || est.Inliers[0] != 3 {
		t.Fatalf("expected tag 3 to be its own inlier, got %+v", est.Inliers)
	}
	if est.MeanError > 1e-9 {
		t.Fatalf("a tag's hypothesis should have zero residual against itself, got %v", est.MeanError)
	}
}
