package apriltag

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/warpcomdev/asicamera2/internal/fieldlayout"
)

// MultiTagConfig parameterizes the multi-tag RANSAC solve.
type MultiTagConfig struct {
	Enabled              bool
	ReprojThreshold      float64 // meters; a 3-D displacement proxy, not true pixel reprojection
	MinInliers           int
	ErrorThreshold       float64
}

// MultiTagEstimate is the camera-to-field pose produced by reconciling
// every tag visible in one frame against a known field layout.
type MultiTagEstimate struct {
	Rotation    Rotation3
	Translation Vec3
	Inliers     []int // tag IDs counted as inliers
	MeanError   float64
}

// singlePose pairs a per-tag camera-frame pose estimate with the tag's
// known field pose, as input to the multi-tag solve.
type singlePose struct {
	tagID int
	pose  PoseEstimate
	field fieldlayout.Tag
}

// EstimateMultiTag reconciles the individually-estimated poses of every
// tag visible in a frame into a single camera pose in field coordinates,
// using each tag's pose as a minimal-sample RANSAC hypothesis: hypothesis
// i is "camera is positioned as if tag i's known field pose is correct",
// and the other visible tags vote on whether their own observed pose is
// consistent with that hypothesis.
func EstimateMultiTag(poses map[int]PoseEstimate, layout *fieldlayout.Layout, cfg MultiTagConfig) (MultiTagEstimate, bool) {
	var candidates []singlePose
	for id, pose := range poses {
		field, ok := layout.TagByID(id)
		if !ok {
			continue
		}
		candidates = append(candidates, singlePose{tagID: id, pose: pose, field: field})
	}
	if len(candidates) == 0 {
		return MultiTagEstimate{}, false
	}

	var best MultiTagEstimate
	bestInlierCount := -1

	for _, hyp := range candidates {
		fieldR := QuatToRotation(quatFromTag(hyp.field))
		fieldT := Vec3{X: hyp.field.Translation.X, Y: hyp.field.Translation.Y, Z: hyp.field.Translation.Z}

		// camToField maps a point in camera coordinates to field
		// coordinates, given that hyp.tagID's camera-frame pose maps onto
		// its known field pose: fieldPoint = camToFieldR*camPoint + camToFieldT.
		camToFieldR := MatMul(fieldR, Transpose(hyp.pose.Rotation))
		camToFieldT := sub(fieldT, applyRotation(camToFieldR, hyp.pose.Translation))

		var inliers []int
		errSum := 0.0
		for _, other := range candidates {
			predictedField := add(applyRotation(camToFieldR, other.pose.Translation), camToFieldT)
			observedField := Vec3{X: other.field.Translation.X, Y: other.field.Translation.Y, Z: other.field.Translation.Z}
			d := sub(predictedField, observedField)
			residual := magnitude(d)
			if residual <= cfg.ReprojThreshold {
				inliers = append(inliers, other.tagID)
				errSum += residual
			}
		}

		if len(inliers) < cfg.MinInliers {
			continue
		}
		if len(inliers) > bestInlierCount {
			bestInlierCount = len(inliers)
			best = MultiTagEstimate{
				Rotation:    camToFieldR,
				Translation: camToFieldT,
				Inliers:     inliers,
				MeanError:   errSum / float64(len(inliers)),
			}
		}
	}

	if bestInlierCount < 0 {
		return MultiTagEstimate{}, false
	}
	if cfg.ErrorThreshold > 0 && best.MeanError > cfg.ErrorThreshold {
		return MultiTagEstimate{}, false
	}
	return best, true
}

func magnitude(v Vec3) float64 {
	return math.Sqrt(dot3(v, v))
}

func quatFromTag(t fieldlayout.Tag) quat.Number {
	return quat.Number{Real: t.Rotation.W, Imag: t.Rotation.X, Jmag: t.Rotation.Y, Kmag: t.Rotation.Z}
}
