package apriltag

import "testing"

// syntheticCorners projects a fronto-parallel tag of the given size at
// distance z (meters) through a simple pinhole model, to exercise the
// solver against a known-good answer.
func syntheticCorners(tagSizeM, z, fx, fy, cx, cy float64) [4]ImagePoint {
	obj := tagObjectPoints(tagSizeM)
	var out [4]ImagePoint
	for i, o := range obj {
		x := o.X
		y := o.Y
		u := fx*x/z + cx
		v := fy*y/z + cy
		out[i] = ImagePoint{X: u, Y: v}
	}
	return out
}

func TestEstimateOrthogonalIterationFrontoParallel(t *testing.T) {
	const fx, fy, cx, cy = 600.0, 600.0, 320.0, 240.0
	const tagSizeM = 0.1651
	const wantZ = 1.5

	corners := syntheticCorners(tagSizeM, wantZ, fx, fy, cx, cy)
	est := EstimateOrthogonalIteration(corners, tagSizeM, fx, fy, cx, cy, 40)

	if d := est.Translation.Z - wantZ; d > 0.02 || d < -0.02 {
		t.Fatalf("want z~=%.3f, got %.4f (full estimate %+v)", wantZ, est.Translation.Z, est)
	}
	if d := frobeniusDelta(est.Rotation, Identity3); d > 0.05 {
		t.Fatalf("fronto-parallel tag should solve to near-identity rotation, delta=%.4f got %+v", d, est.Rotation)
	}
	if est.Error > 1e-3 {
		t.Fatalf("reprojection error should be near zero for a noiseless synthetic tag, got %v", est.Error)
	}
}
