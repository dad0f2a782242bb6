package apriltag

import (
	"math"
	"testing"
)

func frobeniusDelta(a, b Rotation3) float64 {
	sum := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := a[i][j] - b[i][j]
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

func TestQuatRoundTrip(t *testing.T) {
	cases := []Rotation3{
		Identity3,
		{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},  // 90deg about Z
		{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},  // 90deg about X
		{{0, 0, 1}, {0, 1, 0}, {-1, 0, 0}},  // 90deg about Y
		{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}}, // 180deg about Z
	}
	for i, r := range cases {
		q := RotationToQuat(r)
		back := QuatToRotation(q)
		if d := frobeniusDelta(r, back); d > 1e-6 {
			t.Fatalf("case %d: roundtrip delta %.9f exceeds tolerance\nwant %+v\ngot  %+v", i, d, r, back)
		}
	}
}

func TestEulerRPYIdentity(t *testing.T) {
	roll, pitch, yaw := EulerRPY(Identity3)
	if roll != 0 || pitch != 0 || yaw != 0 {
		t.Fatalf("identity rotation should have zero RPY, got roll=%v pitch=%v yaw=%v", roll, pitch, yaw)
	}
}

func TestFRCFromOpenCVAxisMapping(t *testing.T) {
	// A point straight ahead of the camera (z>0 in OpenCV convention)
	// should map to the FRC forward axis (x>0).
	t1, _ := FRCFromOpenCV(Vec3{X: 0, Y: 0, Z: 2}, Identity3)
	if t1.X <= 0 {
		t.Fatalf("expected forward OpenCV Z to map to positive FRC X, got %+v", t1)
	}
}

func TestMatMulIdentity(t *testing.T) {
	r := Rotation3{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	got := MatMul(Identity3, r)
	if frobeniusDelta(got, r) > 1e-12 {
		t.Fatalf("multiplying by identity changed the matrix: %+v", got)
	}
}
