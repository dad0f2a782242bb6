package apriltag

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Vec3 is a plain 3-vector; translations and intermediate linear-algebra
// results are carried as this type rather than a generic matrix library
// type so call sites stay readable.
type Vec3 struct {
	X, Y, Z float64
}

// Rotation3 is a row-major 3x3 rotation matrix.
type Rotation3 [3][3]float64

// Identity3 is the identity rotation.
var Identity3 = Rotation3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func add(a, b Vec3) Vec3          { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func sub(a, b Vec3) Vec3          { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func scale(a Vec3, s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func dot3(a, b Vec3) float64      { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func normalize(v Vec3) Vec3 {
	n := math.Sqrt(dot3(v, v))
	if n == 0 {
		return v
	}
	return scale(v, 1/n)
}

func component(v Vec3, idx int) float64 {
	switch idx {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// MatMul multiplies two rotation matrices, a*b.
func MatMul(a, b Rotation3) Rotation3 {
	var out Rotation3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// Transpose returns a's transpose.
func Transpose(a Rotation3) Rotation3 {
	var out Rotation3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j][i] = a[i][j]
		}
	}
	return out
}

func applyRotation(r Rotation3, v Vec3) Vec3 {
	return Vec3{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// RotationToQuat converts a rotation matrix to a unit quaternion, using
// Shepperd's method for numerical stability across the four cases.
func RotationToQuat(r Rotation3) quat.Number {
	m00, m01, m02 := r[0][0], r[0][1], r[0][2]
	m10, m11, m12 := r[1][0], r[1][1], r[1][2]
	m20, m21, m22 := r[2][0], r[2][1], r[2][2]
	tr := m00 + m11 + m22

	var w, x, y, z float64
	switch {
	case tr > 0:
		S := math.Sqrt(tr+1.0) * 2
		w = 0.25 * S
		x = (m21 - m12) / S
		y = (m02 - m20) / S
		z = (m10 - m01) / S
	case m00 > m11 && m00 > m22:
		S := math.Sqrt(1.0+m00-m11-m22) * 2
		w = (m21 - m12) / S
		x = 0.25 * S
		y = (m01 + m10) / S
		z = (m02 + m20) / S
	case m11 > m22:
		S := math.Sqrt(1.0+m11-m00-m22) * 2
		w = (m02 - m20) / S
		x = (m01 + m10) / S
		y = 0.25 * S
		z = (m12 + m21) / S
	default:
		S := math.Sqrt(1.0+m22-m00-m11) * 2
		w = (m10 - m01) / S
		x = (m02 + m20) / S
		y = (m12 + m21) / S
		z = 0.25 * S
	}
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// QuatToRotation is the left inverse of RotationToQuat: converting a
// rotation matrix to a quaternion and back reproduces the original matrix
// within 1e-6 Frobenius norm.
func QuatToRotation(q quat.Number) Rotation3 {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return Identity3
	}
	w, x, y, z := q.Real/n, q.Imag/n, q.Jmag/n, q.Kmag/n
	return Rotation3{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// frcChangeOfBasis maps OpenCV camera convention (X right, Y down, Z
// forward) onto FRC convention (X forward, Y left, Z up): v_frc = C*v_cv.
var frcChangeOfBasis = Rotation3{
	{0, 0, 1},
	{-1, 0, 0},
	{0, -1, 0},
}

// FRCFromOpenCV converts a translation and rotation from OpenCV camera
// convention into FRC convention.
func FRCFromOpenCV(t Vec3, r Rotation3) (Vec3, Rotation3) {
	tf := Vec3{X: t.Z, Y: -t.X, Z: -t.Y}
	rf := MatMul(MatMul(frcChangeOfBasis, r), Transpose(frcChangeOfBasis))
	return tf, rf
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EulerRPY extracts FRC roll (rotation around X), pitch (around Y), and
// yaw (around Z) in radians from a rotation matrix already expressed in
// FRC convention.
func EulerRPY(r Rotation3) (roll, pitch, yaw float64) {
	pitch = math.Asin(clamp(-r[2][0], -1, 1))
	roll = math.Atan2(r[2][1], r[2][2])
	yaw = math.Atan2(r[1][0], r[0][0])
	return roll, pitch, yaw
}
