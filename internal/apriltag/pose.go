package apriltag

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ImagePoint is a detected corner, in pixel coordinates.
type ImagePoint struct{ X, Y float64 }

// ObjectPoint is a point in the tag's own coordinate frame (meters, z=0
// for a planar tag).
type ObjectPoint struct{ X, Y, Z float64 }

// PoseEstimate is one candidate solution from the pose estimator: a rigid
// transform in OpenCV camera convention plus a scalar reprojection error.
type PoseEstimate struct {
	Rotation    Rotation3
	Translation Vec3
	Error       float64
}

// tagObjectPoints returns the four corners of a tagSizeM square centered
// on the origin, in the order corner0 (bottom-left) .. corner3
// (top-left), counterclockwise.
func tagObjectPoints(tagSizeM float64) [4]ObjectPoint {
	s := tagSizeM / 2
	return [4]ObjectPoint{
		{-s, -s, 0},
		{s, -s, 0},
		{s, s, 0},
		{-s, s, 0},
	}
}

func dist(a, b ImagePoint) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// EstimateOrthogonalIteration runs the Lu-Hager-Mjolsness orthogonal
// iteration algorithm: starting from a coarse fronto-parallel guess, it
// alternates projecting object points onto their corresponding image rays
// and re-solving the rigid transform via an orthogonal Procrustes (Kabsch)
// step, for the configured number of iterations.
//
// When the pose estimator is asked for two candidate solutions (as the
// collaborator contract allows), only one is computed here: ties are
// always broken in favor of "solution 1", so a second, necessarily-worse
// candidate has no observable effect and is not computed.
func EstimateOrthogonalIteration(corners [4]ImagePoint, tagSizeM, fx, fy, cx, cy float64, iterations int) PoseEstimate {
	obj := tagObjectPoints(tagSizeM)

	var rays [4]Vec3
	for i, c := range corners {
		rays[i] = normalize(Vec3{X: (c.X - cx) / fx, Y: (c.Y - cy) / fy, Z: 1})
	}

	r, t := initialGuess(corners, fx, fy, cx, cy, tagSizeM)

	for iter := 0; iter < iterations; iter++ {
		var target [4]Vec3
		for i := 0; i < 4; i++ {
			p := add(applyRotation(r, Vec3{obj[i].X, obj[i].Y, obj[i].Z}), t)
			v := rays[i]
			d := dot3(v, p)
			target[i] = scale(v, d)
		}
		r, t = absoluteOrientation(obj, target)
	}

	errSum := 0.0
	for i := 0; i < 4; i++ {
		p := add(applyRotation(r, Vec3{obj[i].X, obj[i].Y, obj[i].Z}), t)
		v := rays[i]
		q := scale(v, dot3(v, p))
		d := sub(p, q)
		errSum += dot3(d, d)
	}

	return PoseEstimate{Rotation: r, Translation: t, Error: math.Sqrt(errSum / 4)}
}

// initialGuess assumes the tag is roughly fronto-parallel and estimates
// depth from the ratio of the tag's known physical size to its apparent
// size in pixels.
func initialGuess(corners [4]ImagePoint, fx, fy, cx, cy, tagSizeM float64) (Rotation3, Vec3) {
	var cxp, cyp float64
	for _, c := range corners {
		cxp += c.X
		cyp += c.Y
	}
	cxp /= 4
	cyp /= 4

	pixWidth := (dist(corners[0], corners[1]) + dist(corners[2], corners[3])) / 2
	if pixWidth < 1e-6 {
		pixWidth = 1
	}

	z := fx * tagSizeM / pixWidth
	x := (cxp - cx) * z / fx
	y := (cyp - cy) * z / fy
	return Identity3, Vec3{X: x, Y: y, Z: z}
}

// absoluteOrientation solves the orthogonal Procrustes problem: the rigid
// transform (R, t) that best maps obj onto target in the least-squares
// sense, via SVD of the cross-covariance matrix (Kabsch algorithm).
func absoluteOrientation(obj [4]ObjectPoint, target [4]Vec3) (Rotation3, Vec3) {
	var oc, tc Vec3
	for i := 0; i < 4; i++ {
		oc = add(oc, Vec3{obj[i].X, obj[i].Y, obj[i].Z})
		tc = add(tc, target[i])
	}
	oc = scale(oc, 0.25)
	tc = scale(tc, 0.25)

	h := mat.NewDense(3, 3, nil)
	for i := 0; i < 4; i++ {
		a := sub(Vec3{obj[i].X, obj[i].Y, obj[i].Z}, oc)
		b := sub(target[i], tc)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+component(a, r)*component(b, c))
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return Identity3, tc
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var rm mat.Dense
	rm.Mul(&v, u.T())
	if mat.Det(&rm) < 0 {
		for r := 0; r < 3; r++ {
			v.Set(r, 2, -v.At(r, 2))
		}
		rm.Mul(&v, u.T())
	}

	var r Rotation3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = rm.At(i, j)
		}
	}
	t := sub(tc, applyRotation(r, oc))
	return r, t
}
