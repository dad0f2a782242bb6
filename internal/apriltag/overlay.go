package apriltag

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// projectPoint projects a tag-frame object point through the estimated
// pose (OpenCV camera convention) and the pinhole intrinsics, returning
// false if the point falls behind the camera.
func projectPoint(r Rotation3, t Vec3, obj Vec3, fx, fy, cx, cy float64) (image.Point, bool) {
	p := add(applyRotation(r, obj), t)
	if p.Z <= 1e-6 {
		return image.Point{}, false
	}
	x := fx*p.X/p.Z + cx
	y := fy*p.Y/p.Z + cy
	return image.Pt(int(math.Round(x)), int(math.Round(y))), true
}

// drawOverlay renders each detection's pose as a unit-cube "tag column":
// the tag-plane base, four vertical pillars, and a top face, all projected
// through the estimated pose and the camera intrinsics, plus the integer
// ID anchored at corner 0. It assumes pix is a single-channel or
// 3-channel buffer matching shape, matching the convention the pipeline
// worker publishes for annotated frames.
func drawOverlay(pix []byte, shape framebuf.Shape, detections []poseResult, tagSizeM, fx, fy, cx, cy float64) {
	matType := gocv.MatTypeCV8UC1
	if shape.Channels == 3 {
		matType = gocv.MatTypeCV8UC3
	}
	mat, err := gocv.NewMatFromBytes(shape.Height, shape.Width, matType, pix)
	if err != nil {
		return
	}
	defer mat.Close()

	green := color.RGBA{G: 255, A: 255}
	base := tagObjectPoints(tagSizeM)
	for _, d := range detections {
		var basePts, topPts [4]image.Point
		visible := true
		for i := 0; i < 4; i++ {
			bp, bok := projectPoint(d.pose.Rotation, d.pose.Translation, Vec3{X: base[i].X, Y: base[i].Y, Z: base[i].Z}, fx, fy, cx, cy)
			tp, tok := projectPoint(d.pose.Rotation, d.pose.Translation, Vec3{X: base[i].X, Y: base[i].Y, Z: -tagSizeM}, fx, fy, cx, cy)
			if !bok || !tok {
				visible = false
				break
			}
			basePts[i], topPts[i] = bp, tp
		}
		if !visible {
			continue
		}

		for i := 0; i < 4; i++ {
			next := (i + 1) % 4
			gocv.Line(&mat, basePts[i], basePts[next], green, 2)
			gocv.Line(&mat, topPts[i], topPts[next], green, 2)
			gocv.Line(&mat, basePts[i], topPts[i], green, 2)
		}

		label := fmt.Sprintf("#%d", d.id)
		gocv.PutText(&mat, label, basePts[0], gocv.FontHersheySimplex, 0.6, green, 2)
	}
}
