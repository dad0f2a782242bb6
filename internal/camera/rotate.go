package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// Orientation is one of the four camera mount orientations a descriptor can
// request.
type Orientation int

const (
	Orient0   Orientation = 0
	Orient90  Orientation = 90
	Orient180 Orientation = 180
	Orient270 Orientation = 270
)

func matType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, nil
	case 3:
		return gocv.MatTypeCV8UC3, nil
	case 4:
		return gocv.MatTypeCV8UC4, nil
	default:
		return 0, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// Rotate applies orientation o to pix (laid out per shape) and returns the
// rotated pixels plus the resulting shape. Orientation 0 returns the input
// unchanged; 90 and 270 swap height and width; 180 keeps the shape.
//
// Rotation semantics required of every orientation: applying 0 is the
// identity; 90 then 270 is the identity; 180 applied twice is the
// identity.
func Rotate(pix []byte, shape framebuf.Shape, o Orientation) ([]byte, framebuf.Shape, error) {
	if o == Orient0 {
		return pix, shape, nil
	}

	mt, err := matType(shape.Channels)
	if err != nil {
		return nil, shape, err
	}

	src, err := gocv.NewMatFromBytes(shape.Height, shape.Width, mt, pix)
	if err != nil {
		return nil, shape, fmt.Errorf("wrapping source mat: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	var code gocv.RotateFlag
	newShape := shape
	switch o {
	case Orient90:
		code = gocv.Rotate90Clockwise
		newShape.Height, newShape.Width = shape.Width, shape.Height
	case Orient180:
		code = gocv.Rotate180Clockwise
	case Orient270:
		code = gocv.Rotate90CounterClockwise
		newShape.Height, newShape.Width = shape.Width, shape.Height
	default:
		return nil, shape, fmt.Errorf("unsupported orientation %d", o)
	}

	gocv.Rotate(src, &dst, code)
	out := make([]byte, newShape.Size())
	copy(out, dst.ToBytes())
	return out, newShape, nil
}
