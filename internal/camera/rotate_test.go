package camera

import (
	"testing"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

func TestRotateIdentityAtZero(t *testing.T) {
	shape := framebuf.Shape{Height: 2, Width: 3, Channels: 1}
	pix := []byte{1, 2, 3, 4, 5, 6}

	out, outShape, err := Rotate(pix, shape, Orient0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outShape != shape {
		t.Fatalf("orientation 0 must not change shape")
	}
	for i := range pix {
		if out[i] != pix[i] {
			t.Fatalf("orientation 0 must be the identity: idx %d want %d got %d", i, pix[i], out[i])
		}
	}
}
