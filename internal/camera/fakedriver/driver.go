// Package fakedriver implements a synthetic camera.Driver for tests and
// for running the core without real hardware, in the spirit of the
// teacher's ticker-driven internal/fakesource test double.
package fakedriver

import (
	"context"
	"sync"
	"time"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// Driver produces blank frames with a drifting synthetic square standing
// in for a tracked marker.
type Driver struct {
	shape framebuf.Shape
	fps   int

	mu        sync.Mutex
	connected bool
	offset    int
}

// New constructs a Driver that emits frames of shape at approximately fps
// frames per second.
func New(shape framebuf.Shape, fps int) *Driver {
	if fps <= 0 {
		fps = 30
	}
	return &Driver{shape: shape, fps: fps}
}

// Factory adapts New into a camera.Factory, ignoring the requested
// camera_type since the synthetic driver has only one variant.
func Factory(shape framebuf.Shape, fps int) camera.Factory {
	return func(string) (camera.Driver, error) {
		return New(shape, fps), nil
	}
}

func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

func (d *Driver) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
}

func (d *Driver) SupportsDepth() bool { return false }

func (d *Driver) GetFrame(ctx context.Context) (*camera.Frame, error) {
	delay := time.Second / time.Duration(maxInt(d.fps, 1))
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil, nil
	}

	pix := make([]byte, d.shape.Size())
	d.paintSquare(pix)
	d.offset = (d.offset + 2) % maxInt(d.shape.Width, 1)
	return &camera.Frame{Shape: d.shape, Pix: pix}, nil
}

func (d *Driver) paintSquare(pix []byte) {
	side := maxInt(d.shape.Height/4, 1)
	top := maxInt(d.shape.Height/2-side/2, 0)
	left := d.offset % maxInt(d.shape.Width-side, 1)

	for y := top; y < top+side && y < d.shape.Height; y++ {
		rowStart := y * d.shape.Width * d.shape.Channels
		for x := left; x < left+side && x < d.shape.Width; x++ {
			idx := rowStart + x*d.shape.Channels
			for c := 0; c < d.shape.Channels; c++ {
				pix[idx+c] = 200
			}
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var _ camera.Driver = (*Driver)(nil)
