// Package camera defines the CameraDriver contract external device plugins
// implement, and the CameraWorker producer loop that turns a driver into a
// stream of pool-backed frames fanned out to pipeline queues.
package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
)

// Frame is a single pixel frame as handed back by a Driver. Depth frames,
// when supported, are carried as a second plane alongside Pix.
type Frame struct {
	Shape     framebuf.Shape
	Pix       []byte
	DepthPix  []byte // nil unless the driver reports depth support
}

// DeviceInfo describes a discoverable camera, as returned by a driver's
// static device listing.
type DeviceInfo struct {
	Identifier string
	Name       string
	CameraType string
}

// Driver is the contract every camera plug-in (USB, GenICam, OAK-D,
// RealSense, or a synthetic test double) must satisfy.
type Driver interface {
	// Connect opens the device. A non-nil error is always a
	// DriverConnectionError.
	Connect(ctx context.Context) error
	// Disconnect releases the device. It never returns an error.
	Disconnect()
	// GetFrame returns the next frame, or nil with a nil error to signal
	// disconnection. A non-nil error is a DriverFrameAcquisitionError.
	GetFrame(ctx context.Context) (*Frame, error)
	// SupportsDepth reports whether GetFrame ever populates DepthPix.
	SupportsDepth() bool
}

// ListDevicesFunc enumerates the devices a driver family can see.
type ListDevicesFunc func() ([]DeviceInfo, error)

// Factory builds a Driver for a given camera_type tag. The registry holds
// one Factory per known driver family.
type Factory func(cameraType string) (Driver, error)

// ErrDriverConnection and ErrDriverFrameAcquisition are the sentinels
// DriverConnectionError and DriverFrameAcquisitionError wrap, so callers
// can use errors.Is without caring about the offending camera_type.
var (
	ErrDriverConnection       = errors.New("driver connection error")
	ErrDriverFrameAcquisition = errors.New("driver frame acquisition error")
)

// DriverConnectionError reports a failed Connect call.
type DriverConnectionError struct {
	CameraType string
	Err        error
}

func (e *DriverConnectionError) Error() string {
	return fmt.Sprintf("connect camera_type=%s: %v", e.CameraType, e.Err)
}
func (e *DriverConnectionError) Unwrap() error { return e.Err }
func (e *DriverConnectionError) Is(target error) bool {
	return target == ErrDriverConnection
}

// DriverFrameAcquisitionError reports a failed GetFrame call.
type DriverFrameAcquisitionError struct {
	CameraType string
	Err        error
}

func (e *DriverFrameAcquisitionError) Error() string {
	return fmt.Sprintf("get_frame camera_type=%s: %v", e.CameraType, e.Err)
}
func (e *DriverFrameAcquisitionError) Unwrap() error { return e.Err }
func (e *DriverFrameAcquisitionError) Is(target error) bool {
	return target == ErrDriverFrameAcquisition
}
