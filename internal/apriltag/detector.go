package apriltag

// RawDetection is one tag detection as reported by the underlying
// detector library, before any pose math is applied.
type RawDetection struct {
	ID             int
	Hamming        int
	DecisionMargin float64
	Corners        [4]ImagePoint // pixel coordinates, counterclockwise from bottom-left
	Center         ImagePoint
}

// Detector finds AprilTag detections in a grayscale image. The concrete
// detector backend (family, decimation, thread count, and the rest of the
// tuning knobs in Config) is a pluggable collaborator: this package only
// depends on the interface, so a build without the native apriltag
// detector linked in can still compile and test the pose math against a
// synthetic stand-in.
type Detector interface {
	// Detect returns every tag found in a single-channel grayscale image
	// of the given width and height.
	Detect(gray []byte, width, height int) ([]RawDetection, error)

	// Close releases any resources (thread pools, native handles) held by
	// the detector.
	Close()
}

// NullDetector reports no detections. It is used when the native apriltag
// detector library is not linked into a build but an AprilTag pipeline is
// still constructed, so the rest of the pipeline (config validation,
// overlay plumbing, metrics) remains exercisable.
type NullDetector struct{}

// Detect always returns no detections.
func (NullDetector) Detect(gray []byte, width, height int) ([]RawDetection, error) {
	return nil, nil
}

// Close is a no-op.
func (NullDetector) Close() {}

var _ Detector = NullDetector{}
