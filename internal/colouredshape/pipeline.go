// Package colouredshape implements a second reference vision pipeline:
// HSV color-threshold blob detection, reporting the centroid and bounding
// box of the largest matching contours.
package colouredshape

import (
	"encoding/json"
	"image"
	"image/color"
	"sort"

	"gocv.io/x/gocv"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
)

// Candidate is one detected blob, reported in pixel coordinates.
type Candidate struct {
	CentroidX float64 `json:"centroid_x_px"`
	CentroidY float64 `json:"centroid_y_px"`
	Width     float64 `json:"width_px"`
	Height    float64 `json:"height_px"`
	AreaPx    float64 `json:"area_px"`
}

// Payload is the per-frame ColouredShape pipeline output.
type Payload struct {
	Candidates []Candidate `json:"candidates"`
}

// Pipeline is the ColouredShape VisionPipeline implementation.
type Pipeline struct {
	cfg Config
}

// New constructs a ColouredShape Pipeline from raw JSON configuration.
func New(config json.RawMessage) (*Pipeline, error) {
	cfg, err := ParseConfig(config)
	if err != nil {
		return nil, &pipeline.ConstructionError{PipelineType: "ColouredShape", Err: err}
	}
	return &Pipeline{cfg: cfg}, nil
}

// ProcessFrame thresholds the frame in HSV space and reports the largest
// matching contours as candidates.
func (p *Pipeline) ProcessFrame(view []byte, shape framebuf.Shape, _ pipeline.Intrinsics) (pipeline.ProcessOutput, error) {
	matType := gocv.MatTypeCV8UC1
	if shape.Channels == 3 {
		matType = gocv.MatTypeCV8UC3
	}
	src, err := gocv.NewMatFromBytes(shape.Height, shape.Width, matType, view)
	if err != nil {
		return pipeline.ProcessOutput{}, err
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	if shape.Channels == 1 {
		gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)
	} else {
		src.CopyTo(&bgr)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	lower := gocv.NewScalar(p.cfg.HueMin, p.cfg.SaturationMin, p.cfg.ValueMin, 0)
	upper := gocv.NewScalar(p.cfg.HueMax, p.cfg.SaturationMax, p.cfg.ValueMax, 0)
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	candidates := make([]Candidate, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < p.cfg.MinAreaPx {
			continue
		}
		rect := gocv.BoundingRect(contour)
		candidates = append(candidates, Candidate{
			CentroidX: float64(rect.Min.X) + float64(rect.Dx())/2,
			CentroidY: float64(rect.Min.Y) + float64(rect.Dy())/2,
			Width:     float64(rect.Dx()),
			Height:    float64(rect.Dy()),
			AreaPx:    area,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].AreaPx > candidates[j].AreaPx })
	if max := p.cfg.MaxCandidates; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	return pipeline.ProcessOutput{
		Payload: Payload{Candidates: candidates},
		DrawOverlay: func(pix []byte, shape framebuf.Shape) {
			drawOverlay(pix, shape, candidates)
		},
	}, nil
}

// DescribeConfig returns the pipeline's effective configuration.
func (p *Pipeline) DescribeConfig() map[string]any { return p.cfg.asMap() }

func drawOverlay(pix []byte, shape framebuf.Shape, candidates []Candidate) {
	matType := gocv.MatTypeCV8UC1
	if shape.Channels == 3 {
		matType = gocv.MatTypeCV8UC3
	}
	mat, err := gocv.NewMatFromBytes(shape.Height, shape.Width, matType, pix)
	if err != nil {
		return
	}
	defer mat.Close()

	red := color.RGBA{R: 255, A: 255}
	for _, c := range candidates {
		x0 := int(c.CentroidX - c.Width/2)
		y0 := int(c.CentroidY - c.Height/2)
		rect := image.Rect(x0, y0, x0+int(c.Width), y0+int(c.Height))
		gocv.Rectangle(&mat, rect, red, 2)
	}
}
