package colouredshape

import (
	"testing"

	"github.com/warpcomdev/asicamera2/internal/framebuf"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
)

func solidHSVFrame(width, height int, h, s, v byte) []byte {
	// Fill a single-channel buffer with intensity v; h and s are ignored.
	// The pipeline converts single-channel frames gray->BGR->HSV, and gray
	// pixels come out desaturated, so this helper is only useful for
	// shape/size smoke testing, not color assertions.
	pix := make([]byte, width*height)
	for i := range pix {
		pix[i] = v
	}
	return pix
}

func TestNewAppliesDefaultsOnEmptyConfig(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.cfg.MaxCandidates != 5 {
		t.Fatalf("want default max_candidates 5, got %d", p.cfg.MaxCandidates)
	}
}

func TestNewRejectsInvalidJSON(t *testing.T) {
	if _, err := New([]byte("{not json")); err == nil {
		t.Fatalf("expected an error for malformed config")
	}
}

func TestProcessFrameReturnsNoCandidatesOnUniformGrayFrame(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shape := framebuf.Shape{Width: 16, Height: 16, Channels: 1}
	pix := solidHSVFrame(shape.Width, shape.Height, 0, 0, 128)

	out, err := p.ProcessFrame(pix, shape, pipeline.Intrinsics{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, ok := out.Payload.(Payload)
	if !ok {
		t.Fatalf("unexpected payload type: %T", out.Payload)
	}
	if len(payload.Candidates) != 0 {
		t.Fatalf("a uniform gray frame has zero saturation and must not match the green threshold, got %d candidates", len(payload.Candidates))
	}
}

func TestDescribeConfigReflectsOverrides(t *testing.T) {
	p, err := New([]byte(`{"max_candidates": 2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc := p.DescribeConfig()
	if desc["max_candidates"] != 2 {
		t.Fatalf("want max_candidates 2 in described config, got %v", desc["max_candidates"])
	}
}
