package colouredshape

import "encoding/json"

// Config is the JSON-configurable tuning surface for a ColouredShape
// pipeline instance: an HSV color threshold plus the contour filters used
// to pick out a single best-match blob.
type Config struct {
	HueMin        float64 `json:"hue_min"`
	HueMax        float64 `json:"hue_max"`
	SaturationMin float64 `json:"saturation_min"`
	SaturationMax float64 `json:"saturation_max"`
	ValueMin      float64 `json:"value_min"`
	ValueMax      float64 `json:"value_max"`
	MinAreaPx     float64 `json:"min_area_px"`
	MaxCandidates int     `json:"max_candidates"`
}

// DefaultConfig returns a permissive green-object threshold, a reasonable
// starting point for a retroreflective-tape-style target.
func DefaultConfig() Config {
	return Config{
		HueMin: 40, HueMax: 80,
		SaturationMin: 80, SaturationMax: 255,
		ValueMin: 80, ValueMax: 255,
		MinAreaPx:     75,
		MaxCandidates: 5,
	}
}

// ParseConfig decodes raw JSON over DefaultConfig.
func ParseConfig(raw json.RawMessage) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) asMap() map[string]any {
	return map[string]any{
		"hue_min": c.HueMin, "hue_max": c.HueMax,
		"saturation_min": c.SaturationMin, "saturation_max": c.SaturationMax,
		"value_min": c.ValueMin, "value_max": c.ValueMax,
		"min_area_px":    c.MinAreaPx,
		"max_candidates": c.MaxCandidates,
	}
}
