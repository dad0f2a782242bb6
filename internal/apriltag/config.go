package apriltag

import "encoding/json"

// Config is the JSON-configurable tuning surface for an AprilTag
// pipeline instance. Field names mirror the published configuration
// contract exactly so operators can copy a configuration document
// verbatim.
type Config struct {
	Family             string  `json:"family"`
	ErrorCorrection    int     `json:"error_correction"`
	TagSizeM           float64 `json:"tag_size_m"`
	AutoThreads        bool    `json:"auto_threads"`
	Threads            int     `json:"threads"`
	Decimate           float64 `json:"decimate"`
	Blur               float64 `json:"blur"`
	RefineEdges        bool    `json:"refine_edges"`
	DecodeSharpening   float64 `json:"decode_sharpening"`
	DecisionMargin     float64 `json:"decision_margin"`
	PoseIterations     int     `json:"pose_iterations"`

	MultiTagEnabled         bool    `json:"multi_tag_enabled"`
	FieldLayoutPath         string  `json:"field_layout"`
	RansacReprojThreshold   float64 `json:"ransac_reproj_threshold"`
	RansacConfidence        float64 `json:"ransac_confidence"`
	MinInliers              int     `json:"min_inliers"`
	MultiTagErrorThreshold  float64 `json:"multi_tag_error_threshold"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Family:                 "tag36h11",
		ErrorCorrection:        2,
		TagSizeM:               0.1651,
		AutoThreads:            true,
		Decimate:               2.0,
		Blur:                   0.0,
		RefineEdges:            true,
		DecodeSharpening:       0.25,
		DecisionMargin:         35.0,
		PoseIterations:         40,
		RansacReprojThreshold:  0.10,
		RansacConfidence:       0.99,
		MinInliers:             2,
		MultiTagErrorThreshold: 0.25,
	}
}

// ParseConfig decodes raw JSON over DefaultConfig, so unspecified fields
// keep their documented defaults.
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

func (c Config) multiTagConfig() MultiTagConfig {
	return MultiTagConfig{
		Enabled:         c.MultiTagEnabled,
		ReprojThreshold: c.RansacReprojThreshold,
		MinInliers:      c.MinInliers,
		ErrorThreshold:  c.MultiTagErrorThreshold,
	}
}

// asMap renders the config for DescribeConfig introspection.
func (c Config) asMap() map[string]any {
	return map[string]any{
		"family":                    c.Family,
		"error_correction":          c.ErrorCorrection,
		"tag_size_m":                c.TagSizeM,
		"auto_threads":              c.AutoThreads,
		"threads":                   c.Threads,
		"decimate":                  c.Decimate,
		"blur":                      c.Blur,
		"refine_edges":              c.RefineEdges,
		"decode_sharpening":         c.DecodeSharpening,
		"decision_margin":           c.DecisionMargin,
		"pose_iterations":           c.PoseIterations,
		"multi_tag_enabled":         c.MultiTagEnabled,
		"field_layout":              c.FieldLayoutPath,
		"ransac_reproj_threshold":   c.RansacReprojThreshold,
		"ransac_confidence":         c.RansacConfidence,
		"min_inliers":               c.MinInliers,
		"multi_tag_error_threshold": c.MultiTagErrorThreshold,
	}
}
