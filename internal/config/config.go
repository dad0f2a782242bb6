// Package config loads the visiond daemon's TOML configuration: the
// camera descriptors it starts at boot, and the ambient knobs for
// metrics windows and pool/queue behavior.
package config

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/warpcomdev/asicamera2/internal/camera"
	"github.com/warpcomdev/asicamera2/internal/pipeline"
)

// PipelineConfig is one camera's pipeline entry in the TOML document.
type PipelineConfig struct {
	ID            string `toml:"ID"`
	PipelineType  string `toml:"PipelineType"`
	ConfigJSON    string `toml:"Config"`
	QueueCapacity int    `toml:"QueueCapacity"`
}

// CameraConfig is one camera entry in the TOML document.
type CameraConfig struct {
	Identifier   string           `toml:"Identifier"`
	CameraType   string           `toml:"CameraType"`
	Orientation  int              `toml:"Orientation"`
	DepthEnabled bool             `toml:"DepthEnabled"`
	Framerate    int              `toml:"Framerate"`
	Pipelines    []PipelineConfig `toml:"Pipelines"`
}

// Config is the top-level visiond configuration document.
type Config struct {
	DataFolder        string         `toml:"DataFolder"`
	LogFolder         string         `toml:"LogFolder"`
	Debug             bool           `toml:"Debug"`
	MetricsEnabled    bool           `toml:"MetricsEnabled"`
	MetricsWindowSecs int            `toml:"MetricsWindowSeconds"`
	FPSWindowSecs     int            `toml:"FPSWindowSeconds"`
	MemorySampleSecs  int            `toml:"MemorySampleSeconds"`
	HighUtilizationPct float64       `toml:"HighUtilizationPercent"`
	LatencyWarnMS     float64        `toml:"LatencyWarnMilliseconds"`
	ReconnectSecs     int            `toml:"ReconnectSeconds"`
	ShrinkIdleSecs    int            `toml:"ShrinkIdleSeconds"`
	InitialBuffers    int            `toml:"InitialBuffers"`
	MaxBuffers        int            `toml:"MaxBuffers"`
	HighWaterMark     int            `toml:"HighWaterMark"`
	Cameras           []CameraConfig `toml:"Cameras"`
}

// Load reads and validates a TOML configuration document from path,
// filling in defaults the way the teacher's cmd/driver Config.Check does.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.check(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check(path string) error {
	configDir := filepath.Dir(path)
	if c.DataFolder == "" {
		c.DataFolder = filepath.Join(configDir, "data")
	}
	if c.LogFolder == "" {
		c.LogFolder = filepath.Join(configDir, "logs")
	}
	if c.MetricsWindowSecs < 1 {
		c.MetricsWindowSecs = 300
	}
	if c.FPSWindowSecs < 1 {
		c.FPSWindowSecs = 10
	}
	if c.MemorySampleSecs < 1 {
		c.MemorySampleSecs = 15
	}
	if c.HighUtilizationPct <= 0 {
		c.HighUtilizationPct = 80
	}
	if c.LatencyWarnMS <= 0 {
		c.LatencyWarnMS = 150
	}
	if c.ReconnectSecs < 1 {
		c.ReconnectSecs = 5
	}
	if c.ShrinkIdleSecs < 1 {
		c.ShrinkIdleSecs = 30
	}
	if c.InitialBuffers < 1 {
		c.InitialBuffers = 4
	}
	if c.MaxBuffers < c.InitialBuffers {
		c.MaxBuffers = c.InitialBuffers * 4
	}
	if c.HighWaterMark < c.InitialBuffers {
		c.HighWaterMark = c.MaxBuffers
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.Identifier == "" {
			return errors.New("camera identifier is required")
		}
		if seen[cam.Identifier] {
			return errors.New("duplicate camera identifier: " + cam.Identifier)
		}
		seen[cam.Identifier] = true
		if cam.CameraType == "" {
			return errors.New("camera_type is required for camera " + cam.Identifier)
		}
		switch cam.Orientation {
		case 0, 90, 180, 270:
		default:
			return errors.New("orientation must be one of 0, 90, 180, 270 for camera " + cam.Identifier)
		}
	}
	return nil
}

// MetricsWindow returns the configured metrics window as a Duration.
func (c *Config) MetricsWindow() time.Duration { return time.Duration(c.MetricsWindowSecs) * time.Second }

// FPSWindow returns the configured FPS window as a Duration.
func (c *Config) FPSWindow() time.Duration { return time.Duration(c.FPSWindowSecs) * time.Second }

// MemorySampleInterval returns the configured memory sampler interval.
func (c *Config) MemorySampleInterval() time.Duration {
	return time.Duration(c.MemorySampleSecs) * time.Second
}

// ReconnectDelay returns the configured camera reconnect delay.
func (c *Config) ReconnectDelay() time.Duration { return time.Duration(c.ReconnectSecs) * time.Second }

// ShrinkIdle returns the configured pool shrink idle duration.
func (c *Config) ShrinkIdle() time.Duration { return time.Duration(c.ShrinkIdleSecs) * time.Second }

// OrientationValue converts the camera's configured integer orientation
// to the camera package's enum.
func (cc CameraConfig) OrientationValue() camera.Orientation { return camera.Orientation(cc.Orientation) }

// PipelineDescriptor converts a PipelineConfig into a pipeline.Descriptor.
func (pc PipelineConfig) PipelineDescriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		PipelineID:    pc.ID,
		PipelineType:  pc.PipelineType,
		Config:        []byte(pc.ConfigJSON),
		QueueCapacity: pc.QueueCapacity,
	}
}
