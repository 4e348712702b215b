package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"towertracker/detection"
	"towertracker/pipeline"
	"towertracker/publish"
	"towertracker/stream"
	"towertracker/targeting"
)

// DefaultInput is the robot's Axis camera MJPEG stream
const DefaultInput = "http://axis-1741.local/mjpg/video.mjpg"

// DefaultListen is where the robot reads the targeting table from. Ports
// 5800-5810 are open on the field network for team use.
const DefaultListen = ":5800"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the full startup configuration. It is read once and never
// changed while the tracker runs.
type Config struct {
	Input            string                   `json:"input"`
	ColorThreshold   detection.ColorThreshold `json:"color_threshold"`
	MinBoxSize       BoxSize                  `json:"min_box_size"`
	AspectRatioRange AspectRatioRange         `json:"aspect_ratio_range"`
	CameraGeometry   targeting.CameraGeometry `json:"camera_geometry"`
	Publish          PublishConfig            `json:"publish"`
	Session          SessionConfig            `json:"session"`
	Debug            DebugConfig              `json:"debug"`
}

// BoxSize is the minimum bounding box a candidate must have
type BoxSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AspectRatioRange bounds width/height, inclusive
type AspectRatioRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PublishConfig selects where outputs go
type PublishConfig struct {
	Table   string `json:"table"`
	Key     string `json:"key"`
	Listen  string `json:"listen,omitempty"`   // HTTP address serving GET /<table>/<key>, empty to disable
	UDPAddr string `json:"udp_addr,omitempty"` // host:port, empty to disable
	Stdout  bool   `json:"stdout"`
}

// SessionConfig is the reconnect policy; durations are strings like "500ms"
type SessionConfig struct {
	RetryDelay    string `json:"retry_delay"`
	MaxRetryDelay string `json:"max_retry_delay"`
	MaxRetries    int    `json:"max_retries"`
}

// DebugConfig controls the debug observers
type DebugConfig struct {
	JPGPath  string `json:"jpg_path,omitempty"`
	JPGEvery int    `json:"jpg_every"`
	JPGAll   bool   `json:"jpg_all"`
	Display  bool   `json:"display"`
}

// Default returns the configuration the tracker was tuned with
func Default() *Config {
	filter := targeting.DefaultFilterConfig()
	policy := stream.DefaultPolicy()
	return &Config{
		Input:          DefaultInput,
		ColorThreshold: detection.DefaultColorThreshold(),
		MinBoxSize:     BoxSize{Width: filter.MinWidth, Height: filter.MinHeight},
		AspectRatioRange: AspectRatioRange{
			Min: filter.MinAspect,
			Max: filter.MaxAspect,
		},
		CameraGeometry: targeting.DefaultCameraGeometry(),
		Publish: PublishConfig{
			Table:  publish.DefaultTable,
			Key:    publish.DefaultKey,
			Listen: DefaultListen,
		},
		Session: SessionConfig{
			RetryDelay:    policy.RetryDelay.String(),
			MaxRetryDelay: policy.MaxRetryDelay.String(),
		},
		Debug: DebugConfig{
			JPGEvery: 30,
		},
	}
}

// Load reads a JSON config file over the defaults, so fields omitted from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	if err := c.ColorThreshold.Validate(); err != nil {
		return fmt.Errorf("color_threshold: %w", err)
	}
	if err := c.FilterConfig().Validate(); err != nil {
		return fmt.Errorf("min_box_size/aspect_ratio_range: %w", err)
	}
	if err := c.CameraGeometry.Validate(); err != nil {
		return fmt.Errorf("camera_geometry: %w", err)
	}
	if c.Publish.Key == "" {
		return fmt.Errorf("publish.key is required")
	}
	if c.Publish.Listen != "" && (c.Publish.Table == "" || strings.Contains(c.Publish.Table+c.Publish.Key, "/")) {
		return fmt.Errorf("publish.table and publish.key must be non-empty path segments when publish.listen is set")
	}
	if _, err := c.SessionPolicy(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if c.Debug.JPGEvery < 0 {
		return fmt.Errorf("debug.jpg_every must not be negative")
	}
	return nil
}

// FilterConfig returns the candidate filter limits
func (c *Config) FilterConfig() targeting.FilterConfig {
	return targeting.FilterConfig{
		MinWidth:  c.MinBoxSize.Width,
		MinHeight: c.MinBoxSize.Height,
		MinAspect: c.AspectRatioRange.Min,
		MaxAspect: c.AspectRatioRange.Max,
	}
}

// PipelineConfig returns the per-frame stage configuration
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Threshold: c.ColorThreshold,
		Filter:    c.FilterConfig(),
		Geometry:  c.CameraGeometry,
	}
}

// SessionPolicy parses the reconnect policy
func (c *Config) SessionPolicy() (stream.Policy, error) {
	retry, err := time.ParseDuration(c.Session.RetryDelay)
	if err != nil {
		return stream.Policy{}, fmt.Errorf("invalid retry_delay %q: %w", c.Session.RetryDelay, err)
	}
	maxRetry, err := time.ParseDuration(c.Session.MaxRetryDelay)
	if err != nil {
		return stream.Policy{}, fmt.Errorf("invalid max_retry_delay %q: %w", c.Session.MaxRetryDelay, err)
	}
	if retry <= 0 {
		return stream.Policy{}, fmt.Errorf("retry_delay must be positive, got %v", retry)
	}
	if maxRetry < retry {
		return stream.Policy{}, fmt.Errorf("max_retry_delay %v is below retry_delay %v", maxRetry, retry)
	}
	if c.Session.MaxRetries < 0 {
		return stream.Policy{}, fmt.Errorf("max_retries must not be negative")
	}
	return stream.Policy{
		RetryDelay:    retry,
		MaxRetryDelay: maxRetry,
		MaxRetries:    c.Session.MaxRetries,
	}, nil
}
