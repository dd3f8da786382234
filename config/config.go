// Package config loads the service configuration from YAML, filling in
// the documented defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Limits  LimitsConfig  `yaml:"limits"`
	Render  RenderConfig  `yaml:"render"`
	Output  OutputConfig  `yaml:"output"`
	Storage StorageConfig `yaml:"storage"`
	Workers WorkersConfig `yaml:"workers"`
	Log     LogConfig     `yaml:"log"`
}

type LimitsConfig struct {
	// InboundMaxBytes caps a single submitted document.
	InboundMaxBytes int64 `yaml:"inbound_max_bytes"`
	// OutboundMaxBytes caps the combined export.
	OutboundMaxBytes int64 `yaml:"outbound_max_bytes"`
}

type RenderConfig struct {
	DPI int `yaml:"dpi"`
	// RasterizerPaths are pdftoppm binaries tried in order. Empty means
	// the built-in candidate list.
	RasterizerPaths []string `yaml:"rasterizer_paths"`
}

type OutputConfig struct {
	PageWidthMM  float64 `yaml:"page_width_mm"`
	PageHeightMM float64 `yaml:"page_height_mm"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30m" or "1h", or from a plain number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type StorageConfig struct {
	TempDir       string   `yaml:"temp_dir"`
	Retention     Duration `yaml:"retention"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

type WorkersConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and applies defaults to unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Limits.InboundMaxBytes == 0 {
		c.Limits.InboundMaxBytes = 20 << 20
	}
	if c.Limits.OutboundMaxBytes == 0 {
		c.Limits.OutboundMaxBytes = 50 << 20
	}
	if c.Render.DPI == 0 {
		c.Render.DPI = 150
	}
	if c.Output.PageWidthMM == 0 {
		c.Output.PageWidthMM = 210
	}
	if c.Output.PageHeightMM == 0 {
		c.Output.PageHeightMM = 297
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "/tmp/quadpdf"
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = Duration(time.Hour)
	}
	if c.Storage.SweepInterval == 0 {
		c.Storage.SweepInterval = Duration(10 * time.Minute)
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 4
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 16
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
