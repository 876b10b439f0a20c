// Package config loads the YAML configuration shared by the command line
// tools. Flags override file values; Validate fills defaults and fails fast.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete tool configuration.
type Config struct {
	Prepare PrepareConfig `yaml:"prepare"`
	Align   AlignConfig   `yaml:"align"`
	Scan    ScanConfig    `yaml:"scan"`
	Retry   RetryConfig   `yaml:"retry"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// PrepareConfig controls the tagging tool.
type PrepareConfig struct {
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
	LeadFrames  int    `yaml:"lead_frames"`
	TailFrames  int    `yaml:"tail_frames"`
	StartPrefix string `yaml:"start_prefix"`
	FramePrefix string `yaml:"frame_prefix"`
	EndPrefix   string `yaml:"end_prefix"`
	ModuleSize  int    `yaml:"module_size"` // pixels per QR module
	Recovery    string `yaml:"recovery"`    // low, medium, high, highest
}

// AlignConfig controls the reconciliation tool.
type AlignConfig struct {
	Reference   string     `yaml:"reference"`
	Capture     string     `yaml:"capture"`
	Marker      string     `yaml:"marker"`
	WriteFrames bool       `yaml:"write_frames"` // write accepted frames as <uri path>.I420
	Crop        CropConfig `yaml:"crop"`
}

// CropConfig trims accepted frames before they are written.
type CropConfig struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Right  int `yaml:"right"`
	Bottom int `yaml:"bottom"`
}

// ScanConfig controls where and how identifiers are read.
type ScanConfig struct {
	Prefix    string `yaml:"prefix"`
	Anchor    string `yaml:"anchor"`    // top-left, top-right, bottom-left, bottom-right
	Region    string `yaml:"region"`    // WxH, empty for the full frame
	Intensity string `yaml:"intensity"` // per-channel, sum
}

// RetryConfig controls source restarts before the first frame.
type RetryConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	InitialDelayMS int `yaml:"initial_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
}

// MQTTConfig enables event relay when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = Validate(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration from memory.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}
