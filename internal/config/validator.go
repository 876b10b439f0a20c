package config

import (
	"fmt"

	"github.com/waltznetworks/video-align/frameid"
	"github.com/waltznetworks/video-align/internal/symbol"
)

// Validate fills defaults and checks values that would only fail later, deep
// inside a pipeline.
func Validate(cfg *Config) error {
	p := &cfg.Prepare
	if p.Width == 0 {
		p.Width = 1280
	}
	if p.Height == 0 {
		p.Height = 720
	}
	if p.FPS == 0 {
		p.FPS = 24
	}
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("prepare: size %dx%d must be positive", p.Width, p.Height)
	}
	if p.FPS < 0 {
		return fmt.Errorf("prepare.fps must be > 0")
	}
	if p.LeadFrames == 0 {
		p.LeadFrames = 300
	}
	if p.TailFrames == 0 {
		p.TailFrames = 300
	}
	if p.LeadFrames < 0 || p.TailFrames < 0 {
		return fmt.Errorf("prepare: lead_frames and tail_frames must not be negative")
	}
	if p.StartPrefix == "" {
		p.StartPrefix = "s:"
	}
	if p.FramePrefix == "" {
		p.FramePrefix = "f:"
	}
	if p.EndPrefix == "" {
		p.EndPrefix = "e:"
	}
	if p.StartPrefix == p.FramePrefix || p.EndPrefix == p.FramePrefix {
		return fmt.Errorf("prepare: frame_prefix %q must differ from start and end prefixes", p.FramePrefix)
	}
	if p.ModuleSize == 0 {
		p.ModuleSize = symbol.DefaultModuleSize
	}
	if p.ModuleSize < 0 {
		return fmt.Errorf("prepare.module_size must be > 0")
	}
	if _, err := symbol.ParseLevel(p.Recovery); err != nil {
		return fmt.Errorf("prepare.recovery: %w", err)
	}

	if cfg.Align.Marker == "" {
		cfg.Align.Marker = p.FramePrefix
	}
	c := cfg.Align.Crop
	if c.Left < 0 || c.Top < 0 || c.Right < 0 || c.Bottom < 0 {
		return fmt.Errorf("align.crop values must not be negative")
	}

	if _, err := frameid.ParseAnchor(cfg.Scan.Anchor); err != nil {
		return fmt.Errorf("scan.anchor: %w", err)
	}
	if _, _, err := frameid.ParseSize(cfg.Scan.Region); err != nil {
		return fmt.Errorf("scan.region: %w", err)
	}
	if _, err := frameid.ParseIntensityPolicy(cfg.Scan.Intensity); err != nil {
		return fmt.Errorf("scan.intensity: %w", err)
	}

	r := &cfg.Retry
	if r.MaxRetries == 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelayMS == 0 {
		r.InitialDelayMS = 1000
	}
	if r.MaxDelayMS == 0 {
		r.MaxDelayMS = 30000
	}
	if r.MaxRetries < 0 || r.InitialDelayMS < 0 || r.MaxDelayMS < r.InitialDelayMS {
		return fmt.Errorf("retry: invalid schedule %+v", *r)
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "video-align"
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", cfg.Log.Format)
	}

	return nil
}
