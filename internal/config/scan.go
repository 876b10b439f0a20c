package config

import (
	"time"

	"github.com/waltznetworks/video-align/frameid"
)

// ScanRegion returns the configured scan region.
func (s ScanConfig) ScanRegion() (frameid.Region, error) {
	anchor, err := frameid.ParseAnchor(s.Anchor)
	if err != nil {
		return frameid.Region{}, err
	}
	w, h, err := frameid.ParseSize(s.Region)
	if err != nil {
		return frameid.Region{}, err
	}
	return frameid.Region{Anchor: anchor, Width: w, Height: h}, nil
}

// IntensityPolicy returns the configured RGB reduction.
func (s ScanConfig) IntensityPolicy() (frameid.IntensityPolicy, error) {
	return frameid.ParseIntensityPolicy(s.Intensity)
}

// Delays returns the retry delays as durations.
func (r RetryConfig) Delays() (initial, maxDelay time.Duration) {
	return time.Duration(r.InitialDelayMS) * time.Millisecond,
		time.Duration(r.MaxDelayMS) * time.Millisecond
}
