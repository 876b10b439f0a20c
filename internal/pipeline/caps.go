package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VideoInfo is the part of negotiated raw video caps the frame codec needs.
type VideoInfo struct {
	Format    string
	Width     int
	Height    int
	FPSNum    int
	FPSDen    int
	MediaType string
}

// FrameDuration returns the nominal duration of one frame, or 0 when the
// framerate is unknown or variable.
func (v VideoInfo) FrameDuration() time.Duration {
	if v.FPSNum <= 0 || v.FPSDen <= 0 {
		return 0
	}
	return time.Second * time.Duration(v.FPSDen) / time.Duration(v.FPSNum)
}

// ParseVideoCaps reads a fixed caps string such as
//
//	video/x-raw, format=(string)RGBx, width=(int)640, height=(int)480, framerate=(fraction)24/1
//
// Typed and untyped field values are both accepted.
func ParseVideoCaps(caps string) (VideoInfo, error) {
	fields := strings.Split(strings.TrimSuffix(strings.TrimSpace(caps), ";"), ",")
	info := VideoInfo{MediaType: strings.TrimSpace(fields[0])}
	if !strings.HasPrefix(info.MediaType, "video/") {
		return VideoInfo{}, fmt.Errorf("pipeline: not video caps: %q", caps)
	}

	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		if i := strings.Index(value, ")"); strings.HasPrefix(value, "(") && i > 0 {
			value = value[i+1:]
		}
		value = strings.Trim(value, `" `)

		var err error
		switch key {
		case "format":
			info.Format = value
		case "width":
			info.Width, err = strconv.Atoi(value)
		case "height":
			info.Height, err = strconv.Atoi(value)
		case "framerate":
			num, den, _ := strings.Cut(value, "/")
			if info.FPSNum, err = strconv.Atoi(num); err == nil {
				info.FPSDen = 1
				if den != "" {
					info.FPSDen, err = strconv.Atoi(den)
				}
			}
		}
		if err != nil {
			return VideoInfo{}, fmt.Errorf("pipeline: bad %s in caps %q: %w", key, caps, err)
		}
	}

	if info.Width <= 0 || info.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("pipeline: caps %q carry no frame size", caps)
	}
	return info, nil
}

// RawVideoCaps builds a caps string for raw video. Zero width, height or fps
// leave that field open for negotiation.
func RawVideoCaps(format string, width, height, fps int) string {
	var b strings.Builder
	b.WriteString("video/x-raw")
	if format != "" {
		fmt.Fprintf(&b, ",format=%s", format)
	}
	if width > 0 {
		fmt.Fprintf(&b, ",width=%d", width)
	}
	if height > 0 {
		fmt.Fprintf(&b, ",height=%d", height)
	}
	if fps > 0 {
		fmt.Fprintf(&b, ",framerate=%d/1", fps)
	}
	return b.String()
}
