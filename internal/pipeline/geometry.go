package pipeline

import (
	"github.com/waltznetworks/video-align/frameid"
)

// Geometry maps negotiated caps to the frame codec layout.
func (v VideoInfo) Geometry() (frameid.Geometry, error) {
	format, err := frameid.FormatFromCaps(v.Format)
	if err != nil {
		return frameid.Geometry{}, err
	}
	g := frameid.Geometry{Width: v.Width, Height: v.Height, Format: format}
	if err := g.Validate(); err != nil {
		return frameid.Geometry{}, err
	}
	return g, nil
}
