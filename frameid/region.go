package frameid

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Anchor selects the frame corner a scan region is pinned to.
type Anchor int

const (
	TopLeft Anchor = iota
	TopRight
	BottomLeft
	BottomRight
)

func (a Anchor) String() string {
	switch a {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// ParseAnchor accepts the String form, with '_' or '-' separators.
func ParseAnchor(s string) (Anchor, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "", "top-left":
		return TopLeft, nil
	case "top-right":
		return TopRight, nil
	case "bottom-left":
		return BottomLeft, nil
	case "bottom-right":
		return BottomRight, nil
	default:
		return TopLeft, fmt.Errorf("frameid: unknown anchor %q", s)
	}
}

// Region is the part of the frame handed to the symbol decoder. A zero
// Width or Height means the full frame extent on that axis.
type Region struct {
	Anchor Anchor
	Width  int
	Height int
}

// ParseSize parses "WxH" (e.g. "200x200"); "" and "0x0" mean full frame.
func ParseSize(s string) (width, height int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("frameid: size %q is not WxH", s)
	}
	if width, err = strconv.Atoi(w); err != nil || width < 0 {
		return 0, 0, fmt.Errorf("frameid: bad width in %q", s)
	}
	if height, err = strconv.Atoi(h); err != nil || height < 0 {
		return 0, 0, fmt.Errorf("frameid: bad height in %q", s)
	}
	return width, height, nil
}

// Validate reports ErrRegionOutOfBounds when the region is larger than the
// frame.
func (r Region) Validate(g Geometry) error {
	if r.Width < 0 || r.Height < 0 || r.Width > g.Width || r.Height > g.Height {
		return fmt.Errorf("%w: region %dx%d, frame %dx%d",
			ErrRegionOutOfBounds, r.Width, r.Height, g.Width, g.Height)
	}
	return nil
}

// Rect returns the active sub-rectangle for frames of geometry g. Sizes are
// clamped to the frame so the result never leaves the buffer.
func (r Region) Rect(g Geometry) image.Rectangle {
	w := r.Width
	if w <= 0 || w > g.Width {
		w = g.Width
	}
	h := r.Height
	if h <= 0 || h > g.Height {
		h = g.Height
	}

	x, y := 0, 0
	switch r.Anchor {
	case TopRight:
		x = g.Width - w
	case BottomLeft:
		y = g.Height - h
	case BottomRight:
		x = g.Width - w
		y = g.Height - h
	}

	return image.Rect(x, y, x+w, y+h)
}
