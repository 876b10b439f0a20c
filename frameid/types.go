package frameid

import (
	"fmt"

	"github.com/waltznetworks/video-align/internal/symbol"
)

// PixelFormat is the raw frame layout the codec understands.
type PixelFormat int

const (
	// FormatRGBx is packed R,G,B plus one padding byte per pixel.
	FormatRGBx PixelFormat = iota
	// FormatRGB is interleaved R,G,B with no padding.
	FormatRGB
)

// BytesPerPixel returns the packed pixel size, or 0 for an unknown format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBx:
		return 4
	case FormatRGB:
		return 3
	default:
		return 0
	}
}

// String returns the GStreamer caps name of the format.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBx:
		return "RGBx"
	case FormatRGB:
		return "RGB"
	default:
		return "unknown"
	}
}

// FormatFromCaps maps a GStreamer video/x-raw format name.
func FormatFromCaps(name string) (PixelFormat, error) {
	switch name {
	case "RGBx":
		return FormatRGBx, nil
	case "RGB":
		return FormatRGB, nil
	default:
		return 0, fmt.Errorf("frameid: unsupported pixel format %q", name)
	}
}

// Geometry is the negotiated layout of every frame in a stream segment.
// Row y starts at BytesPerPixel*Width*y; there is no stride padding.
type Geometry struct {
	Width  int
	Height int
	Format PixelFormat
}

// FrameSize is the minimum buffer length for one frame.
func (g Geometry) FrameSize() int {
	return g.Format.BytesPerPixel() * g.Width * g.Height
}

// Validate rejects geometry that cannot describe a frame.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, g.Width, g.Height)
	}
	if g.Format.BytesPerPixel() == 0 {
		return fmt.Errorf("%w: pixel format %d", ErrInvalidGeometry, g.Format)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d %s", g.Width, g.Height, g.Format)
}

// Frame is a raw video buffer laid out per the negotiated Geometry. The codec
// never keeps a reference to Data after a call returns.
type Frame struct {
	Data     []byte
	ReadOnly bool
}

// Outcome is the result of scanning one frame.
type Outcome int

const (
	// Dropped means the frame carries no relevant identifier and should be
	// excluded from downstream output.
	Dropped Outcome = iota
	// Found means a relevant identifier was read.
	Found
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// FoundEventName is the name of the event published for every Found frame.
const FoundEventName = "frameid-found"

// Event is the structured notification published on Found.
type Event struct {
	Name    string
	Payload string
}

// EventSink receives Found events synchronously on the scanning thread.
type EventSink interface {
	OnFound(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// OnFound calls f(ev).
func (f EventSinkFunc) OnFound(ev Event) {
	f(ev)
}

// Symbol capability re-exports
type (
	// SymbolEncoder renders text as a monochrome bitmap.
	SymbolEncoder = symbol.Encoder
	// SymbolDecoder returns decode attempts for a monochrome bitmap.
	SymbolDecoder = symbol.Decoder
	// Candidate is one decode attempt.
	Candidate = symbol.Candidate
	// DecodeError is a non-fatal per-candidate failure.
	DecodeError = symbol.DecodeError
)
