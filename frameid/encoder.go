package frameid

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/waltznetworks/video-align/internal/symbol"
)

// EncoderConfig configures an Encoder.
type EncoderConfig struct {
	// Prefix is prepended to the frame counter (e.g. "f:").
	Prefix string
	// ModuleSize is the pixel edge of one QR module (default 4).
	ModuleSize int
	// Symbols overrides the QR renderer.
	Symbols SymbolEncoder
}

type encoderState struct {
	geometry Geometry
	counter  uint64
}

// Encoder stamps a QR symbol of Prefix+counter into the top-left corner of
// each frame, in place.
type Encoder struct {
	symbols SymbolEncoder

	settingsMu sync.Mutex
	prefix     string

	stateMu sync.Mutex
	state   *encoderState
}

// NewEncoder creates an unconfigured encoder; Configure must be called with
// the negotiated geometry before the first frame.
func NewEncoder(cfg EncoderConfig) *Encoder {
	symbols := cfg.Symbols
	if symbols == nil {
		symbols = symbol.NewQREncoder(cfg.ModuleSize)
	}
	return &Encoder{
		symbols: symbols,
		prefix:  cfg.Prefix,
	}
}

// SetPrefix changes the prefix used from the next frame on.
func (e *Encoder) SetPrefix(prefix string) {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	e.prefix = prefix
}

// Prefix returns the current prefix.
func (e *Encoder) Prefix() string {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	return e.prefix
}

// Configure records the negotiated geometry and restarts the counter at 0.
// Any previous counter progress is discarded.
func (e *Encoder) Configure(g Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.state = &encoderState{geometry: g}

	slog.Debug("frameid: encoder configured", "geometry", g.String())
	return nil
}

// Configured reports whether geometry has been negotiated.
func (e *Encoder) Configured() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state != nil
}

// Counter returns the sequence number the next frame will carry.
func (e *Encoder) Counter() uint64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == nil {
		return 0
	}
	return e.state.counter
}

// EncodeInto stamps the next identifier into frame and advances the counter.
// On any error the frame may be partially untouched and the counter is not
// advanced.
func (e *Encoder) EncodeInto(frame Frame) (Identifier, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.state == nil {
		return Identifier{}, ErrNotConfigured
	}
	g := e.state.geometry

	if frame.ReadOnly || len(frame.Data) < g.FrameSize() {
		return Identifier{}, fmt.Errorf("%w: %d bytes, need %d",
			ErrBufferNotWritable, len(frame.Data), g.FrameSize())
	}

	id := Identifier{Prefix: e.Prefix(), Sequence: e.state.counter}
	bitmap, err := e.symbols.Encode(id.String())
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %v", ErrSymbolEncode, err)
	}

	blit(frame.Data, g, bitmap)

	e.state.counter++
	return id, nil
}

// blit copies bitmap to (0,0), writing each value into the three colour
// channels and leaving any padding byte alone. Parts of the bitmap beyond the
// frame are clipped.
func blit(data []byte, g Geometry, bitmap *image.Gray) {
	bpp := g.Format.BytesPerPixel()
	b := bitmap.Bounds()

	w := b.Dx()
	if w > g.Width {
		w = g.Width
	}
	h := b.Dy()
	if h > g.Height {
		h = g.Height
	}

	for y := 0; y < h; y++ {
		src := bitmap.PixOffset(b.Min.X, b.Min.Y+y)
		dst := bpp * g.Width * y
		for x := 0; x < w; x++ {
			v := bitmap.Pix[src+x]
			data[dst] = v
			data[dst+1] = v
			data[dst+2] = v
			dst += bpp
		}
	}
}
