package frameid

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/waltznetworks/video-align/internal/symbol"
)

// ScannerConfig configures a Scanner.
type ScannerConfig struct {
	// PrefixFilter, when non-empty, selects only payloads starting with it.
	PrefixFilter string
	// Region is the scanned sub-rectangle (default: full frame).
	Region Region
	// Intensity is the RGB to gray reduction policy.
	Intensity IntensityPolicy
	// Symbols overrides the QR reader.
	Symbols SymbolDecoder
}

// Scanner reads identifiers out of frames. It keeps no per-frame state; the
// caller publishes whatever it finds.
type Scanner struct {
	symbols SymbolDecoder

	settingsMu sync.Mutex
	filter     string
	region     Region
	intensity  IntensityPolicy

	stateMu  sync.Mutex
	geometry *Geometry
}

// NewScanner creates an unconfigured scanner.
func NewScanner(cfg ScannerConfig) *Scanner {
	symbols := cfg.Symbols
	if symbols == nil {
		symbols = symbol.NewQRDecoder()
	}
	return &Scanner{
		symbols:   symbols,
		filter:    cfg.PrefixFilter,
		region:    cfg.Region,
		intensity: cfg.Intensity,
	}
}

// SetPrefixFilter replaces the prefix filter; "" disables filtering.
func (s *Scanner) SetPrefixFilter(prefix string) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	s.filter = prefix
}

// PrefixFilter returns the current filter.
func (s *Scanner) PrefixFilter() string {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.filter
}

// SetRegion replaces the scan region. When geometry is already negotiated the
// region is checked against it.
func (s *Scanner) SetRegion(r Region) error {
	s.stateMu.Lock()
	g := s.geometry
	s.stateMu.Unlock()

	if g != nil {
		if err := r.Validate(*g); err != nil {
			return err
		}
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	s.region = r
	return nil
}

// Region returns the current scan region.
func (s *Scanner) Region() Region {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.region
}

// Configure records the negotiated geometry. The configured region must fit.
func (s *Scanner) Configure(g Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := s.Region().Validate(g); err != nil {
		return err
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.geometry = &g

	slog.Debug("frameid: scanner configured", "geometry", g.String())
	return nil
}

// Geometry returns the negotiated geometry, if any.
func (s *Scanner) Geometry() (Geometry, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.geometry == nil {
		return Geometry{}, false
	}
	return *s.geometry, true
}

// ActiveRect returns the rectangle Scan would read for the negotiated geometry.
func (s *Scanner) ActiveRect() (image.Rectangle, error) {
	g, ok := s.Geometry()
	if !ok {
		return image.Rectangle{}, ErrNotConfigured
	}
	return s.Region().Rect(g), nil
}

// Extract returns the intensity image Scan would hand to the decoder.
func (s *Scanner) Extract(frame Frame) (*image.Gray, error) {
	g, ok := s.Geometry()
	if !ok {
		return nil, ErrNotConfigured
	}
	if len(frame.Data) < g.FrameSize() {
		return nil, fmt.Errorf("%w: %d bytes, need %d",
			ErrBufferNotReadable, len(frame.Data), g.FrameSize())
	}

	s.settingsMu.Lock()
	region, policy := s.region, s.intensity
	s.settingsMu.Unlock()

	return Intensity(frame.Data, g, region.Rect(g), policy), nil
}

// Scan decodes the region and returns the first payload that passes the
// prefix filter, in decoder order. Unreadable candidates are skipped; a
// payload that is not valid UTF-8 is a fatal ErrInvalidPayload.
func (s *Scanner) Scan(frame Frame) (Outcome, string, error) {
	img, err := s.Extract(frame)
	if err != nil {
		return Dropped, "", err
	}

	filter := s.PrefixFilter()
	for _, c := range s.symbols.Decode(img) {
		if !c.OK() {
			slog.Debug("frameid: skipping unreadable symbol", "error", c.Err)
			continue
		}
		if !utf8.ValidString(c.Text) {
			return Dropped, "", fmt.Errorf("%w: %q", ErrInvalidPayload, c.Text)
		}

		slog.Debug("frameid: symbol decoded", "payload", c.Text)
		if filter == "" || strings.HasPrefix(c.Text, filter) {
			return Found, c.Text, nil
		}
	}

	return Dropped, "", nil
}
