package frameid

import "errors"

var (
	// ErrNotConfigured is returned when a frame arrives before geometry
	// negotiation. The host may retry after Configure.
	ErrNotConfigured = errors.New("frameid: geometry not negotiated")
	// ErrBufferNotReadable is returned when a frame cannot be mapped for reading.
	ErrBufferNotReadable = errors.New("frameid: frame buffer not readable")
	// ErrBufferNotWritable is returned when a frame cannot be mapped for writing.
	ErrBufferNotWritable = errors.New("frameid: frame buffer not writable")
	// ErrInvalidPayload is returned when a decoded symbol is not valid text.
	// It points at a region or filter misconfiguration and is fatal.
	ErrInvalidPayload = errors.New("frameid: decoded payload is not valid UTF-8")
	// ErrInvalidGeometry is returned by Configure for unusable geometry.
	ErrInvalidGeometry = errors.New("frameid: invalid geometry")
	// ErrSymbolEncode is returned when the identifier cannot be rendered.
	ErrSymbolEncode = errors.New("frameid: symbol encode failed")
	// ErrRegionOutOfBounds is returned when a scan region does not fit the frame.
	ErrRegionOutOfBounds = errors.New("frameid: scan region exceeds frame")
)
