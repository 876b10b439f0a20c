// Package symbol binds the 2D barcode capability used to carry frame
// identifiers: QR symbols are rendered with skip2/go-qrcode and read back
// with gozxing.
package symbol

import (
	"fmt"
	"image"
)

// Candidate is a single decode attempt. Exactly one of Text or Err is set.
type Candidate struct {
	Text string
	Err  error
}

// OK reports whether the attempt produced a payload.
func (c Candidate) OK() bool {
	return c.Err == nil
}

// Encoder renders text as a monochrome symbol bitmap.
type Encoder interface {
	Encode(text string) (*image.Gray, error)
}

// Decoder returns every decode attempt for the image, in the order the
// underlying reader produced them. A blank region yields no candidates.
type Decoder interface {
	Decode(img *image.Gray) []Candidate
}

// DecodeError wraps a reader failure (checksum, format) for a symbol that was
// located but could not be read.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("symbol: decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
