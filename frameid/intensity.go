package frameid

import (
	"fmt"
	"image"
)

// IntensityPolicy selects how RGB pixels are reduced to one channel.
type IntensityPolicy int

const (
	// IntensityPerChannel computes R/3 + G/3 + B/3. It loses up to two units
	// against the exact mean and is the default because existing encoded
	// fixtures were produced with it.
	IntensityPerChannel IntensityPolicy = iota
	// IntensitySumThenDivide computes (R+G+B)/3.
	IntensitySumThenDivide
)

func (p IntensityPolicy) String() string {
	switch p {
	case IntensityPerChannel:
		return "per-channel"
	case IntensitySumThenDivide:
		return "sum"
	default:
		return "unknown"
	}
}

// ParseIntensityPolicy accepts "per-channel" (default) or "sum".
func ParseIntensityPolicy(s string) (IntensityPolicy, error) {
	switch s {
	case "", "per-channel":
		return IntensityPerChannel, nil
	case "sum", "sum-then-divide":
		return IntensitySumThenDivide, nil
	default:
		return IntensityPerChannel, fmt.Errorf("frameid: unknown intensity policy %q", s)
	}
}

// Intensity extracts rect from data (laid out per g) as a grayscale image
// whose origin is (0,0). The caller guarantees len(data) >= g.FrameSize()
// and that rect lies inside the frame.
func Intensity(data []byte, g Geometry, rect image.Rectangle, policy IntensityPolicy) *image.Gray {
	bpp := g.Format.BytesPerPixel()
	img := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		src := bpp * (rect.Min.X + g.Width*y)
		dst := (y - rect.Min.Y) * img.Stride
		for x := 0; x < rect.Dx(); x++ {
			r, gr, b := data[src], data[src+1], data[src+2]
			if policy == IntensitySumThenDivide {
				img.Pix[dst+x] = uint8((uint16(r) + uint16(gr) + uint16(b)) / 3)
			} else {
				img.Pix[dst+x] = r/3 + gr/3 + b/3
			}
			src += bpp
		}
	}

	return img
}
