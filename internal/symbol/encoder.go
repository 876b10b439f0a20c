package symbol

import (
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultModuleSize is the number of pixels per QR module edge.
const DefaultModuleSize = 4

// QREncoder renders QR symbols without a quiet zone so the symbol can sit
// flush against the frame corner.
type QREncoder struct {
	Level      qrcode.RecoveryLevel
	ModuleSize int
}

// NewQREncoder returns an encoder at Medium recovery. A non-positive module
// size falls back to DefaultModuleSize.
func NewQREncoder(moduleSize int) *QREncoder {
	if moduleSize <= 0 {
		moduleSize = DefaultModuleSize
	}
	return &QREncoder{
		Level:      qrcode.Medium,
		ModuleSize: moduleSize,
	}
}

// ParseLevel maps a config name to a recovery level.
func ParseLevel(name string) (qrcode.RecoveryLevel, error) {
	switch name {
	case "low", "L":
		return qrcode.Low, nil
	case "", "medium", "M":
		return qrcode.Medium, nil
	case "high", "Q":
		return qrcode.High, nil
	case "highest", "H":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("symbol: unknown recovery level %q", name)
	}
}

// Encode renders text as a square bitmap, 0x00 for dark modules and 0xFF for
// light ones.
func (e *QREncoder) Encode(text string) (*image.Gray, error) {
	code, err := qrcode.New(text, e.Level)
	if err != nil {
		return nil, fmt.Errorf("symbol: encode %q: %w", text, err)
	}
	code.DisableBorder = true

	modules := code.Bitmap()
	scale := e.ModuleSize
	if scale <= 0 {
		scale = DefaultModuleSize
	}

	size := len(modules) * scale
	img := image.NewGray(image.Rect(0, 0, size, size))
	for my, row := range modules {
		for mx, dark := range row {
			v := uint8(0xff)
			if dark {
				v = 0x00
			}
			for dy := 0; dy < scale; dy++ {
				off := (my*scale+dy)*img.Stride + mx*scale
				for dx := 0; dx < scale; dx++ {
					img.Pix[off+dx] = v
				}
			}
		}
	}

	return img, nil
}
