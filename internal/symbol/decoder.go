package symbol

import (
	"errors"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
)

// QRDecoder reads QR symbols with the zxing port. Each image gets a general
// detection pass first and, if nothing was read, a pure-barcode pass that
// suits borderless symbols on a clean background.
type QRDecoder struct {
	mu     sync.Mutex
	reader gozxing.Reader
	passes []map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder returns a decoder with the default pass list.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{
		reader: zxqrcode.NewQRCodeReader(),
		passes: []map[gozxing.DecodeHintType]interface{}{
			{gozxing.DecodeHintType_TRY_HARDER: true},
			{gozxing.DecodeHintType_PURE_BARCODE: true},
		},
	}
}

// Decode runs the passes in order and stops at the first payload. Passes that
// find no symbol contribute nothing; passes that find an unreadable symbol
// contribute an error candidate.
func (d *QRDecoder) Decode(img *image.Gray) []Candidate {
	if img == nil || img.Rect.Empty() {
		return nil
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return []Candidate{{Err: &DecodeError{Err: err}}}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var candidates []Candidate
	for _, hints := range d.passes {
		result, err := d.reader.Decode(bmp, hints)
		d.reader.Reset()
		if err != nil {
			var notFound gozxing.NotFoundException
			if errors.As(err, &notFound) {
				continue
			}
			candidates = append(candidates, Candidate{Err: &DecodeError{Err: err}})
			continue
		}
		candidates = append(candidates, Candidate{Text: result.GetText()})
		break
	}

	return candidates
}
