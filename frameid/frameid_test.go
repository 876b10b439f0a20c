package frameid

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSymbols renders a fixed-size bitmap and decodes a scripted list of
// candidates, recording what it was asked.
type fakeSymbols struct {
	size       int
	value      uint8
	encodeErr  error
	encoded    []string
	candidates []Candidate
	lastImage  *image.Gray
}

func (f *fakeSymbols) Encode(text string) (*image.Gray, error) {
	if f.encodeErr != nil {
		return nil, f.encodeErr
	}
	f.encoded = append(f.encoded, text)
	img := image.NewGray(image.Rect(0, 0, f.size, f.size))
	for i := range img.Pix {
		img.Pix[i] = f.value
	}
	return img, nil
}

func (f *fakeSymbols) Decode(img *image.Gray) []Candidate {
	f.lastImage = img
	return f.candidates
}

func whiteFrame(g Geometry) Frame {
	data := make([]byte, g.FrameSize())
	for i := range data {
		data[i] = 0xff
	}
	return Frame{Data: data}
}

var vga = Geometry{Width: 640, Height: 480, Format: FormatRGBx}

func TestEncoder_NotConfigured(t *testing.T) {
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: &fakeSymbols{size: 4}})

	_, err := enc.EncodeInto(whiteFrame(vga))
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, uint64(0), enc.Counter())
	assert.False(t, enc.Configured())
}

func TestEncoder_MonotonicCounter(t *testing.T) {
	fake := &fakeSymbols{size: 4}
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: fake})
	require.NoError(t, enc.Configure(vga))

	for i := 0; i < 5; i++ {
		id, err := enc.EncodeInto(whiteFrame(vga))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id.Sequence)
	}
	assert.Equal(t, []string{"f:0", "f:1", "f:2", "f:3", "f:4"}, fake.encoded)
	assert.Equal(t, uint64(5), enc.Counter())
}

func TestEncoder_ConfigureResetsCounter(t *testing.T) {
	enc := NewEncoder(EncoderConfig{Prefix: "s:", Symbols: &fakeSymbols{size: 4}})
	require.NoError(t, enc.Configure(vga))

	for i := 0; i < 3; i++ {
		_, err := enc.EncodeInto(whiteFrame(vga))
		require.NoError(t, err)
	}
	require.NoError(t, enc.Configure(vga))
	assert.Equal(t, uint64(0), enc.Counter())

	enc.SetPrefix("f:")
	id, err := enc.EncodeInto(whiteFrame(vga))
	require.NoError(t, err)
	assert.Equal(t, "f:0", id.String())
}

func TestEncoder_InvalidGeometryKeepsState(t *testing.T) {
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: &fakeSymbols{size: 4}})
	require.NoError(t, enc.Configure(vga))
	_, err := enc.EncodeInto(whiteFrame(vga))
	require.NoError(t, err)

	tests := []struct {
		name string
		g    Geometry
	}{
		{"zero width", Geometry{Width: 0, Height: 10, Format: FormatRGBx}},
		{"negative height", Geometry{Width: 10, Height: -1, Format: FormatRGB}},
		{"unknown format", Geometry{Width: 10, Height: 10, Format: PixelFormat(9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, enc.Configure(tt.g), ErrInvalidGeometry)
			assert.Equal(t, uint64(1), enc.Counter())
		})
	}
}

func TestEncoder_BufferErrors(t *testing.T) {
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: &fakeSymbols{size: 4}})
	require.NoError(t, enc.Configure(vga))

	t.Run("read only", func(t *testing.T) {
		frame := whiteFrame(vga)
		frame.ReadOnly = true
		_, err := enc.EncodeInto(frame)
		assert.ErrorIs(t, err, ErrBufferNotWritable)
	})

	t.Run("short buffer", func(t *testing.T) {
		_, err := enc.EncodeInto(Frame{Data: make([]byte, 16)})
		assert.ErrorIs(t, err, ErrBufferNotWritable)
	})

	assert.Equal(t, uint64(0), enc.Counter())
}

func TestEncoder_SymbolFailureKeepsCounter(t *testing.T) {
	cause := errors.New("data too long")
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: &fakeSymbols{encodeErr: cause}})
	require.NoError(t, enc.Configure(vga))

	_, err := enc.EncodeInto(whiteFrame(vga))
	require.ErrorIs(t, err, ErrSymbolEncode)
	assert.Equal(t, uint64(0), enc.Counter())
}

func TestEncoder_BlitLeavesPaddingAndOutside(t *testing.T) {
	g := Geometry{Width: 8, Height: 8, Format: FormatRGBx}
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: &fakeSymbols{size: 3, value: 0x10}})
	require.NoError(t, enc.Configure(g))

	frame := Frame{Data: make([]byte, g.FrameSize())}
	for i := range frame.Data {
		frame.Data[i] = 0xaa
	}
	_, err := enc.EncodeInto(frame)
	require.NoError(t, err)

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			off := 4 * (x + g.Width*y)
			want := uint8(0xaa)
			if x < 3 && y < 3 {
				want = 0x10
			}
			assert.Equal(t, []byte{want, want, want}, frame.Data[off:off+3], "pixel %d,%d", x, y)
			assert.Equal(t, uint8(0xaa), frame.Data[off+3], "padding %d,%d", x, y)
		}
	}
}

func TestEncoder_BlitClipsToFrame(t *testing.T) {
	g := Geometry{Width: 4, Height: 2, Format: FormatRGB}
	enc := NewEncoder(EncoderConfig{Prefix: "f:", Symbols: &fakeSymbols{size: 10, value: 0x00}})
	require.NoError(t, enc.Configure(g))

	frame := whiteFrame(g)
	_, err := enc.EncodeInto(frame)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, g.FrameSize()), frame.Data)
}

func TestScanner_NotConfigured(t *testing.T) {
	sc := NewScanner(ScannerConfig{Symbols: &fakeSymbols{}})
	outcome, payload, err := sc.Scan(whiteFrame(vga))
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, Dropped, outcome)
	assert.Empty(t, payload)
}

func TestScanner_ShortBuffer(t *testing.T) {
	sc := NewScanner(ScannerConfig{Symbols: &fakeSymbols{}})
	require.NoError(t, sc.Configure(vga))
	_, _, err := sc.Scan(Frame{Data: make([]byte, 10)})
	assert.ErrorIs(t, err, ErrBufferNotReadable)
}

func TestScanner_Filtering(t *testing.T) {
	decodeFailed := Candidate{Err: &DecodeError{Err: errors.New("checksum")}}

	tests := []struct {
		name       string
		filter     string
		candidates []Candidate
		outcome    Outcome
		payload    string
	}{
		{"no symbols", "f:", nil, Dropped, ""},
		{"matching prefix", "f:", []Candidate{{Text: "f:12"}}, Found, "f:12"},
		{"other prefix", "f:", []Candidate{{Text: "s:3"}}, Dropped, ""},
		{"no filter accepts anything", "", []Candidate{{Text: "s:3"}}, Found, "s:3"},
		{"first match wins", "f:", []Candidate{{Text: "s:1"}, {Text: "f:7"}, {Text: "f:8"}}, Found, "f:7"},
		{"decode errors skipped", "f:", []Candidate{decodeFailed, {Text: "f:2"}}, Found, "f:2"},
		{"only errors", "f:", []Candidate{decodeFailed}, Dropped, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewScanner(ScannerConfig{
				PrefixFilter: tt.filter,
				Symbols:      &fakeSymbols{candidates: tt.candidates},
			})
			require.NoError(t, sc.Configure(vga))

			outcome, payload, err := sc.Scan(whiteFrame(vga))
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestScanner_InvalidPayload(t *testing.T) {
	sc := NewScanner(ScannerConfig{
		Symbols: &fakeSymbols{candidates: []Candidate{{Text: "f:\xff\xfe"}}},
	})
	require.NoError(t, sc.Configure(vga))

	outcome, _, err := sc.Scan(whiteFrame(vga))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, Dropped, outcome)
}

func TestScanner_RegionHandedToDecoder(t *testing.T) {
	g := Geometry{Width: 4, Height: 4, Format: FormatRGB}
	frame := Frame{Data: make([]byte, g.FrameSize())}
	// Mark pixel (3,3) so the bottom-right region can be recognised.
	off := 3 * (3 + 4*3)
	frame.Data[off], frame.Data[off+1], frame.Data[off+2] = 30, 60, 90

	fake := &fakeSymbols{}
	sc := NewScanner(ScannerConfig{
		Region:  Region{Anchor: BottomRight, Width: 2, Height: 2},
		Symbols: fake,
	})
	require.NoError(t, sc.Configure(g))
	_, _, err := sc.Scan(frame)
	require.NoError(t, err)

	require.NotNil(t, fake.lastImage)
	assert.Equal(t, image.Rect(0, 0, 2, 2), fake.lastImage.Bounds())
	assert.Equal(t, uint8(60), fake.lastImage.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), fake.lastImage.GrayAt(0, 0).Y)
}

func TestScanner_RegionValidation(t *testing.T) {
	sc := NewScanner(ScannerConfig{
		Region:  Region{Width: 800, Height: 100},
		Symbols: &fakeSymbols{},
	})
	assert.ErrorIs(t, sc.Configure(vga), ErrRegionOutOfBounds)

	require.NoError(t, sc.SetRegion(Region{Anchor: TopRight, Width: 100, Height: 100}))
	require.NoError(t, sc.Configure(vga))
	assert.ErrorIs(t, sc.SetRegion(Region{Height: 481}), ErrRegionOutOfBounds)

	rect, err := sc.ActiveRect()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(540, 0, 640, 100), rect)
}

func TestFilter_PublishesFound(t *testing.T) {
	var events []Event
	sink := EventSinkFunc(func(ev Event) { events = append(events, ev) })

	fake := &fakeSymbols{candidates: []Candidate{{Text: "f:4"}}}
	f := NewFilter(NewScanner(ScannerConfig{PrefixFilter: "f:", Symbols: fake}), sink)
	require.NoError(t, f.Configure(vga))

	outcome, payload, err := f.Process(whiteFrame(vga))
	require.NoError(t, err)
	assert.Equal(t, Found, outcome)
	assert.Equal(t, "f:4", payload)
	assert.Equal(t, []Event{{Name: FoundEventName, Payload: "f:4"}}, events)

	fake.candidates = []Candidate{{Text: "e:0"}}
	outcome, _, err = f.Process(whiteFrame(vga))
	require.NoError(t, err)
	assert.Equal(t, Dropped, outcome)
	assert.Len(t, events, 1)
}

func TestRoundTrip_QR(t *testing.T) {
	for _, format := range []PixelFormat{FormatRGBx, FormatRGB} {
		t.Run(format.String(), func(t *testing.T) {
			g := Geometry{Width: 320, Height: 240, Format: format}
			enc := NewEncoder(EncoderConfig{Prefix: "f:"})
			sc := NewScanner(ScannerConfig{PrefixFilter: "f:"})
			require.NoError(t, enc.Configure(g))
			require.NoError(t, sc.Configure(g))

			for i := 0; i < 3; i++ {
				frame := whiteFrame(g)
				id, err := enc.EncodeInto(frame)
				require.NoError(t, err)

				outcome, payload, err := sc.Scan(frame)
				require.NoError(t, err)
				assert.Equal(t, Found, outcome)
				assert.Equal(t, id.String(), payload)
			}
		})
	}
}

func TestRoundTrip_PrefixMismatchDropped(t *testing.T) {
	g := Geometry{Width: 320, Height: 240, Format: FormatRGBx}
	enc := NewEncoder(EncoderConfig{Prefix: "s:"})
	sc := NewScanner(ScannerConfig{PrefixFilter: "f:"})
	require.NoError(t, enc.Configure(g))
	require.NoError(t, sc.Configure(g))

	frame := whiteFrame(g)
	_, err := enc.EncodeInto(frame)
	require.NoError(t, err)

	outcome, payload, err := sc.Scan(frame)
	require.NoError(t, err)
	assert.Equal(t, Dropped, outcome)
	assert.Empty(t, payload)
}
