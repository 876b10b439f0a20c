package frameid

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion_Rect(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		want   image.Rectangle
	}{
		{"top-left", Region{Anchor: TopLeft, Width: 100, Height: 100}, image.Rect(0, 0, 100, 100)},
		{"top-right", Region{Anchor: TopRight, Width: 100, Height: 100}, image.Rect(540, 0, 640, 100)},
		{"bottom-left", Region{Anchor: BottomLeft, Width: 100, Height: 100}, image.Rect(0, 380, 100, 480)},
		{"bottom-right", Region{Anchor: BottomRight, Width: 100, Height: 100}, image.Rect(540, 380, 640, 480)},
		{"zero means full", Region{Anchor: BottomRight}, image.Rect(0, 0, 640, 480)},
		{"full width strip", Region{Anchor: BottomLeft, Height: 50}, image.Rect(0, 430, 640, 480)},
		{"oversize clamped", Region{Anchor: TopRight, Width: 1000, Height: 10}, image.Rect(0, 0, 640, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.region.Rect(vga))
		})
	}
}

func TestRegion_Validate(t *testing.T) {
	assert.NoError(t, Region{Width: 640, Height: 480}.Validate(vga))
	assert.NoError(t, Region{}.Validate(vga))
	assert.ErrorIs(t, Region{Width: 641}.Validate(vga), ErrRegionOutOfBounds)
	assert.ErrorIs(t, Region{Height: -1}.Validate(vga), ErrRegionOutOfBounds)
}

func TestParseAnchor(t *testing.T) {
	tests := []struct {
		in   string
		want Anchor
		err  bool
	}{
		{"", TopLeft, false},
		{"top-left", TopLeft, false},
		{"TOP_RIGHT", TopRight, false},
		{"bottom-left", BottomLeft, false},
		{" bottom-right ", BottomRight, false},
		{"middle", TopLeft, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAnchor(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize(t *testing.T) {
	w, h, err := ParseSize("200x100")
	require.NoError(t, err)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)

	w, h, err = ParseSize("")
	require.NoError(t, err)
	assert.Zero(t, w)
	assert.Zero(t, h)

	for _, bad := range []string{"200", "ax1", "1x-2"} {
		_, _, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestIntensity(t *testing.T) {
	g := Geometry{Width: 2, Height: 1, Format: FormatRGBx}
	data := []byte{
		2, 2, 2, 0xff,
		100, 101, 102, 0,
	}
	rect := image.Rect(0, 0, 2, 1)

	perChannel := Intensity(data, g, rect, IntensityPerChannel)
	assert.Equal(t, []uint8{0, 33 + 33 + 34}, perChannel.Pix)

	sum := Intensity(data, g, rect, IntensitySumThenDivide)
	assert.Equal(t, []uint8{2, 101}, sum.Pix)
}

func TestParseIntensityPolicy(t *testing.T) {
	p, err := ParseIntensityPolicy("")
	require.NoError(t, err)
	assert.Equal(t, IntensityPerChannel, p)

	p, err = ParseIntensityPolicy("sum")
	require.NoError(t, err)
	assert.Equal(t, IntensitySumThenDivide, p)

	_, err = ParseIntensityPolicy("luma")
	assert.Error(t, err)
}
