package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoCaps(t *testing.T) {
	tests := []struct {
		name string
		caps string
		want VideoInfo
	}{
		{
			name: "typed fields",
			caps: "video/x-raw, format=(string)RGBx, width=(int)640, height=(int)480, interlace-mode=(string)progressive, pixel-aspect-ratio=(fraction)1/1, framerate=(fraction)24/1",
			want: VideoInfo{MediaType: "video/x-raw", Format: "RGBx", Width: 640, Height: 480, FPSNum: 24, FPSDen: 1},
		},
		{
			name: "untyped fields",
			caps: "video/x-raw,format=RGB,width=1280,height=720,framerate=30000/1001",
			want: VideoInfo{MediaType: "video/x-raw", Format: "RGB", Width: 1280, Height: 720, FPSNum: 30000, FPSDen: 1001},
		},
		{
			name: "no framerate",
			caps: "video/x-raw, format=(string)RGBx, width=(int)2, height=(int)2",
			want: VideoInfo{MediaType: "video/x-raw", Format: "RGBx", Width: 2, Height: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoCaps(tt.caps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVideoCaps_Errors(t *testing.T) {
	for _, caps := range []string{
		"audio/x-raw, rate=(int)48000",
		"video/x-raw, format=(string)RGBx",
		"video/x-raw, width=(int)abc, height=(int)2",
	} {
		_, err := ParseVideoCaps(caps)
		assert.Error(t, err, caps)
	}
}

func TestFrameDuration(t *testing.T) {
	assert.Equal(t, time.Second/24, VideoInfo{FPSNum: 24, FPSDen: 1}.FrameDuration())
	assert.Equal(t, time.Duration(0), VideoInfo{}.FrameDuration())
}

func TestRawVideoCaps(t *testing.T) {
	assert.Equal(t, "video/x-raw,format=RGBx,width=1280,height=720,framerate=24/1", RawVideoCaps("RGBx", 1280, 720, 24))
	assert.Equal(t, "video/x-raw,format=I420", RawVideoCaps("I420", 0, 0, 0))
}
