package align

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waltznetworks/video-align/frameid"
	"github.com/waltznetworks/video-align/internal/eventbus"
	"github.com/waltznetworks/video-align/internal/pipeline"
	"github.com/waltznetworks/video-align/match"
)

// scriptDecoder returns one scripted payload per call; "" means nothing was
// read.
type scriptDecoder struct {
	payloads []string
	calls    int
}

func (d *scriptDecoder) Decode(img *image.Gray) []frameid.Candidate {
	defer func() { d.calls++ }()
	if d.calls >= len(d.payloads) || d.payloads[d.calls] == "" {
		return nil
	}
	return []frameid.Candidate{{Text: d.payloads[d.calls]}}
}

type fakeWriter struct {
	info    pipeline.VideoInfo
	started int
	frames  []time.Duration
	closed  bool
	aborted bool
}

func (w *fakeWriter) Start() error { w.started++; return nil }
func (w *fakeWriter) Push(data []byte, pts, duration time.Duration) error {
	w.frames = append(w.frames, pts)
	return nil
}
func (w *fakeWriter) Pushed() uint64 { return uint64(len(w.frames)) }
func (w *fakeWriter) Close(ctx context.Context) error { w.closed = true; return nil }
func (w *fakeWriter) Abort() { w.aborted = true }

func sample(i int, width, height int) pipeline.Sample {
	return pipeline.Sample{
		Index:    uint64(i),
		Info:     pipeline.VideoInfo{Format: "RGBx", Width: width, Height: height, FPSNum: 24, FPSDen: 1},
		Data:     make([]byte, width*height*4),
		PTS:      time.Duration(i) * time.Second / 24,
		Duration: time.Second / 24,
	}
}

func feed(t *testing.T, s *session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, s.handle(sample(i, 16, 16)))
	}
}

func TestSession_ReferenceThenCapture(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	events := make(chan eventbus.Event, 16)
	require.NoError(t, bus.Subscribe("test", events))

	matcher := match.NewMatcher("", nil)

	ref := newSession(RoleReference, "file:///ref.mp4", Config{
		Bus:     bus,
		Symbols: &scriptDecoder{payloads: []string{"s:0", "f:0", "f:1", "f:1", "f:2", "", "e:0"}},
	}, matcher.Reference())
	feed(t, ref, 7)

	st := ref.stats(time.Second)
	assert.Equal(t, uint64(7), st.Frames)
	assert.Equal(t, uint64(6), st.Found)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, match.Stats{Accepted: 3, Duplicate: 1, Ignored: 2}, st.Verdicts)
	assert.Equal(t, 7, st.Cadence.Frames)
	assert.Empty(t, st.Output)

	capture, err := matcher.BeginCapture()
	require.NoError(t, err)
	capt := newSession(RoleCapture, "file:///cap.mp4", Config{
		Symbols: &scriptDecoder{payloads: []string{"f:0", "f:0", "f:2", "f:7"}},
	}, capture)
	feed(t, capt, 4)

	assert.Equal(t, match.Stats{Accepted: 2, Duplicate: 0, Unexpected: 2}, capt.stats(0).Verdicts)

	res := matcher.Result()
	assert.Equal(t, []string{"f:0", "f:2"}, res.Matched)
	assert.Equal(t, []string{"f:1"}, res.MissingFromCapture)
	assert.Empty(t, res.MissingFromReference)

	require.Len(t, events, 6)
	first := <-events
	assert.Equal(t, frameid.FoundEventName, first.Name)
	assert.Equal(t, ref.id, first.Session)
	assert.Equal(t, RoleReference, first.Role)
	assert.Equal(t, "s:0", first.Payload)
	assert.Equal(t, "ignored", first.Verdict)
	assert.NotEmpty(t, first.ID)

	second := <-events
	assert.Equal(t, uint64(1), second.Frame)
	assert.Equal(t, "accepted", second.Verdict)
}

func TestSession_WritesAcceptedFramesOnly(t *testing.T) {
	w := &fakeWriter{}
	matcher := match.NewMatcher("", nil)
	s := newSession(RoleReference, "file:///ref.mp4", Config{
		Symbols: &scriptDecoder{payloads: []string{"f:0", "f:0", "", "s:1", "f:1"}},
	}, matcher.Reference())
	s.output = "/ref.mp4.I420"
	s.open = func(info pipeline.VideoInfo) (frameWriter, error) {
		w.info = info
		return w, nil
	}

	feed(t, s, 5)
	require.NoError(t, s.close(context.Background(), false))

	assert.Equal(t, 1, w.started)
	assert.Equal(t, 16, w.info.Width)
	assert.Equal(t, []time.Duration{0, 4 * time.Second / 24}, w.frames)
	assert.True(t, w.closed)

	st := s.stats(0)
	assert.Equal(t, "/ref.mp4.I420", st.Output)
	assert.Equal(t, uint64(2), st.Written)
}

func TestSession_FailedSessionAbortsOutput(t *testing.T) {
	w := &fakeWriter{}
	s := newSession(RoleReference, "file:///ref.mp4", Config{
		Symbols: &scriptDecoder{payloads: []string{"f:0"}},
	}, match.NewMatcher("", nil).Reference())
	s.open = func(pipeline.VideoInfo) (frameWriter, error) { return w, nil }

	feed(t, s, 1)
	require.NoError(t, s.close(context.Background(), true))
	assert.True(t, w.aborted)
	assert.False(t, w.closed)
}

func TestSession_Renegotiation(t *testing.T) {
	s := newSession(RoleCapture, "file:///cap.mp4", Config{
		Symbols: &scriptDecoder{},
	}, match.NewMatcher("", nil).Reference())

	require.NoError(t, s.handle(sample(0, 16, 16)))
	require.NoError(t, s.handle(sample(1, 32, 8)))

	g, ok := s.filter.Geometry()
	require.True(t, ok)
	assert.Equal(t, frameid.Geometry{Width: 32, Height: 8, Format: frameid.FormatRGBx}, g)
}

func TestSession_CodecErrorsAreFatal(t *testing.T) {
	s := newSession(RoleReference, "file:///ref.mp4", Config{
		Symbols: &scriptDecoder{payloads: []string{"f:\xff"}},
	}, match.NewMatcher("", nil).Reference())

	err := s.handle(sample(0, 16, 16))
	assert.ErrorIs(t, err, frameid.ErrInvalidPayload)

	short := sample(1, 16, 16)
	short.Data = short.Data[:10]
	assert.ErrorIs(t, s.handle(short), frameid.ErrBufferNotReadable)

	bad := sample(2, 16, 16)
	bad.Info.Format = "NV12"
	assert.Error(t, s.handle(bad))
}

func TestSession_RegionTooLarge(t *testing.T) {
	s := newSession(RoleReference, "file:///ref.mp4", Config{
		Region:  frameid.Region{Anchor: frameid.BottomRight, Width: 100, Height: 100},
		Symbols: &scriptDecoder{},
	}, match.NewMatcher("", nil).Reference())

	assert.ErrorIs(t, s.handle(sample(0, 16, 16)), frameid.ErrRegionOutOfBounds)
}

func TestRun_InputErrors(t *testing.T) {
	_, err := Run(context.Background(), Config{Capture: "cap.mp4"})
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{
		Reference:   "rtsp://camera/ref",
		Capture:     "cap.mp4",
		WriteFrames: true,
	})
	assert.ErrorContains(t, err, "local files")
}
