package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Crop trims pixels from each edge before raw frames are written.
type Crop struct {
	Left   int `yaml:"left" json:"left"`
	Top    int `yaml:"top" json:"top"`
	Right  int `yaml:"right" json:"right"`
	Bottom int `yaml:"bottom" json:"bottom"`
}

// IsZero reports whether nothing is cropped.
func (c Crop) IsZero() bool {
	return c == Crop{}
}

// Sink is an appsrc-fed pipeline that writes pushed frames to a file.
type Sink struct {
	name     string
	caps     string
	Pipeline *gst.Pipeline
	AppSrc   *app.Source

	started atomic.Bool
	pushed  atomic.Uint64
	onError ErrorObserver
}

// NewEncodeSink writes H.264 in MP4.
//
//	appsrc → videoconvert → capsfilter(I420) → x264enc → mp4mux → filesink
func NewEncodeSink(path string, info VideoInfo, onError ErrorObserver) (*Sink, error) {
	s, err := newSink("encode", info, onError)
	if err != nil {
		return nil, err
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create videoconvert: %w", err)
	}
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(RawVideoCaps("I420", 0, 0, 0)))
	encoder, err := gst.NewElement("x264enc")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create x264enc: %w", err)
	}
	mux, err := gst.NewElement("mp4mux")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create mp4mux: %w", err)
	}
	filesink, err := gst.NewElement("filesink")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create filesink: %w", err)
	}
	filesink.SetProperty("location", path)

	s.Pipeline.AddMany(s.AppSrc.Element, convert, capsfilter, encoder, mux, filesink)
	if err := gst.ElementLinkMany(s.AppSrc.Element, convert, capsfilter, encoder, mux, filesink); err != nil {
		return nil, fmt.Errorf("pipeline: failed to link encode sink: %w", err)
	}

	slog.Debug("pipeline: encode sink created", "path", path, "caps", s.caps)
	return s, nil
}

// NewRawSink writes cropped planar I420 frames back to back.
//
//	appsrc → videocrop → videoconvert → capsfilter(I420) → filesink
func NewRawSink(path string, info VideoInfo, crop Crop, onError ErrorObserver) (*Sink, error) {
	if crop.Left+crop.Right >= info.Width || crop.Top+crop.Bottom >= info.Height {
		return nil, fmt.Errorf("pipeline: crop %+v leaves nothing of %dx%d", crop, info.Width, info.Height)
	}

	s, err := newSink("raw", info, onError)
	if err != nil {
		return nil, err
	}

	cropper, err := gst.NewElement("videocrop")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create videocrop: %w", err)
	}
	cropper.SetProperty("left", crop.Left)
	cropper.SetProperty("top", crop.Top)
	cropper.SetProperty("right", crop.Right)
	cropper.SetProperty("bottom", crop.Bottom)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create videoconvert: %w", err)
	}
	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(RawVideoCaps("I420", 0, 0, 0)))

	filesink, err := gst.NewElement("filesink")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create filesink: %w", err)
	}
	filesink.SetProperty("location", path)

	s.Pipeline.AddMany(s.AppSrc.Element, cropper, convert, capsfilter, filesink)
	if err := gst.ElementLinkMany(s.AppSrc.Element, cropper, convert, capsfilter, filesink); err != nil {
		return nil, fmt.Errorf("pipeline: failed to link raw sink: %w", err)
	}

	slog.Debug("pipeline: raw sink created", "path", path, "crop", crop)
	return s, nil
}

func newSink(name string, info VideoInfo, onError ErrorObserver) (*Sink, error) {
	Init()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create pipeline: %w", err)
	}

	src, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create appsrc: %w", err)
	}

	fps := 0
	if info.FPSDen == 1 {
		fps = info.FPSNum
	}
	format := info.Format
	if format == "" {
		format = DefaultFormat
	}
	caps := RawVideoCaps(format, info.Width, info.Height, fps)
	src.SetCaps(gst.NewCapsFromString(caps))
	src.SetProperty("format", gst.FormatTime)
	src.SetProperty("block", true)

	return &Sink{
		name:     name,
		caps:     caps,
		Pipeline: pipeline,
		AppSrc:   src,
		onError:  onError,
	}, nil
}

// Start sets the sink playing.
func (s *Sink) Start() error {
	if err := s.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("pipeline: failed to start %s sink: %w", s.name, err)
	}
	s.started.Store(true)
	return nil
}

// Pushed returns the number of frames accepted by Push.
func (s *Sink) Pushed() uint64 {
	return s.pushed.Load()
}

// Push queues one frame. data is not retained after the call.
func (s *Sink) Push(data []byte, pts, duration time.Duration) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	buffer := gst.NewBufferFromBytes(buf)
	buffer.SetPresentationTimestamp(pts)
	if duration > 0 {
		buffer.SetDuration(duration)
	}

	if ret := s.AppSrc.PushBuffer(buffer); ret != gst.FlowOK {
		return fmt.Errorf("pipeline: %s sink refused buffer: %v", s.name, ret)
	}
	s.pushed.Add(1)
	return nil
}

// Close sends end of stream, waits for the file to be finalised and tears
// the pipeline down.
func (s *Sink) Close(ctx context.Context) error {
	if !s.started.Load() {
		s.Pipeline.SetState(gst.StateNull)
		return nil
	}

	s.AppSrc.EndStream()
	err := MonitorPipelineBus(ctx, s.Pipeline, s.name+"-sink", s.onError)

	if stopErr := s.Pipeline.SetState(gst.StateNull); stopErr != nil {
		slog.Warn("pipeline: failed to stop sink", "pipeline", s.name, "error", stopErr)
	}
	s.started.Store(false)

	if err != nil {
		return fmt.Errorf("pipeline: %s sink: %w", s.name, err)
	}
	slog.Debug("pipeline: sink closed", "pipeline", s.name, "frames", s.Pushed())
	return nil
}

// Abort tears the pipeline down without finalising the output.
func (s *Sink) Abort() {
	s.Pipeline.SetState(gst.StateNull)
	s.started.Store(false)
}
