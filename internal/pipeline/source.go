package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// DefaultFormat is the raw layout handed to the frame codec.
const DefaultFormat = "RGBx"

var initOnce sync.Once

// Init initializes GStreamer once per process.
func Init() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

// Available reports whether GStreamer and the given element factories can be
// instantiated.
func Available(factories ...string) error {
	Init()

	if len(factories) == 0 {
		factories = []string{"fakesrc"}
	}
	for _, f := range factories {
		elem, err := gst.NewElement(f)
		if err != nil {
			return fmt.Errorf("%w: element %s: %v", ErrGStreamerUnavailable, f, err)
		}
		elem.SetState(gst.StateNull)
	}
	return nil
}

// SourceConfig describes a decoding source.
//
// Pipeline structure:
//
//	uridecodebin | videotestsrc → videoconvert → videoscale → videorate →
//	capsfilter → appsink
type SourceConfig struct {
	Name string
	// URI is decoded with uridecodebin. When empty a test pattern is used.
	URI string
	// TestFrames is the number of test pattern frames (URI == "").
	TestFrames int
	// Pattern is the videotestsrc pattern number (0 = smpte bars).
	Pattern int
	// Format is the raw output format (default RGBx).
	Format string
	// Width, Height and FPS normalise the output; 0 keeps the source value.
	Width  int
	Height int
	FPS    int
	// OnError is told the category of each pipeline error.
	OnError ErrorObserver
}

// Source is a decoding pipeline that delivers every frame to a handler.
type Source struct {
	cfg SourceConfig

	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	Input      *gst.Element
	Convert    *gst.Element
	CapsFilter *gst.Element

	frames    atomic.Uint64
	callbacks *CallbackContext
}

// NewSource builds the pipeline in the NULL state.
func NewSource(cfg SourceConfig, handler SampleHandler) (*Source, error) {
	if handler == nil {
		return nil, fmt.Errorf("pipeline: sample handler is required")
	}
	if cfg.URI == "" && cfg.TestFrames <= 0 {
		return nil, fmt.Errorf("pipeline: source needs a URI or a test frame count")
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.Name == "" {
		cfg.Name = "source"
	}

	Init()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create pipeline: %w", err)
	}

	var input *gst.Element
	if cfg.URI != "" {
		input, err = gst.NewElement("uridecodebin")
		if err != nil {
			return nil, fmt.Errorf("pipeline: failed to create uridecodebin: %w", err)
		}
		input.SetProperty("uri", cfg.URI)
	} else {
		input, err = gst.NewElement("videotestsrc")
		if err != nil {
			return nil, fmt.Errorf("pipeline: failed to create videotestsrc: %w", err)
		}
		input.SetProperty("num-buffers", cfg.TestFrames)
		input.SetProperty("pattern", cfg.Pattern)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create videoscale: %w", err)
	}
	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create videorate: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create capsfilter: %w", err)
	}
	capsStr := RawVideoCaps(cfg.Format, cfg.Width, cfg.Height, cfg.FPS)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create appsink: %w", err)
	}
	// Every frame carries an identifier, so the sink blocks instead of dropping.
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 4)
	appsink.SetProperty("drop", false)

	pipeline.AddMany(input, convert, scale, rate, capsfilter, appsink.Element)

	if cfg.URI != "" {
		if err := gst.ElementLinkMany(convert, scale, rate, capsfilter, appsink.Element); err != nil {
			return nil, fmt.Errorf("pipeline: failed to link source elements: %w", err)
		}
		input.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
			OnPadAdded(srcPad, convert)
		})
	} else {
		if err := gst.ElementLinkMany(input, convert, scale, rate, capsfilter, appsink.Element); err != nil {
			return nil, fmt.Errorf("pipeline: failed to link source elements: %w", err)
		}
	}

	s := &Source{
		cfg:        cfg,
		Pipeline:   pipeline,
		AppSink:    appsink,
		Input:      input,
		Convert:    convert,
		CapsFilter: capsfilter,
	}
	s.callbacks = &CallbackContext{
		Name:    cfg.Name,
		Handler: handler,
		Frames:  &s.frames,
	}
	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return OnNewSample(sink, s.callbacks)
		},
	})

	slog.Debug("pipeline: source created",
		"pipeline", cfg.Name,
		"uri", cfg.URI,
		"test_frames", cfg.TestFrames,
		"caps", capsStr,
	)
	return s, nil
}

// Frames returns the number of frames handed to the handler.
func (s *Source) Frames() uint64 {
	return s.frames.Load()
}

// Run plays the source to end of stream. Failures before the first frame are
// retried per retry; once frames have flowed any failure is final, since a
// restart would replay identifiers already processed.
func (s *Source) Run(ctx context.Context, retry RetryConfig) error {
	state := &RetryState{}
	err := RunWithRetry(ctx, func(ctx context.Context) error {
		err := s.runOnce(ctx)
		if err == nil {
			return nil
		}
		if s.Frames() > 0 || ctx.Err() != nil || s.callbacks.Err() != nil {
			return Permanent(err)
		}
		return err
	}, retry, state)

	if state.Retries > 0 {
		slog.Info("pipeline: source retried", "pipeline", s.cfg.Name, "retries", state.Retries)
	}
	return err
}

func (s *Source) runOnce(ctx context.Context) error {
	s.callbacks.reset()

	if err := s.Pipeline.SetState(gst.StatePlaying); err != nil {
		s.Pipeline.SetState(gst.StateNull)
		return fmt.Errorf("pipeline: failed to start %s: %w", s.cfg.Name, err)
	}

	err := MonitorPipelineBus(ctx, s.Pipeline, s.cfg.Name, s.cfg.OnError)

	if stopErr := s.Pipeline.SetState(gst.StateNull); stopErr != nil {
		slog.Warn("pipeline: failed to stop", "pipeline", s.cfg.Name, "error", stopErr)
	}

	// A handler failure surfaces on the bus as a generic flow error.
	if herr := s.callbacks.Err(); herr != nil {
		return herr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline: %s: %w", s.cfg.Name, err)
	}
	return err
}
