// Package prepare produces a tagged reference recording: every frame of the
// input carries a QR identifier, framed by lead and tail test pattern
// segments with their own prefixes so the body can be told apart.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/waltznetworks/video-align/frameid"
	"github.com/waltznetworks/video-align/internal/metrics"
	"github.com/waltznetworks/video-align/internal/pipeline"
)

// Config describes one tagging run.
type Config struct {
	// Input is a file path or URI.
	Input string
	// Output is the MP4 file to write.
	Output string

	Width  int
	Height int
	FPS    int

	LeadFrames  int
	TailFrames  int
	StartPrefix string
	FramePrefix string
	EndPrefix   string

	Retry   pipeline.RetryConfig
	Metrics *metrics.Metrics
	// Symbols overrides the QR renderer.
	Symbols frameid.SymbolEncoder
}

// SegmentSummary describes one tagged segment of the output.
type SegmentSummary struct {
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
	Frames uint64 `json:"frames"`
	First  string `json:"first,omitempty"`
	Last   string `json:"last,omitempty"`
}

// Summary is the outcome of a tagging run.
type Summary struct {
	SessionID string           `json:"session_id"`
	Output    string           `json:"output"`
	Segments  []SegmentSummary `json:"segments"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Frames is the total number of frames written.
func (s *Summary) Frames() uint64 {
	var n uint64
	for _, seg := range s.Segments {
		n += seg.Frames
	}
	return n
}

type segment struct {
	name       string
	prefix     string
	uri        string
	testFrames int
}

func (c Config) segments(uri string) []segment {
	var segs []segment
	if c.LeadFrames > 0 {
		segs = append(segs, segment{name: "lead", prefix: c.StartPrefix, testFrames: c.LeadFrames})
	}
	segs = append(segs, segment{name: "body", prefix: c.FramePrefix, uri: uri})
	if c.TailFrames > 0 {
		segs = append(segs, segment{name: "tail", prefix: c.EndPrefix, testFrames: c.TailFrames})
	}
	return segs
}

func (c Config) validate() error {
	if c.Output == "" {
		return fmt.Errorf("prepare: output path is required")
	}
	if c.Width <= 0 || c.Height <= 0 || c.FPS <= 0 {
		return fmt.Errorf("prepare: output must have a size and frame rate, got %dx%d@%d", c.Width, c.Height, c.FPS)
	}
	if c.FramePrefix == c.StartPrefix || c.FramePrefix == c.EndPrefix {
		return fmt.Errorf("prepare: frame prefix %q must differ from start and end prefixes", c.FramePrefix)
	}
	return nil
}

// Run writes the tagged output and reports what each segment contributed.
// On error the summary covers the segments attempted so far and a partial
// file may remain on disk.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	start := time.Now()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	uri, _, err := pipeline.ResolveURI(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("prepare: input: %w", err)
	}
	if cfg.Retry == (pipeline.RetryConfig{}) {
		cfg.Retry = pipeline.DefaultRetryConfig()
	}

	info := pipeline.VideoInfo{
		Format: pipeline.DefaultFormat,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPSNum: cfg.FPS,
		FPSDen: 1,
	}
	sink, err := pipeline.NewEncodeSink(cfg.Output, info, func(category pipeline.ErrorCategory) {
		cfg.Metrics.PipelineError("encode", category.String())
	})
	if err != nil {
		return nil, err
	}
	if err := sink.Start(); err != nil {
		sink.Abort()
		return nil, err
	}

	summary := &Summary{SessionID: uuid.NewString(), Output: cfg.Output}
	st := newStamper(cfg, sink, info.FrameDuration())

	slog.Info("prepare: started", "session", summary.SessionID, "input", uri, "output", cfg.Output)

	for _, seg := range cfg.segments(uri) {
		segSummary, err := st.run(ctx, seg)
		summary.Segments = append(summary.Segments, segSummary)
		if err != nil {
			sink.Abort()
			return summary, fmt.Errorf("prepare: %s segment: %w", seg.name, err)
		}
	}

	if err := sink.Close(ctx); err != nil {
		return summary, err
	}
	summary.Elapsed = time.Since(start)

	slog.Info("prepare: finished",
		"session", summary.SessionID,
		"frames", summary.Frames(),
		"elapsed", summary.Elapsed,
	)
	return summary, nil
}

// frameWriter receives stamped frames.
type frameWriter interface {
	Push(data []byte, pts, duration time.Duration) error
}

// stamper tags frames from consecutive segments into one writer on a single
// timeline.
type stamper struct {
	cfg      Config
	encoder  *frameid.Encoder
	out      frameWriter
	frameDur time.Duration
	written  uint64

	seg      *SegmentSummary
	geometry frameid.Geometry
}

func newStamper(cfg Config, out frameWriter, frameDur time.Duration) *stamper {
	return &stamper{
		cfg:      cfg,
		encoder:  frameid.NewEncoder(frameid.EncoderConfig{Symbols: cfg.Symbols}),
		out:      out,
		frameDur: frameDur,
	}
}

// begin starts a segment; the next frame renegotiates and restarts the
// counter.
func (s *stamper) begin(seg segment) {
	s.encoder.SetPrefix(seg.prefix)
	s.geometry = frameid.Geometry{}
	s.seg = &SegmentSummary{Name: seg.name, Prefix: seg.prefix}
}

func (s *stamper) handle(sample pipeline.Sample) error {
	g, err := sample.Info.Geometry()
	if err != nil {
		return err
	}
	if g != s.geometry {
		if err := s.encoder.Configure(g); err != nil {
			return err
		}
		s.geometry = g
	}

	start := time.Now()
	id, err := s.encoder.EncodeInto(frameid.Frame{Data: sample.Data})
	if err != nil {
		s.cfg.Metrics.CodecError("encode")
		return err
	}
	s.cfg.Metrics.ObserveEncode(id.Prefix, time.Since(start))

	pts := time.Duration(s.written) * s.frameDur
	if err := s.out.Push(sample.Data, pts, s.frameDur); err != nil {
		return err
	}
	s.written++

	if s.seg.Frames == 0 {
		s.seg.First = id.String()
	}
	s.seg.Last = id.String()
	s.seg.Frames++
	return nil
}

func (s *stamper) run(ctx context.Context, seg segment) (SegmentSummary, error) {
	s.begin(seg)

	src, err := pipeline.NewSource(pipeline.SourceConfig{
		Name:       "prepare-" + seg.name,
		URI:        seg.uri,
		TestFrames: seg.testFrames,
		Format:     pipeline.DefaultFormat,
		Width:      s.cfg.Width,
		Height:     s.cfg.Height,
		FPS:        s.cfg.FPS,
		OnError: func(category pipeline.ErrorCategory) {
			s.cfg.Metrics.PipelineError("prepare-"+seg.name, category.String())
		},
	}, s.handle)
	if err != nil {
		return *s.seg, err
	}

	err = src.Run(ctx, s.cfg.Retry)
	if err == nil && s.seg.Frames == 0 {
		err = errors.New("no frames decoded")
	}
	if err != nil {
		return *s.seg, err
	}

	slog.Info("prepare: segment tagged",
		"segment", seg.name,
		"prefix", seg.prefix,
		"frames", s.seg.Frames,
		"first", s.seg.First,
		"last", s.seg.Last,
	)
	return *s.seg, nil
}
