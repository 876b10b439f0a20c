package align

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/waltznetworks/video-align/frameid"
	"github.com/waltznetworks/video-align/internal/cadence"
	"github.com/waltznetworks/video-align/internal/eventbus"
	"github.com/waltznetworks/video-align/internal/metrics"
	"github.com/waltznetworks/video-align/internal/pipeline"
	"github.com/waltznetworks/video-align/match"
)

// Session roles, used in events, metrics and the report.
const (
	RoleReference = "reference"
	RoleCapture   = "capture"
)

// frameWriter receives accepted frames.
type frameWriter interface {
	Start() error
	Push(data []byte, pts, duration time.Duration) error
	Pushed() uint64
	Close(ctx context.Context) error
	Abort()
}

// openWriter creates a writer once the first accepted frame shows the
// negotiated caps.
type openWriter func(info pipeline.VideoInfo) (frameWriter, error)

// session scans the frames of one source and feeds a reducer. All methods
// except stats run on the streaming thread.
type session struct {
	id      string
	role    string
	uri     string
	reducer match.Reducer
	filter  *frameid.Filter
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	cadence cadence.Recorder

	open   openWriter
	output string

	frames  atomic.Uint64
	found   atomic.Uint64
	dropped atomic.Uint64

	mu       sync.Mutex
	geometry frameid.Geometry
	current  pipeline.Sample
	verdict  match.Verdict
	writer   frameWriter
}

func newSession(role, uri string, cfg Config, reducer match.Reducer) *session {
	s := &session{
		id:      uuid.NewString(),
		role:    role,
		uri:     uri,
		reducer: reducer,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
	}
	scanner := frameid.NewScanner(frameid.ScannerConfig{
		Region:    cfg.Region,
		Intensity: cfg.Intensity,
		Symbols:   cfg.Symbols,
	})
	s.filter = frameid.NewFilter(scanner, s)
	return s
}

// handle processes one decoded frame. Codec errors are fatal for the session.
func (s *session) handle(sample pipeline.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames.Add(1)
	s.cadence.Add(sample.PTS)

	g, err := sample.Info.Geometry()
	if err != nil {
		return fmt.Errorf("align: %s frame %d: %w", s.role, sample.Index, err)
	}
	if g != s.geometry {
		if err := s.filter.Configure(g); err != nil {
			return fmt.Errorf("align: %s: %w", s.role, err)
		}
		slog.Info("align: stream negotiated", "role", s.role, "session", s.id, "geometry", g.String())
		s.geometry = g
	}

	s.current = sample
	s.verdict = match.VerdictIgnored

	start := time.Now()
	outcome, _, err := s.filter.Process(frameid.Frame{Data: sample.Data})
	s.metrics.ObserveScan(s.role, outcome.String(), time.Since(start))
	if err != nil {
		s.metrics.CodecError("scan")
		return fmt.Errorf("align: %s frame %d: %w", s.role, sample.Index, err)
	}

	if outcome == frameid.Dropped {
		s.dropped.Add(1)
		return nil
	}
	s.found.Add(1)

	if !s.verdict.Keep() || s.open == nil {
		return nil
	}
	return s.write(sample)
}

// OnFound runs synchronously inside Process, before the frame is forwarded.
func (s *session) OnFound(ev frameid.Event) {
	s.verdict = s.reducer.Observe(ev.Payload)
	s.metrics.ObserveVerdict(s.role, s.verdict.String())

	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		ID:        uuid.NewString(),
		Name:      ev.Name,
		Session:   s.id,
		Role:      s.role,
		Frame:     s.current.Index,
		PTS:       s.current.PTS,
		Payload:   ev.Payload,
		Verdict:   s.verdict.String(),
		Timestamp: time.Now(),
	})
}

func (s *session) write(sample pipeline.Sample) error {
	if s.writer == nil {
		w, err := s.open(sample.Info)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			w.Abort()
			return err
		}
		s.writer = w
		slog.Info("align: writing accepted frames", "role", s.role, "path", s.output)
	}
	return s.writer.Push(sample.Data, sample.PTS, sample.Duration)
}

// close finalises the output, if any. With a failed session the output is
// abandoned.
func (s *session) close(ctx context.Context, failed bool) error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	if failed {
		w.Abort()
		return nil
	}
	return w.Close(ctx)
}

func (s *session) stats(elapsed time.Duration) SessionStats {
	st := SessionStats{
		ID:       s.id,
		Role:     s.role,
		URI:      s.uri,
		Frames:   s.frames.Load(),
		Found:    s.found.Load(),
		Dropped:  s.dropped.Load(),
		Verdicts: s.reducer.Stats(),
		Cadence:  s.cadence.Stats(),
		Elapsed:  elapsed,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		st.Output = s.output
		st.Written = s.writer.Pushed()
	}
	return st
}

// run plays the source to end of stream.
func (s *session) run(ctx context.Context, cfg Config) (SessionStats, error) {
	start := time.Now()
	slog.Info("align: session started", "role", s.role, "session", s.id, "uri", s.uri)

	src, err := pipeline.NewSource(pipeline.SourceConfig{
		Name:   s.role,
		URI:    s.uri,
		Format: pipeline.DefaultFormat,
		OnError: func(category pipeline.ErrorCategory) {
			s.metrics.PipelineError(s.role, category.String())
		},
	}, s.handle)
	if err != nil {
		return s.stats(time.Since(start)), err
	}

	runErr := src.Run(ctx, cfg.Retry)
	closeErr := s.close(ctx, runErr != nil)
	stats := s.stats(time.Since(start))

	if fps := stats.Cadence; fps != nil {
		s.metrics.SetSessionFPS(s.role, fps.FPSMean)
	}
	if err := errors.Join(runErr, closeErr); err != nil {
		return stats, err
	}

	slog.Info("align: session finished",
		"role", s.role,
		"session", s.id,
		"frames", stats.Frames,
		"found", stats.Found,
		"accepted", stats.Verdicts.Accepted,
		"duplicate", stats.Verdicts.Duplicate,
		"unexpected", stats.Verdicts.Unexpected,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}
