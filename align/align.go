package align

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waltznetworks/video-align/frameid"
	"github.com/waltznetworks/video-align/internal/eventbus"
	"github.com/waltznetworks/video-align/internal/metrics"
	"github.com/waltznetworks/video-align/internal/pipeline"
	"github.com/waltznetworks/video-align/match"
)

// Config describes one correlation run.
type Config struct {
	// Reference and Capture are file paths or URIs.
	Reference string
	Capture   string
	// Marker selects the codes that take part in matching (default "f:").
	Marker string
	// Region and Intensity configure identifier reading in both sessions.
	Region    frameid.Region
	Intensity frameid.IntensityPolicy
	// WriteFrames writes accepted frames as raw I420 next to each local
	// input, at <path>.I420, cropped by Crop.
	WriteFrames bool
	Crop        pipeline.Crop
	Retry       pipeline.RetryConfig

	// Registry receives the reference codes; nil creates a private one.
	Registry *match.Registry
	// Bus, when set, receives one event per found frame.
	Bus     *eventbus.Bus
	Metrics *metrics.Metrics
	// Symbols overrides the QR reader.
	Symbols frameid.SymbolDecoder
}

// Run decodes the reference to end of stream, then the capture, and
// reconciles the two. On a session failure the partial report is returned
// along with the error.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	refURI, refPath, err := pipeline.ResolveURI(cfg.Reference)
	if err != nil {
		return nil, fmt.Errorf("align: reference: %w", err)
	}
	capURI, capPath, err := pipeline.ResolveURI(cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("align: capture: %w", err)
	}
	if cfg.Retry == (pipeline.RetryConfig{}) {
		cfg.Retry = pipeline.DefaultRetryConfig()
	}

	matcher := match.NewMatcher(cfg.Marker, cfg.Registry)
	report := &Report{Marker: matcher.Marker()}

	ref := newSession(RoleReference, refURI, cfg, matcher.Reference())
	report.ReferenceID = ref.id
	if err := attachWriter(ref, cfg, refPath); err != nil {
		return report, err
	}

	report.Reference, err = ref.run(ctx, cfg)
	if err != nil {
		return report, fmt.Errorf("align: reference session: %w", err)
	}
	cfg.Metrics.SetCodes(RoleReference, int(matcher.Reference().Stats().Accepted))

	capture, err := matcher.BeginCapture()
	if err != nil {
		return report, fmt.Errorf("align: %w", err)
	}

	capt := newSession(RoleCapture, capURI, cfg, capture)
	report.CaptureID = capt.id
	if err := attachWriter(capt, cfg, capPath); err != nil {
		return report, err
	}

	report.Capture, err = capt.run(ctx, cfg)
	if err != nil {
		return report, fmt.Errorf("align: capture session: %w", err)
	}

	report.Result = matcher.Result()
	cfg.Metrics.SetCodes("missing", len(report.Result.MissingFromCapture))

	slog.Info("align: reconciled",
		"matched", len(report.Result.Matched),
		"missing_from_capture", len(report.Result.MissingFromCapture),
		"missing_from_reference", len(report.Result.MissingFromReference),
	)
	return report, nil
}

func attachWriter(s *session, cfg Config, path string) error {
	if !cfg.WriteFrames {
		return nil
	}
	if path == "" {
		return fmt.Errorf("align: %s: frames can only be written for local files, got %s", s.role, s.uri)
	}

	s.output = path + ".I420"
	s.open = func(info pipeline.VideoInfo) (frameWriter, error) {
		return pipeline.NewRawSink(s.output, info, cfg.Crop, func(category pipeline.ErrorCategory) {
			cfg.Metrics.PipelineError(s.role+"-output", category.String())
		})
	}
	return nil
}
