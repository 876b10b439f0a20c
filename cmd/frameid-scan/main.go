// Command frameid-scan reads frame identifiers out of a video and prints
// one line per frame whose identifier passes the prefix filter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/waltznetworks/video-align/frameid"
	"github.com/waltznetworks/video-align/internal/config"
	"github.com/waltznetworks/video-align/internal/eventbus"
	"github.com/waltznetworks/video-align/internal/metrics"
	"github.com/waltznetworks/video-align/internal/pipeline"
)

const version = "v0.1.0"

type options struct {
	uri        string
	dumpDir    string
	dumpFrames int
	progress   time.Duration
}

func main() {
	cfg, opts := parseFlags()

	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("frameid-scan: interrupted")
			return
		}
		slog.Error("frameid-scan: failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() (*config.Config, options) {
	var opts options
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	flag.StringVar(&opts.uri, "uri", "", "Video to scan (path or URI)")
	flag.StringVar(&opts.dumpDir, "dump", "", "Write the scanned intensity image of the first frames as PNG to this directory")
	flag.IntVar(&opts.dumpFrames, "dump-frames", 10, "Number of frames written with -dump")
	flag.DurationVar(&opts.progress, "progress", 5*time.Second, "Interval of progress log lines (0 disables)")

	prefix := flag.String("prefix", "", "Only report identifiers with this prefix")
	anchor := flag.String("anchor", "", "Scan region corner: top-left, top-right, bottom-left, bottom-right")
	region := flag.String("region", "", "Scan region size WxH (default: full frame)")
	intensity := flag.String("intensity", "", "RGB reduction: per-channel or sum")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println("frameid-scan", version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "prefix":
			cfg.Scan.Prefix = *prefix
		case "anchor":
			cfg.Scan.Anchor = *anchor
		case "region":
			cfg.Scan.Region = *region
		case "intensity":
			cfg.Scan.Intensity = *intensity
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "debug":
			if *debug {
				cfg.Log.Level = "debug"
			}
		case "log-json":
			if *logJSON {
				cfg.Log.Format = "json"
			}
		}
	})

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.uri == "" {
		fmt.Fprintf(os.Stderr, "Error: -uri is required\n")
		flag.Usage()
		os.Exit(1)
	}

	return cfg, opts
}

// scan holds per-run state shared with the streaming thread.
type scan struct {
	id      string
	filter  *frameid.Filter
	bus     *eventbus.Bus
	metrics *metrics.Metrics
	opts    options

	frames   atomic.Uint64
	found    atomic.Uint64
	geometry frameid.Geometry
	current  pipeline.Sample
}

func (s *scan) OnFound(ev frameid.Event) {
	s.found.Add(1)
	fmt.Printf("%d\t%s\t%s\n", s.current.Index, s.current.PTS, ev.Payload)
	s.bus.Publish(eventbus.Event{
		ID:        uuid.NewString(),
		Name:      ev.Name,
		Session:   s.id,
		Role:      "scan",
		Frame:     s.current.Index,
		PTS:       s.current.PTS,
		Payload:   ev.Payload,
		Timestamp: time.Now(),
	})
}

func (s *scan) handle(sample pipeline.Sample) error {
	s.frames.Add(1)

	g, err := sample.Info.Geometry()
	if err != nil {
		return err
	}
	if g != s.geometry {
		if err := s.filter.Configure(g); err != nil {
			return err
		}
		s.geometry = g
		rect, _ := s.filter.ActiveRect()
		slog.Info("frameid-scan: stream negotiated", "geometry", g.String(), "scan_rect", rect.String())
	}

	frame := frameid.Frame{Data: sample.Data, ReadOnly: true}
	if s.opts.dumpDir != "" && sample.Index < uint64(s.opts.dumpFrames) {
		if err := s.dump(frame, sample.Index); err != nil {
			return err
		}
	}

	s.current = sample
	start := time.Now()
	outcome, _, err := s.filter.Process(frame)
	s.metrics.ObserveScan("scan", outcome.String(), time.Since(start))
	if err != nil {
		s.metrics.CodecError("scan")
	}
	return err
}

func (s *scan) dump(frame frameid.Frame, index uint64) error {
	img, err := s.filter.Extract(frame)
	if err != nil {
		return err
	}
	path := filepath.Join(s.opts.dumpDir, fmt.Sprintf("frame-%06d.png", index))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frameid-scan: dump: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("frameid-scan: dump %s: %w", path, err)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	region, err := cfg.Scan.ScanRegion()
	if err != nil {
		return err
	}
	policy, err := cfg.Scan.IntensityPolicy()
	if err != nil {
		return err
	}
	uri, _, err := pipeline.ResolveURI(opts.uri)
	if err != nil {
		return err
	}
	if opts.dumpDir != "" {
		if err := os.MkdirAll(opts.dumpDir, 0o755); err != nil {
			return fmt.Errorf("frameid-scan: dump dir: %w", err)
		}
	}
	initial, maxDelay := cfg.Retry.Delays()

	m, err := metrics.New()
	if err != nil {
		return err
	}
	bus := eventbus.New()
	defer bus.Close()

	s := &scan{id: uuid.NewString(), bus: bus, metrics: m, opts: opts}
	s.filter = frameid.NewFilter(frameid.NewScanner(frameid.ScannerConfig{
		PrefixFilter: cfg.Scan.Prefix,
		Region:       region,
		Intensity:    policy,
	}), s)

	src, err := pipeline.NewSource(pipeline.SourceConfig{
		Name:   "scan",
		URI:    uri,
		Format: pipeline.DefaultFormat,
		OnError: func(category pipeline.ErrorCategory) {
			m.PipelineError("scan", category.String())
		},
	}, s.handle)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	workCtx, done := context.WithCancel(gctx)
	defer done()

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return m.Serve(workCtx, cfg.Metrics.Addr)
		})
	}
	if opts.progress > 0 {
		latest, err := bus.SubscribeLatest("progress")
		if err != nil {
			return err
		}
		g.Go(func() error {
			reportProgress(workCtx, s, latest, opts.progress)
			return nil
		})
	}

	start := time.Now()
	g.Go(func() error {
		defer done()
		return src.Run(workCtx, pipeline.RetryConfig{
			MaxRetries:    cfg.Retry.MaxRetries,
			RetryDelay:    initial,
			MaxRetryDelay: maxDelay,
		})
	})

	err = g.Wait()
	frames, found := s.frames.Load(), s.found.Load()
	slog.Info("frameid-scan: finished",
		"session", s.id,
		"frames", frames,
		"found", found,
		"dropped", frames-found,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return err
}

func reportProgress(ctx context.Context, s *scan, latest eventbus.Receiver, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer latest.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attrs := []any{"frames", s.frames.Load(), "found", s.found.Load()}
			if ev, ok := latest.TryReceive(); ok {
				attrs = append(attrs, "latest", ev.Payload, "latest_frame", ev.Frame)
			}
			slog.Info("frameid-scan: progress", attrs...)
		}
	}
}
