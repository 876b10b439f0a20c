// Command frameid-prepare writes a tagged reference recording: lead test
// pattern frames tagged s:N, every input frame tagged f:N and tail test
// pattern frames tagged e:N, encoded as H.264 in MP4.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/waltznetworks/video-align/internal/config"
	"github.com/waltznetworks/video-align/internal/metrics"
	"github.com/waltznetworks/video-align/internal/pipeline"
	"github.com/waltznetworks/video-align/internal/symbol"
	"github.com/waltznetworks/video-align/prepare"
)

const version = "v0.1.0"

func main() {
	cfg, jsonOut := parseFlags()

	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("frameid-prepare: interrupted")
		} else {
			slog.Error("frameid-prepare: failed", "error", err)
		}
		os.Exit(1)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
		return
	}
	for _, seg := range summary.Segments {
		fmt.Printf("%-5s %-4s %6d frames  %s .. %s\n", seg.Name, seg.Prefix, seg.Frames, seg.First, seg.Last)
	}
	fmt.Printf("wrote %d frames to %s in %s\n", summary.Frames(), summary.Output, summary.Elapsed.Round(time.Millisecond))
}

func parseFlags() (*config.Config, bool) {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	jsonOut := flag.Bool("json", false, "Print the summary as JSON")

	input := flag.String("input", "", "Input video (path or URI)")
	output := flag.String("output", "", "Output MP4 file")
	width := flag.Int("width", 0, "Output width (default 1280)")
	height := flag.Int("height", 0, "Output height (default 720)")
	fps := flag.Int("fps", 0, "Output frame rate (default 24)")
	lead := flag.Int("lead", 0, "Test pattern frames before the input (default 300)")
	tail := flag.Int("tail", 0, "Test pattern frames after the input (default 300)")
	prefix := flag.String("prefix", "", "Prefix of input frame identifiers (default f:)")
	moduleSize := flag.Int("module-size", 0, "Pixels per QR module (default 4)")
	recovery := flag.String("recovery", "", "QR error correction: low, medium, high, highest")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println("frameid-prepare", version)
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
		case "input":
			cfg.Prepare.Input = *input
		case "output":
			cfg.Prepare.Output = *output
		case "width":
			cfg.Prepare.Width = *width
		case "height":
			cfg.Prepare.Height = *height
		case "fps":
			cfg.Prepare.FPS = *fps
		case "lead":
			cfg.Prepare.LeadFrames = *lead
		case "tail":
			cfg.Prepare.TailFrames = *tail
		case "prefix":
			cfg.Prepare.FramePrefix = *prefix
		case "module-size":
			cfg.Prepare.ModuleSize = *moduleSize
		case "recovery":
			cfg.Prepare.Recovery = *recovery
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
	if cfg.Prepare.Input == "" || cfg.Prepare.Output == "" {
		fmt.Fprintf(os.Stderr, "Error: -input and -output are required\n")
		flag.Usage()
		os.Exit(1)
	}

	return cfg, *jsonOut
}

func run(ctx context.Context, cfg *config.Config) (*prepare.Summary, error) {
	p := cfg.Prepare
	level, err := symbol.ParseLevel(p.Recovery)
	if err != nil {
		return nil, err
	}
	encoder := symbol.NewQREncoder(p.ModuleSize)
	encoder.Level = level
	initial, maxDelay := cfg.Retry.Delays()

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	workCtx, done := context.WithCancel(gctx)
	defer done()

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return m.Serve(workCtx, cfg.Metrics.Addr)
		})
	}

	var summary *prepare.Summary
	g.Go(func() error {
		defer done()
		var err error
		summary, err = prepare.Run(workCtx, prepare.Config{
			Input:       p.Input,
			Output:      p.Output,
			Width:       p.Width,
			Height:      p.Height,
			FPS:         p.FPS,
			LeadFrames:  p.LeadFrames,
			TailFrames:  p.TailFrames,
			StartPrefix: p.StartPrefix,
			FramePrefix: p.FramePrefix,
			EndPrefix:   p.EndPrefix,
			Retry: pipeline.RetryConfig{
				MaxRetries:    cfg.Retry.MaxRetries,
				RetryDelay:    initial,
				MaxRetryDelay: maxDelay,
			},
			Metrics: m,
			Symbols: encoder,
		})
		return err
	})

	return summary, g.Wait()
}
