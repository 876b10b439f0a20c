// Command frameid-align correlates a tagged reference recording with a
// capture of it and reports which frames never made it through.
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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/waltznetworks/video-align/align"
	"github.com/waltznetworks/video-align/internal/config"
	"github.com/waltznetworks/video-align/internal/emitter"
	"github.com/waltznetworks/video-align/internal/eventbus"
	"github.com/waltznetworks/video-align/internal/metrics"
	"github.com/waltznetworks/video-align/internal/pipeline"
)

const version = "v0.1.0"

// exitIncomplete is returned with -strict when reference frames are missing
// from the capture.
const exitIncomplete = 3

type options struct {
	configPath string
	jsonOut    bool
	strict     bool
}

func main() {
	cfg, opts := parseFlags()

	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, cfg)
	if report != nil && report.Reference.Frames > 0 {
		if werr := writeReport(report, opts.jsonOut); werr != nil {
			slog.Error("frameid-align: failed to write report", "error", werr)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("frameid-align: interrupted")
		} else {
			slog.Error("frameid-align: failed", "error", err)
		}
		os.Exit(1)
	}
	if opts.strict && !report.Complete() {
		os.Exit(exitIncomplete)
	}
}

func parseFlags() (*config.Config, options) {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration file (optional)")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")
	flag.BoolVar(&opts.strict, "strict", false, "Exit with status 3 when frames are missing from the capture")

	reference := flag.String("reference", "", "Tagged reference recording (path or URI)")
	capture := flag.String("capture", "", "Capture of the reference (path or URI)")
	marker := flag.String("marker", "", "Prefix of the codes that take part in matching (default f:)")
	anchor := flag.String("anchor", "", "Scan region corner: top-left, top-right, bottom-left, bottom-right")
	region := flag.String("region", "", "Scan region size WxH (default: full frame)")
	intensity := flag.String("intensity", "", "RGB reduction: per-channel or sum")
	writeFrames := flag.Bool("write-frames", false, "Write accepted frames as raw I420 to <input>.I420")
	cropLeft := flag.Int("crop-left", 0, "Pixels cropped from the left of written frames")
	cropTop := flag.Int("crop-top", 0, "Pixels cropped from the top of written frames")
	cropRight := flag.Int("crop-right", 0, "Pixels cropped from the right of written frames")
	cropBottom := flag.Int("crop-bottom", 0, "Pixels cropped from the bottom of written frames")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	broker := flag.String("mqtt-broker", "", "Relay found-frame events to this MQTT broker")
	topic := flag.String("mqtt-topic", "", "MQTT topic root (default video-align)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println("frameid-align", version)
		os.Exit(0)
	}

	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags given on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "reference":
			cfg.Align.Reference = *reference
		case "capture":
			cfg.Align.Capture = *capture
		case "marker":
			cfg.Align.Marker = *marker
		case "anchor":
			cfg.Scan.Anchor = *anchor
		case "region":
			cfg.Scan.Region = *region
		case "intensity":
			cfg.Scan.Intensity = *intensity
		case "write-frames":
			cfg.Align.WriteFrames = *writeFrames
		case "crop-left":
			cfg.Align.Crop.Left = *cropLeft
		case "crop-top":
			cfg.Align.Crop.Top = *cropTop
		case "crop-right":
			cfg.Align.Crop.Right = *cropRight
		case "crop-bottom":
			cfg.Align.Crop.Bottom = *cropBottom
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "mqtt-broker":
			cfg.MQTT.Broker = *broker
		case "mqtt-topic":
			cfg.MQTT.Topic = *topic
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
	if cfg.Align.Reference == "" || cfg.Align.Capture == "" {
		fmt.Fprintf(os.Stderr, "Error: -reference and -capture are required\n")
		flag.Usage()
		os.Exit(1)
	}

	return cfg, opts
}

func run(ctx context.Context, cfg *config.Config) (*align.Report, error) {
	region, err := cfg.Scan.ScanRegion()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Scan.IntensityPolicy()
	if err != nil {
		return nil, err
	}
	initial, maxDelay := cfg.Retry.Delays()

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	defer bus.Close()

	var mq *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "frameid-align-" + uuid.NewString()[:8]
		}
		mq = emitter.NewMQTTEmitter(emitter.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: clientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err := mq.Connect(ctx); err != nil {
			return nil, err
		}
		defer mq.Disconnect()
	}

	g, gctx := errgroup.WithContext(ctx)
	workCtx, done := context.WithCancel(gctx)
	defer done()

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return m.Serve(workCtx, cfg.Metrics.Addr)
		})
	}

	var events chan eventbus.Event
	if mq != nil {
		events = make(chan eventbus.Event, 1024)
		if err := bus.Subscribe("mqtt", events); err != nil {
			return nil, err
		}
		g.Go(func() error {
			return mq.Run(gctx, events)
		})
	}

	var report *align.Report
	g.Go(func() error {
		defer done()
		if events != nil {
			// Nothing is published once the bus is closed, so the relay can
			// drain and return.
			defer close(events)
			defer bus.Close()
		}

		var err error
		report, err = align.Run(workCtx, align.Config{
			Reference:   cfg.Align.Reference,
			Capture:     cfg.Align.Capture,
			Marker:      cfg.Align.Marker,
			Region:      region,
			Intensity:   policy,
			WriteFrames: cfg.Align.WriteFrames,
			Crop: pipeline.Crop{
				Left:   cfg.Align.Crop.Left,
				Top:    cfg.Align.Crop.Top,
				Right:  cfg.Align.Crop.Right,
				Bottom: cfg.Align.Crop.Bottom,
			},
			Retry: pipeline.RetryConfig{
				MaxRetries:    cfg.Retry.MaxRetries,
				RetryDelay:    initial,
				MaxRetryDelay: maxDelay,
			},
			Bus:     bus,
			Metrics: m,
		})
		if err != nil {
			return err
		}
		if mq != nil {
			if err := mq.PublishReport(report); err != nil {
				slog.Warn("frameid-align: report not published", "error", err)
			}
		}
		return nil
	})

	err = g.Wait()
	if mq != nil {
		st := mq.Stats()
		slog.Info("frameid-align: mqtt relay finished", "errors", st.Errors, "bus_dropped", bus.Stats().TotalDropped)
	}
	return report, err
}

func writeReport(report *align.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.WriteText(os.Stdout)
}
