package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorObserver is told the category of every bus error.
type ErrorObserver func(category ErrorCategory)

// MonitorPipelineBus polls the bus until end of stream (nil), a pipeline
// error (*Error) or context cancellation (ctx.Err()).
func MonitorPipelineBus(ctx context.Context, pipeline *gst.Pipeline, name string, onError ErrorObserver) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline: not initialized")
	}

	bus := pipeline.GetPipelineBus()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("pipeline: context cancelled, stopping bus monitor", "pipeline", name)
			return ctx.Err()

		default:
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Debug("pipeline: end of stream",
					"pipeline", name,
					"uptime", time.Since(started),
				)
				return nil

			case gst.MessageError:
				gerr := msg.ParseError()
				category := ClassifyGStreamerError(gerr)
				if onError != nil {
					onError(category)
				}

				slog.Error("pipeline: error",
					"pipeline", name,
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"uptime", time.Since(started),
				)
				return &Error{Category: category, Message: gerr.Error(), Debug: gerr.DebugString()}

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					old, new := msg.ParseStateChanged()
					slog.Debug("pipeline: state changed",
						"pipeline", name,
						"from", old,
						"to", new,
					)
				}
			}
		}
	}
}
