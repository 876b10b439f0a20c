package pipeline

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Sample is one raw frame pulled from an appsink. Data is a private copy the
// handler may modify.
type Sample struct {
	Index    uint64
	Info     VideoInfo
	Data     []byte
	PTS      time.Duration
	Duration time.Duration
}

// SampleHandler processes one frame on the streaming thread. A non-nil error
// stops the pipeline.
type SampleHandler func(s Sample) error

// CallbackContext holds the state shared by appsink callbacks.
type CallbackContext struct {
	Name    string
	Handler SampleHandler
	Frames  *atomic.Uint64

	errMu sync.Mutex
	err   error
}

// Err returns the first handler error, if any.
func (c *CallbackContext) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *CallbackContext) fail(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *CallbackContext) reset() {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = nil
}

// OnNewSample pulls a sample, copies its frame and hands it to the handler.
// Unreadable samples are skipped; handler errors return gst.FlowError.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("pipeline: failed to pull sample from appsink, skipping frame", "pipeline", ctx.Name)
		return gst.FlowOK
	}

	caps := sample.GetCaps()
	if caps == nil {
		slog.Warn("pipeline: sample without caps, skipping frame", "pipeline", ctx.Name)
		return gst.FlowOK
	}
	info, err := ParseVideoCaps(caps.String())
	if err != nil {
		slog.Warn("pipeline: unusable sample caps, skipping frame", "pipeline", ctx.Name, "error", err)
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("pipeline: failed to get buffer from sample, skipping frame", "pipeline", ctx.Name)
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("pipeline: empty buffer received", "pipeline", ctx.Name)
		return gst.FlowOK
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	index := ctx.Frames.Add(1) - 1
	s := Sample{
		Index:    index,
		Info:     info,
		Data:     frameData,
		PTS:      buffer.PresentationTimestamp(),
		Duration: buffer.Duration(),
	}

	if err := ctx.Handler(s); err != nil {
		ctx.fail(err)
		slog.Error("pipeline: frame handler failed",
			"pipeline", ctx.Name,
			"index", index,
			"error", err,
		)
		return gst.FlowError
	}

	return gst.FlowOK
}

// OnPadAdded links the first video pad of a decodebin to sinkElement.
// Audio and already-linked pads are ignored.
func OnPadAdded(srcPad *gst.Pad, sinkElement *gst.Element) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || !isVideoCaps(caps.String()) {
		slog.Debug("pipeline: ignoring non-video pad", "pad", srcPad.GetName())
		return
	}

	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("pipeline: failed to get sink pad", "element", sinkElement.GetName())
		return
	}
	if sinkPad.IsLinked() {
		slog.Debug("pipeline: video already linked, ignoring pad", "pad", srcPad.GetName())
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("pipeline: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("pipeline: pads linked",
		"src_pad", srcPad.GetName(),
		"sink_pad", sinkPad.GetName(),
	)
}

func isVideoCaps(caps string) bool {
	return strings.HasPrefix(caps, "video/")
}
