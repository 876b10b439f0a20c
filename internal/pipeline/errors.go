package pipeline

import (
	"errors"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

var (
	// ErrGStreamerUnavailable is returned when the GStreamer runtime or a
	// required plugin cannot be loaded.
	ErrGStreamerUnavailable = errors.New("pipeline: GStreamer not available")
	// ErrNotStarted is returned when a sink is used before Start.
	ErrNotStarted = errors.New("pipeline: not started")
)

// ErrorCategory classifies GStreamer errors for logs and metrics.
type ErrorCategory int

const (
	// ErrCategoryNetwork covers connection, timeout and DNS failures.
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec covers decode, encode and caps negotiation failures.
	ErrCategoryCodec
	// ErrCategoryResource covers missing files and I/O failures.
	ErrCategoryResource
	// ErrCategoryAuth covers authentication failures.
	ErrCategoryAuth
	// ErrCategoryUnknown is anything else.
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	authKeywords = []string{
		"unauthorized", "401", "403", "forbidden", "authentication",
		"credentials", "password", "username",
	}
	codecKeywords = []string{
		"codec", "decode", "encode", "format", "negotiation", "caps",
		"h264", "h265", "mjpeg", "jpeg", "not negotiated", "no decoder",
		"missing plugin", "demux", "type could not be determined",
	}
	resourceKeywords = []string{
		"no such file", "could not open", "resource not found",
		"permission denied", "no space left", "could not write",
		"could not read", "file",
	}
	networkKeywords = []string{
		"connection", "timeout", "unreachable", "network", "dns",
		"resolve", "socket", "tcp", "udp", "rtsp", "http",
		"could not connect", "failed to connect",
	}
)

// Classify categorizes an error message and its debug string by keyword.
// Auth is checked first, then codec, resource and network.
func Classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

// ClassifyGStreamerError categorizes a bus error.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return Classify(gerr.Error(), gerr.DebugString())
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Error is a pipeline failure reported on the bus.
type Error struct {
	Category ErrorCategory
	Message  string
	Debug    string
}

func (e *Error) Error() string {
	return "pipeline error [" + e.Category.String() + "]: " + e.Message
}
