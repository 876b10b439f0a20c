// Package pipeline hosts the frame codec inside GStreamer pipelines.
//
// A Source decodes a URI (or generates a test pattern), normalises it to raw
// RGBx and calls a SampleHandler for every frame on the streaming thread. A
// Sink accepts frames through appsrc and writes them out, either H.264/MP4 or
// cropped raw I420. Bus errors are classified by keyword for logs and
// metrics.
package pipeline
