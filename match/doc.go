// Package match reconciles the identifiers seen in a reference stream with
// those seen in a capture of it.
//
// The reference session records the first occurrence of every code and drops
// repeats. The capture session consumes codes from a copy of that set: a code
// still outstanding is accepted, anything else is unexpected. Whatever is
// left at the end went missing in the capture.
//
// Codes the capture introduced are dropped per frame and counted in Stats;
// Result.MissingFromReference is always empty.
package match
