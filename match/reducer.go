package match

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// DefaultMarker selects the payloads that take part in matching. Lead-in and
// tail segments carry other prefixes and are never recorded.
const DefaultMarker = "f:"

// Verdict is a reducer's decision for one frame.
type Verdict int

const (
	// VerdictAccepted keeps the frame.
	VerdictAccepted Verdict = iota
	// VerdictDuplicate drops a reference frame whose code was already seen.
	VerdictDuplicate
	// VerdictUnexpected drops a capture frame whose code is not outstanding:
	// a repeat, or a code the reference never had.
	VerdictUnexpected
	// VerdictIgnored drops a frame that carries no session marker.
	VerdictIgnored
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictDuplicate:
		return "duplicate"
	case VerdictUnexpected:
		return "unexpected"
	case VerdictIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Keep reports whether the frame should be forwarded downstream.
func (v Verdict) Keep() bool {
	return v == VerdictAccepted
}

// Reducer decides the fate of each found payload.
type Reducer interface {
	Observe(payload string) Verdict
	Stats() Stats
}

// Stats counts verdicts for one reducer.
type Stats struct {
	Accepted   uint64 `json:"accepted"`
	Duplicate  uint64 `json:"duplicate"`
	Unexpected uint64 `json:"unexpected"`
	Ignored    uint64 `json:"ignored"`
}

// Total is the number of payloads observed.
func (s Stats) Total() uint64 {
	return s.Accepted + s.Duplicate + s.Unexpected + s.Ignored
}

type counters struct {
	accepted   atomic.Uint64
	duplicate  atomic.Uint64
	unexpected atomic.Uint64
	ignored    atomic.Uint64
}

func (c *counters) record(v Verdict) Verdict {
	switch v {
	case VerdictAccepted:
		c.accepted.Add(1)
	case VerdictDuplicate:
		c.duplicate.Add(1)
	case VerdictUnexpected:
		c.unexpected.Add(1)
	case VerdictIgnored:
		c.ignored.Add(1)
	}
	return v
}

func (c *counters) snapshot() Stats {
	return Stats{
		Accepted:   c.accepted.Load(),
		Duplicate:  c.duplicate.Load(),
		Unexpected: c.unexpected.Load(),
		Ignored:    c.ignored.Load(),
	}
}

// ReferenceReducer records the first occurrence of every marked code.
type ReferenceReducer struct {
	marker string
	seen   *Registry
	frozen atomic.Bool
	counts counters
}

// Observe inserts payload. A code seen before is a duplicate.
func (r *ReferenceReducer) Observe(payload string) Verdict {
	if !strings.HasPrefix(payload, r.marker) {
		return r.counts.record(VerdictIgnored)
	}
	if r.frozen.Load() {
		slog.Warn("match: reference observed after capture began", "code", payload)
		return r.counts.record(VerdictIgnored)
	}
	if !r.seen.Insert(payload) {
		slog.Debug("match: duplicate reference code", "code", payload)
		return r.counts.record(VerdictDuplicate)
	}
	return r.counts.record(VerdictAccepted)
}

func (r *ReferenceReducer) Stats() Stats {
	return r.counts.snapshot()
}

// CaptureReducer consumes codes from the set still outstanding.
type CaptureReducer struct {
	marker    string
	remaining *Registry
	counts    counters
}

// Observe removes payload from the outstanding set. A code that is not
// outstanding is unexpected.
func (c *CaptureReducer) Observe(payload string) Verdict {
	if !strings.HasPrefix(payload, c.marker) {
		return c.counts.record(VerdictIgnored)
	}
	if !c.remaining.Remove(payload) {
		slog.Debug("match: unexpected capture code", "code", payload)
		return c.counts.record(VerdictUnexpected)
	}
	return c.counts.record(VerdictAccepted)
}

func (c *CaptureReducer) Stats() Stats {
	return c.counts.snapshot()
}
