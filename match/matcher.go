package match

import (
	"errors"
	"sync"
)

// ErrCaptureStarted is returned by a second BeginCapture.
var ErrCaptureStarted = errors.New("match: capture session already started")

// Result is the reconciliation of one reference against one capture, each
// list in canonical order.
type Result struct {
	Matched              []string `json:"matched"`
	MissingFromCapture   []string `json:"missing_from_capture"`
	MissingFromReference []string `json:"missing_from_reference"`
}

// Matcher runs a reference session followed by a capture session over the
// same registry.
type Matcher struct {
	marker    string
	reference *Registry
	ref       *ReferenceReducer

	mu      sync.Mutex
	capture *CaptureReducer
}

// NewMatcher creates a matcher recording into reference. An empty marker
// selects DefaultMarker.
func NewMatcher(marker string, reference *Registry) *Matcher {
	if marker == "" {
		marker = DefaultMarker
	}
	if reference == nil {
		reference = NewRegistry()
	}
	return &Matcher{
		marker:    marker,
		reference: reference,
		ref:       &ReferenceReducer{marker: marker, seen: reference},
	}
}

// Marker returns the payload prefix taking part in matching.
func (m *Matcher) Marker() string {
	return m.marker
}

// Reference returns the reducer for the reference session.
func (m *Matcher) Reference() *ReferenceReducer {
	return m.ref
}

// BeginCapture freezes the reference and returns the reducer for the capture
// session, working on a copy of the reference set.
func (m *Matcher) BeginCapture() (*CaptureReducer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture != nil {
		return nil, ErrCaptureStarted
	}

	m.ref.frozen.Store(true)
	m.capture = &CaptureReducer{
		marker:    m.marker,
		remaining: &Registry{set: m.reference.Snapshot()},
	}
	return m.capture, nil
}

// Result reports the reconciliation so far. Before BeginCapture every
// reference code counts as missing from the capture.
func (m *Matcher) Result() Result {
	m.mu.Lock()
	capture := m.capture
	m.mu.Unlock()

	ref := m.reference.Snapshot()
	if capture == nil {
		return Result{
			Matched:              []string{},
			MissingFromCapture:   ref.Codes(),
			MissingFromReference: []string{},
		}
	}

	remaining := capture.remaining.Snapshot()
	return Result{
		Matched:              ref.Difference(remaining).Codes(),
		MissingFromCapture:   remaining.Codes(),
		MissingFromReference: []string{},
	}
}

// Reconcile runs both sessions over already decoded payload lists.
func Reconcile(marker string, reference, capture []string) Result {
	m := NewMatcher(marker, nil)
	for _, p := range reference {
		m.Reference().Observe(p)
	}
	c, _ := m.BeginCapture()
	for _, p := range capture {
		c.Observe(p)
	}
	return m.Result()
}
