package frameid

// Filter is the scanning side as a stream element: it scans each frame and
// publishes a Found event before the host forwards the frame. Dropped frames
// are the host's to discard.
type Filter struct {
	*Scanner
	sink EventSink
}

// NewFilter wraps scanner. A nil sink disables publication.
func NewFilter(scanner *Scanner, sink EventSink) *Filter {
	return &Filter{Scanner: scanner, sink: sink}
}

// Process scans frame and, on Found, publishes a FoundEventName event
// synchronously on the calling goroutine.
func (f *Filter) Process(frame Frame) (Outcome, string, error) {
	outcome, payload, err := f.Scan(frame)
	if err != nil {
		return Dropped, "", err
	}
	if outcome == Found && f.sink != nil {
		f.sink.OnFound(Event{Name: FoundEventName, Payload: payload})
	}
	return outcome, payload, nil
}
