package align

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/waltznetworks/video-align/internal/cadence"
	"github.com/waltznetworks/video-align/match"
)

// SessionStats summarises one decode session.
type SessionStats struct {
	ID       string         `json:"id"`
	Role     string         `json:"role"`
	URI      string         `json:"uri"`
	Frames   uint64         `json:"frames"`
	Found    uint64         `json:"found"`
	Dropped  uint64         `json:"dropped"`
	Verdicts match.Stats    `json:"verdicts"`
	Cadence  *cadence.Stats `json:"cadence"`
	Output   string         `json:"output,omitempty"`
	Written  uint64         `json:"written,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Report is the outcome of a reference/capture correlation.
type Report struct {
	ReferenceID string       `json:"reference_id"`
	CaptureID   string       `json:"capture_id"`
	Marker      string       `json:"marker"`
	Result      match.Result `json:"result"`
	Reference   SessionStats `json:"reference"`
	Capture     SessionStats `json:"capture"`
}

// Complete reports whether every reference code reached the capture.
func (r *Report) Complete() bool {
	return len(r.Result.MissingFromCapture) == 0
}

// WriteText prints the report in the layout of the command line tool.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	for _, s := range []SessionStats{r.Reference, r.Capture} {
		fmt.Fprintf(&b, "%s %s\n", s.Role, s.URI)
		fmt.Fprintf(&b, "  session: %s\n", s.ID)
		fmt.Fprintf(&b, "  frames: %d (found %d, dropped %d)\n", s.Frames, s.Found, s.Dropped)
		fmt.Fprintf(&b, "  verdicts: accepted=%d duplicate=%d unexpected=%d ignored=%d\n",
			s.Verdicts.Accepted, s.Verdicts.Duplicate, s.Verdicts.Unexpected, s.Verdicts.Ignored)
		if c := s.Cadence; c != nil && c.Frames > 1 {
			fmt.Fprintf(&b, "  fps: mean=%.2f min=%.2f max=%.2f stable=%t gaps=%d\n",
				c.FPSMean, c.FPSMin, c.FPSMax, c.IsStable, c.Gaps)
		}
		if s.Output != "" {
			fmt.Fprintf(&b, "  written: %d frames to %s\n", s.Written, s.Output)
		}
	}

	fmt.Fprintf(&b, "matched: %d\n", len(r.Result.Matched))
	fmt.Fprintf(&b, "missing from capture: %d\n", len(r.Result.MissingFromCapture))
	for _, code := range r.Result.MissingFromCapture {
		fmt.Fprintf(&b, "  %s\n", code)
	}
	fmt.Fprintf(&b, "missing from reference: %d\n", len(r.Result.MissingFromReference))
	for _, code := range r.Result.MissingFromReference {
		fmt.Fprintf(&b, "  %s\n", code)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
