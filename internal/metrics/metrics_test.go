package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveScan("capture", "found", time.Millisecond)
	m.ObserveScan("capture", "found", time.Millisecond)
	m.ObserveScan("capture", "dropped", time.Millisecond)
	m.ObserveEncode("f:", time.Millisecond)
	m.ObserveVerdict("reference", "duplicate")
	m.CodecError("scan")
	m.PipelineError("reference", "codec")
	m.SetCodes("reference", 12)
	m.SetSessionFPS("capture", 23.9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("capture", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("capture", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EncodedTotal.WithLabelValues("f:")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("reference", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodecErrorsTotal.WithLabelValues("scan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineErrors.WithLabelValues("reference", "codec")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RegistryCodes.WithLabelValues("reference")))
	assert.Equal(t, 23.9, testutil.ToFloat64(m.SessionFPS.WithLabelValues("capture")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScan("capture", "found", 0)
		m.ObserveEncode("f:", 0)
		m.ObserveVerdict("capture", "accepted")
		m.CodecError("encode")
		m.PipelineError("x", "unknown")
		m.SetCodes("remaining", 1)
		m.SetSessionFPS("reference", 1)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ObserveVerdict("capture", "unexpected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `video_align_match_verdicts_total{role="capture",verdict="unexpected"} 1`))
}
