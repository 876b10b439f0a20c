package match

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeSet(t *testing.T) {
	s := NewCodeSet("f:1")
	assert.True(t, s.Insert("f:0"))
	assert.False(t, s.Insert("f:0"))
	assert.True(t, s.Contains("f:1"))
	assert.Equal(t, 2, s.Len())

	c := s.Clone()
	assert.True(t, s.Remove("f:1"))
	assert.False(t, s.Remove("f:1"))
	assert.True(t, c.Contains("f:1"), "clone must be independent")

	assert.Equal(t, []string{"f:1"}, c.Difference(s).Codes())
}

func TestCodeSet_CodesCanonicalOrder(t *testing.T) {
	s := NewCodeSet("f:10", "f:9", "f:100", "f:0")
	assert.Equal(t, []string{"f:0", "f:9", "f:10", "f:100"}, s.Codes())
}

func TestMatcher_Duplicates(t *testing.T) {
	m := NewMatcher("f:", NewRegistry())

	ref := m.Reference()
	verdicts := []Verdict{ref.Observe("f:0"), ref.Observe("f:0"), ref.Observe("f:1")}
	assert.Equal(t, []Verdict{VerdictAccepted, VerdictDuplicate, VerdictAccepted}, verdicts)

	capture, err := m.BeginCapture()
	require.NoError(t, err)
	verdicts = []Verdict{capture.Observe("f:1"), capture.Observe("f:0"), capture.Observe("f:0")}
	assert.Equal(t, []Verdict{VerdictAccepted, VerdictAccepted, VerdictUnexpected}, verdicts)

	res := m.Result()
	assert.Equal(t, []string{"f:0", "f:1"}, res.Matched)
	assert.Empty(t, res.MissingFromCapture)
	assert.Empty(t, res.MissingFromReference)

	assert.Equal(t, Stats{Accepted: 2, Duplicate: 1}, ref.Stats())
	assert.Equal(t, Stats{Accepted: 2, Unexpected: 1}, capture.Stats())
}

func TestMatcher_DropDetection(t *testing.T) {
	res := Reconcile("f:", []string{"f:0", "f:1", "f:2"}, []string{"f:0", "f:2"})
	assert.Equal(t, []string{"f:0", "f:2"}, res.Matched)
	assert.Equal(t, []string{"f:1"}, res.MissingFromCapture)
	assert.Empty(t, res.MissingFromReference)
}

func TestMatcher_SpuriousCaptureCode(t *testing.T) {
	res := Reconcile("", []string{"f:0"}, []string{"f:7", "f:0", "f:0", "f:7"})
	assert.Equal(t, []string{"f:0"}, res.Matched)
	assert.Empty(t, res.MissingFromCapture)
	assert.Empty(t, res.MissingFromReference)
}

func TestMatcher_MarkerFiltering(t *testing.T) {
	m := NewMatcher("", nil)
	assert.Equal(t, DefaultMarker, m.Marker())

	ref := m.Reference()
	for _, p := range []string{"s:0", "s:1", "f:0", "e:0"} {
		ref.Observe(p)
	}
	assert.Equal(t, Stats{Accepted: 1, Ignored: 3}, ref.Stats())

	capture, err := m.BeginCapture()
	require.NoError(t, err)
	assert.Equal(t, VerdictIgnored, capture.Observe("e:0"))
	assert.False(t, VerdictIgnored.Keep())

	res := m.Result()
	assert.Empty(t, res.Matched)
	assert.Equal(t, []string{"f:0"}, res.MissingFromCapture)
}

func TestMatcher_BeginCaptureOnce(t *testing.T) {
	m := NewMatcher("f:", nil)
	m.Reference().Observe("f:0")

	_, err := m.BeginCapture()
	require.NoError(t, err)
	_, err = m.BeginCapture()
	assert.ErrorIs(t, err, ErrCaptureStarted)

	assert.Equal(t, VerdictIgnored, m.Reference().Observe("f:1"), "reference frozen once capture began")
}

func TestMatcher_ResultBeforeCapture(t *testing.T) {
	m := NewMatcher("f:", nil)
	m.Reference().Observe("f:1")
	m.Reference().Observe("f:0")

	res := m.Result()
	assert.Empty(t, res.Matched)
	assert.Equal(t, []string{"f:0", "f:1"}, res.MissingFromCapture)
}

func TestMatcher_CaptureDoesNotTouchReference(t *testing.T) {
	reg := NewRegistry()
	m := NewMatcher("f:", reg)
	m.Reference().Observe("f:0")

	capture, err := m.BeginCapture()
	require.NoError(t, err)
	capture.Observe("f:0")

	assert.True(t, reg.Contains("f:0"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				reg.Insert(fmt.Sprintf("f:%d", i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, reg.Len())
	assert.Equal(t, 100, reg.Snapshot().Len())
}
