package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := New()

	m.AddGuards(3)
	m.AddGuards(0)
	m.IncrInterception()
	m.IncrInterception()
	m.IncrResolution("proceeded")
	m.IncrResolution("abandoned")
	m.IncrResolution("abandoned")
	m.IncrReplay("click")
	m.AddSaved(49.5)
	m.AddSaved(-1)
	m.ObserveScan(2 * time.Millisecond)

	s := m.Snapshot()
	assert.InDelta(t, 3, s.Guards, 0.001)
	assert.InDelta(t, 2, s.Interceptions, 0.001)
	assert.InDelta(t, 49.5, s.AmountSaved, 0.001)
	assert.Equal(t, map[string]float64{"proceeded": 1, "abandoned": 2}, s.Resolutions)
	assert.Equal(t, map[string]float64{"click": 1}, s.Replays)
}

func TestMetrics_RecordMessage(t *testing.T) {
	m := New()
	m.RecordMessage("getSettings", "success", time.Millisecond)
	m.RecordMessage("getSettings", "success", time.Millisecond)
	m.RecordMessage("bogus", "error", time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.messages.WithLabelValues("getSettings", "success")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.messages.WithLabelValues("bogus", "error")), 0.001)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.AddGuards(1)
	m.IncrInterception()
	m.IncrResolution("proceeded")
	m.IncrReplay("click")
	m.AddSaved(1)
	m.ObserveScan(time.Millisecond)
	m.RecordMessage("a", "b", time.Millisecond)

	s := m.Snapshot()
	assert.Zero(t, s.Guards)
	assert.Empty(t, s.Resolutions)
}

func TestNew_Twice(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
