// Package metrics exposes engine and messaging counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for spendguard. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	guards          prometheus.Counter
	interceptions   prometheus.Counter
	resolutions     *prometheus.CounterVec
	replays         *prometheus.CounterVec
	amountSaved     prometheus.Counter
	scanDuration    prometheus.Histogram
	messages        *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
}

// New creates a dedicated registry and registers every metric in it, so
// calling New more than once never panics on duplicate collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		guards: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendguard_guards_total",
			Help: "Purchase controls guarded.",
		}),
		interceptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendguard_interceptions_total",
			Help: "Cooldowns started.",
		}),
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendguard_resolutions_total",
				Help: "Cooldowns resolved, by outcome.",
			},
			[]string{"outcome"},
		),
		replays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendguard_replays_total",
				Help: "Replayed actions, by strategy.",
			},
			[]string{"strategy"},
		),
		amountSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "spendguard_amount_saved_total",
			Help: "Sum of abandoned purchase amounts.",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "spendguard_scan_duration_seconds",
			Help:    "Duration of classification passes.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendguard_messages_total",
				Help: "Messages handled, by action and status.",
			},
			[]string{"action", "status"},
		),
		messageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spendguard_message_duration_seconds",
				Help:    "Duration of message handling by action.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}
}

// AddGuards counts newly guarded controls.
func (m *Metrics) AddGuards(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.guards.Add(float64(n))
}

// IncrInterception counts a started cooldown.
func (m *Metrics) IncrInterception() {
	if m == nil {
		return
	}
	m.interceptions.Inc()
}

// IncrResolution counts a resolved cooldown.
func (m *Metrics) IncrResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

// IncrReplay counts a replay by strategy.
func (m *Metrics) IncrReplay(strategy string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(strategy).Inc()
}

// AddSaved adds an abandoned amount.
func (m *Metrics) AddSaved(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.amountSaved.Add(amount)
}

// ObserveScan records the duration of a classification pass.
func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
}

// RecordMessage records one handled message.
func (m *Metrics) RecordMessage(action, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(action, status).Inc()
	m.messageDuration.WithLabelValues(action).Observe(d.Seconds())
}

// Snapshot is a point-in-time copy of the engine counters.
type Snapshot struct {
	Resolutions   map[string]float64
	Replays       map[string]float64
	Guards        float64
	Interceptions float64
	AmountSaved   float64
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Resolutions: make(map[string]float64),
		Replays:     make(map[string]float64),
	}
	if m == nil {
		return s
	}

	s.Guards = counterValue(m.guards)
	s.Interceptions = counterValue(m.interceptions)
	s.AmountSaved = counterValue(m.amountSaved)

	families, err := m.Registry.Gather()
	if err != nil {
		return s
	}
	for _, f := range families {
		var target map[string]float64
		switch f.GetName() {
		case "spendguard_resolutions_total":
			target = s.Resolutions
		case "spendguard_replays_total":
			target = s.Replays
		default:
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				target[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	return s
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
