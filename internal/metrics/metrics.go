package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes
const (
	OutcomeTime    = "time"
	OutcomeFailure = "failure"
	OutcomeBusy    = "busy"
)

// Metrics collects counters and latencies of reading cycles
type Metrics struct {
	Cycles         *prometheus.CounterVec
	CaptureLatency prometheus.Histogram
	ModelLatency   *prometheus.HistogramVec
	Faults         *prometheus.CounterVec
	ClockFormat    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchreader_cycles_total",
			Help: "Reading cycles by outcome",
		}, []string{"outcome"}),

		CaptureLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchreader_capture_seconds",
			Help:    "Time to capture and normalize a still",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		ModelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "watchreader_model_seconds",
			Help:    "Time for the vision backend to answer",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 7.5, 10, 15, 20, 30, 60},
		}, []string{"backend"}),

		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchreader_faults_total",
			Help: "Faults by kind",
		}, []string{"kind"}),

		ClockFormat: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchreader_clock_format_total",
			Help: "Model answers by whether they look like HH:mm",
		}, []string{"matches"}),
	}

	if reg != nil {
		reg.MustRegister(m.Cycles, m.CaptureLatency, m.ModelLatency, m.Faults, m.ClockFormat)
	}
	return m
}

// RecordCycle counts a finished or rejected cycle
func (m *Metrics) RecordCycle(outcome string) {
	m.Cycles.WithLabelValues(outcome).Inc()
}

// RecordFault counts a fault of the given kind
func (m *Metrics) RecordFault(kind string) {
	m.Faults.WithLabelValues(kind).Inc()
}

// RecordCapture observes capture latency in seconds
func (m *Metrics) RecordCapture(seconds float64) {
	m.CaptureLatency.Observe(seconds)
}

// RecordModel observes model latency in seconds
func (m *Metrics) RecordModel(backend string, seconds float64) {
	m.ModelLatency.WithLabelValues(backend).Observe(seconds)
}

// RecordClockFormat counts whether an answer matched HH:mm
func (m *Metrics) RecordClockFormat(matches bool) {
	label := "false"
	if matches {
		label = "true"
	}
	m.ClockFormat.WithLabelValues(label).Inc()
}
