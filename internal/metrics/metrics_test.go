package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCycle(OutcomeTime)
	m.RecordCycle(OutcomeTime)
	m.RecordCycle(OutcomeBusy)
	m.RecordFault("capture")
	m.RecordClockFormat(true)
	m.RecordClockFormat(false)
	m.RecordCapture(0.2)
	m.RecordModel("gemini", 1.5)

	if got := testutil.ToFloat64(m.Cycles.WithLabelValues(OutcomeTime)); got != 2 {
		t.Errorf("Expected 2 time cycles, got %v", got)
	}
	if got := testutil.ToFloat64(m.Cycles.WithLabelValues(OutcomeBusy)); got != 1 {
		t.Errorf("Expected 1 busy cycle, got %v", got)
	}
	if got := testutil.ToFloat64(m.Faults.WithLabelValues("capture")); got != 1 {
		t.Errorf("Expected 1 capture fault, got %v", got)
	}
	if got := testutil.CollectAndCount(m.ClockFormat); got != 2 {
		t.Errorf("Expected 2 clock format series, got %d", got)
	}

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if count == 0 {
		t.Error("Expected registered metrics")
	}
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.RecordCycle(OutcomeFailure)
	if got := testutil.ToFloat64(m.Cycles.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("Expected 1 failure cycle, got %v", got)
	}
}
