package tacmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	tacmetrics "github.com/tacplus-go/tacgo/internal/metrics"
	"github.com/tacplus-go/tacgo/internal/tacacs"
)

// The collector must satisfy the connection engine's reporter interface.
var _ tacacs.MetricsReporter = (*tacmetrics.Collector)(nil)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := tacmetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.PacketsSent == nil {
		t.Error("PacketsSent is nil")
	}
	if c.PacketsReceived == nil {
		t.Error("PacketsReceived is nil")
	}
	if c.PacketsDropped == nil {
		t.Error("PacketsDropped is nil")
	}
	if c.AuthenOutcomes == nil {
		t.Error("AuthenOutcomes is nil")
	}
	if c.AuthorOutcomes == nil {
		t.Error("AuthorOutcomes is nil")
	}
	if c.ObfuscationErrors == nil {
		t.Error("ObfuscationErrors is nil")
	}
	if c.SequenceViolations == nil {
		t.Error("SequenceViolations is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := tacmetrics.NewCollector(reg)

	// Register a session -- gauge should go to 1.
	c.RegisterSession("authentication")

	val := gaugeValue(t, c.Sessions, "authentication")
	if val != 1 {
		t.Errorf("after RegisterSession: sessions gauge = %v, want 1", val)
	}

	// Register another session with a different packet type.
	c.RegisterSession("authorization")

	val = gaugeValue(t, c.Sessions, "authorization")
	if val != 1 {
		t.Errorf("after second RegisterSession: authorization gauge = %v, want 1", val)
	}

	// Unregister authentication -- gauge should go back to 0.
	c.UnregisterSession("authentication")

	val = gaugeValue(t, c.Sessions, "authentication")
	if val != 0 {
		t.Errorf("after UnregisterSession: sessions gauge = %v, want 0", val)
	}

	// authorization should still be 1.
	val = gaugeValue(t, c.Sessions, "authorization")
	if val != 1 {
		t.Errorf("authorization gauge = %v, want 1 (should be unaffected)", val)
	}
}

func TestPacketCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := tacmetrics.NewCollector(reg)

	// Increment sent counter 3 times.
	c.IncPacketsSent("authentication")
	c.IncPacketsSent("authentication")
	c.IncPacketsSent("authentication")

	val := counterValue(t, c.PacketsSent, "authentication")
	if val != 3 {
		t.Errorf("PacketsSent = %v, want 3", val)
	}

	// Increment received counter 2 times.
	c.IncPacketsReceived("authentication")
	c.IncPacketsReceived("authentication")

	val = counterValue(t, c.PacketsReceived, "authentication")
	if val != 2 {
		t.Errorf("PacketsReceived = %v, want 2", val)
	}

	// Increment dropped counter once.
	c.IncPacketsDropped("authorization")

	val = counterValue(t, c.PacketsDropped, "authorization")
	if val != 1 {
		t.Errorf("PacketsDropped = %v, want 1", val)
	}
}

func TestAuthenOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := tacmetrics.NewCollector(reg)

	c.RecordAuthenOutcome("pass")
	c.RecordAuthenOutcome("pass")
	c.RecordAuthenOutcome("fail")

	if val := counterValue(t, c.AuthenOutcomes, "pass"); val != 2 {
		t.Errorf("AuthenOutcomes(pass) = %v, want 2", val)
	}
	if val := counterValue(t, c.AuthenOutcomes, "fail"); val != 1 {
		t.Errorf("AuthenOutcomes(fail) = %v, want 1", val)
	}
}

func TestAuthorOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := tacmetrics.NewCollector(reg)

	c.RecordAuthorOutcome("pass_add")
	c.RecordAuthorOutcome("fail")

	if val := counterValue(t, c.AuthorOutcomes, "pass_add"); val != 1 {
		t.Errorf("AuthorOutcomes(pass_add) = %v, want 1", val)
	}
	if val := counterValue(t, c.AuthorOutcomes, "fail"); val != 1 {
		t.Errorf("AuthorOutcomes(fail) = %v, want 1", val)
	}
}

func TestProtocolErrorCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := tacmetrics.NewCollector(reg)

	c.IncObfuscationErrors()
	c.IncObfuscationErrors()
	c.IncSequenceViolations()

	m := &dto.Metric{}
	if err := c.ObfuscationErrors.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("ObfuscationErrors = %v, want 2", got)
	}

	m = &dto.Metric{}
	if err := c.SequenceViolations.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("SequenceViolations = %v, want 1", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
