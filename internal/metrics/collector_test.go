package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/netsys-lab/scion-ip-translator/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.PacketsTranslated == nil {
		t.Error("PacketsTranslated is nil")
	}
	if c.PacketsDropped == nil {
		t.Error("PacketsDropped is nil")
	}
	if c.CacheHits == nil {
		t.Error("CacheHits is nil")
	}
	if c.CacheMisses == nil {
		t.Error("CacheMisses is nil")
	}
	if c.RPCLatency == nil {
		t.Error("RPCLatency is nil")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestIncTranslated(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncTranslated(metrics.DirectionEgress)
	c.IncTranslated(metrics.DirectionEgress)
	c.IncTranslated(metrics.DirectionIngress)

	if v := counterValue(t, c.PacketsTranslated, metrics.DirectionEgress); v != 2 {
		t.Errorf("egress translated = %v, want 2", v)
	}
	if v := counterValue(t, c.PacketsTranslated, metrics.DirectionIngress); v != 1 {
		t.Errorf("ingress translated = %v, want 1", v)
	}
}

func TestIncDropped(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncDropped(metrics.DirectionEgress, metrics.ReasonNoPath)
	c.IncDropped(metrics.DirectionEgress, metrics.ReasonNoPath)
	c.IncDropped(metrics.DirectionIngress, metrics.ReasonWrongDestination)

	if v := counterValue(t, c.PacketsDropped, metrics.DirectionEgress, metrics.ReasonNoPath); v != 2 {
		t.Errorf("egress/no_path dropped = %v, want 2", v)
	}
	if v := counterValue(t, c.PacketsDropped, metrics.DirectionIngress, metrics.ReasonWrongDestination); v != 1 {
		t.Errorf("ingress/wrong_destination dropped = %v, want 1", v)
	}
}

func TestObserveCacheLookup(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ObserveCacheLookup(true)
	c.ObserveCacheLookup(true)
	c.ObserveCacheLookup(false)

	if v := plainCounterValue(t, c.CacheHits); v != 2 {
		t.Errorf("CacheHits = %v, want 2", v)
	}
	if v := plainCounterValue(t, c.CacheMisses); v != 1 {
		t.Errorf("CacheMisses = %v, want 1", v)
	}
}

func TestObserveRPCLatency(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.ObserveRPCLatency(0.05)
	c.ObserveRPCLatency(0.15)

	m := &dto.Metric{}
	if err := c.RPCLatency.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

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

func plainCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
