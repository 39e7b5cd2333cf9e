package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSyncMetricsExportsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.Observe("add_current_item", OutcomeOK, 120*time.Millisecond)
	m.Observe("add_current_item", OutcomeDebounced, time.Millisecond)
	m.Observe("add_current_item", OutcomeDebounced, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	got, err := fetchCounterValue(mfs, "wishlist_sync_total", map[string]string{"op": "add_current_item", "outcome": OutcomeDebounced})
	if err != nil {
		t.Fatalf("fetch debounced: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected debounced=2, got %f", got)
	}

	sum, err := fetchHistogramSum(mfs, "wishlist_sync_duration_seconds", map[string]string{"op": "add_current_item"})
	if err != nil {
		t.Fatalf("fetch duration: %v", err)
	}
	if sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestEnrichmentMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEnrichmentMetrics(reg)
	m.ObserveDuration("fetch", 250*time.Millisecond)
	m.IncSuccess("fetch")
	m.IncFailure("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "enrichment_step_success", map[string]string{"step": "fetch"}); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (err %v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "enrichment_step_failure", map[string]string{"step": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected failure=1 under unknown, got %f (err %v)", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewSyncMetrics(nil).Observe("refresh", OutcomeOK, time.Second)
	NewEnrichmentMetrics(nil).IncSuccess("fetch")
	var m *SyncMetrics
	m.Observe("refresh", OutcomeError, time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
