package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "test-job"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.AddItems(job, "created", 3)
	metrics.AddItems(job, "failed", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "digimenu_job_success", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "digimenu_job_failure", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "digimenu_job_items_total", "outcome", "created"); err != nil {
		t.Fatalf("fetch items: %v", err)
	} else if got != 3 {
		t.Fatalf("expected 3 created items, got %f", got)
	}
	if _, err := fetchCounterValue(mfs, "digimenu_job_items_total", "outcome", "failed"); err == nil {
		t.Fatalf("zero additions should not create a series")
	}

	if got, err := fetchHistogramSum(mfs, "digimenu_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestPricingMetricsRecordsRecomputeOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewPricingMetrics(reg)
	pm.ObserveActivation(65000)
	pm.ObserveRecompute(10, 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "digimenu_price_recompute_items_total", "outcome", "updated"); err != nil || got != 10 {
		t.Fatalf("expected updated=10, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "digimenu_price_recompute_items_total", "outcome", "failed"); err != nil || got != 2 {
		t.Fatalf("expected failed=2, got %f err=%v", got, err)
	}
	gauge := findMetricFamily(mfs, "digimenu_exchange_rate_active")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 65000 {
		t.Fatalf("expected active rate gauge 65000")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cm *CronJobMetrics
	cm.IncSuccess("job")
	cm.AddItems("job", "created", 1)
	var pm *PricingMetrics
	pm.ObserveRecompute(1, 1)
	NewPricingMetrics(nil).ObserveActivation(1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
