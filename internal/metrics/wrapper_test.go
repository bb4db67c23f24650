package metrics

import (
	"testing"

	"migraine-sense/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// The wrapper is what the pipeline records through.
var _ ml.MetricsInterface = (*MetricsWrapper)(nil)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if v := testutil.ToFloat64(metrics.MLPredictions); v != 0 {
		t.Errorf("Expected initial predictions 0, got %f", v)
	}

	wrapper.MLPredictionsInc()
	wrapper.MLPredictionsInc()
	wrapper.MLFailuresInc()
	wrapper.MLShapeMismatchInc()

	if v := testutil.ToFloat64(metrics.MLPredictions); v != 2 {
		t.Errorf("Expected predictions 2, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.MLFailures); v != 1 {
		t.Errorf("Expected failures 1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.MLShapeMismatch); v != 1 {
		t.Errorf("Expected shape mismatches 1, got %f", v)
	}
}

func TestMetricsWrapper_Labels(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.MLLabelObserve("Migraine without aura")
	wrapper.MLLabelObserve("Migraine without aura")
	wrapper.MLLabelObserve("Other")

	if v := testutil.ToFloat64(metrics.MLLabels.WithLabelValues("Migraine without aura")); v != 2 {
		t.Errorf("Expected 2 observations, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.MLLabels.WithLabelValues("Other")); v != 1 {
		t.Errorf("Expected 1 observation, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.MLLabels); n != 2 {
		t.Errorf("Expected 2 label series, got %d", n)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.MLModelAgeSet(3600)
	if v := testutil.ToFloat64(metrics.MLModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	clients := wrapper.WSClients()
	clients.Add(1)
	clients.Add(1)
	clients.Add(-1)
	if v := testutil.ToFloat64(metrics.WSClients); v != 1 {
		t.Errorf("Expected 1 websocket client, got %f", v)
	}

	clients.Set(0)
	if v := testutil.ToFloat64(metrics.WSClients); v != 0 {
		t.Errorf("Expected 0 websocket clients, got %f", v)
	}
}

func TestMetricsWrapper_HistogramOperations(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	for _, v := range []float64{0.0001, 0.002, 0.03} {
		wrapper.MLLatencyObserve(v)
	}
	if n := testutil.CollectAndCount(metrics.MLLatency); n != 1 {
		t.Errorf("Expected 1 latency series, got %d", n)
	}

	wrapper.HTTPObserve("/api/predict", 200, 0.01)
	wrapper.HTTPObserve("/api/predict", 422, 0.01)
	wrapper.HTTPObserve("/api/predict", 200, 0.02)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/predict", "200")); v != 2 {
		t.Errorf("Expected 2 OK requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/api/predict", "422")); v != 1 {
		t.Errorf("Expected 1 rejected request, got %f", v)
	}
}

func TestMetricsWrapper_CatalogAndHistory(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.CatalogMissInc()
	wrapper.HistoryWriteInc(true)
	wrapper.HistoryWriteInc(true)
	wrapper.HistoryWriteInc(false)

	if v := testutil.ToFloat64(metrics.CatalogMisses); v != 1 {
		t.Errorf("Expected 1 catalog miss, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HistoryWrites); v != 2 {
		t.Errorf("Expected 2 history writes, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HistoryFailures); v != 1 {
		t.Errorf("Expected 1 history failure, got %f", v)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	first := NewWithRegistry(prometheus.NewRegistry())
	second := NewWithRegistry(prometheus.NewRegistry())

	first.MLPredictions.Inc()
	if v := testutil.ToFloat64(second.MLPredictions); v != 0 {
		t.Errorf("Expected separate registries to be isolated, got %f", v)
	}
}
