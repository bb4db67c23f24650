// Package metrics provides Prometheus metrics for the migraine subtype
// classifier. It covers the inference pipeline, the info catalog, prediction
// history and the HTTP surface, all exposed through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inference metrics
	MLPredictions   prometheus.Counter     // Total number of successful predictions
	MLFailures      prometheus.Counter     // Total number of failed predictions
	MLShapeMismatch prometheus.Counter     // Predictions rejected for a wrong vector width
	MLLatency       prometheus.Histogram   // End-to-end pipeline latency in seconds
	MLModelAge      prometheus.Gauge       // Age of the loaded model in seconds
	MLLabels        *prometheus.CounterVec // Predicted labels by name

	// Catalog metrics
	CatalogMisses prometheus.Counter // Predicted labels with no catalog entry

	// History metrics
	HistoryWrites   prometheus.Counter // Prediction records written
	HistoryFailures prometheus.Counter // Prediction records that failed to persist

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route
	WSClients    prometheus.Gauge         // Connected websocket clients
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	return newMetrics(registry)
}

func newMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of successful predictions",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of failed predictions",
		}),
		MLShapeMismatch: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_shape_mismatch_total",
			Help: "Predictions rejected because the feature vector had the wrong width",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds (scale, classify, decode)",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		MLLabels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ml_predicted_labels_total",
			Help: "Predicted migraine subtypes by label",
		}, []string{"label"}),
		CatalogMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_misses_total",
			Help: "Predicted labels with no info catalog entry",
		}),
		HistoryWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_writes_total",
			Help: "Prediction records written to history",
		}),
		HistoryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_failures_total",
			Help: "Prediction records that could not be written to history",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Connected websocket clients",
		}),
	}
}
