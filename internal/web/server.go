// Package web serves the migraine subtype classifier over HTTP: an HTML form
// page, a JSON prediction API, model and health endpoints, Prometheus metrics
// and a websocket feed of predictions.
package web

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"migraine-sense/internal/catalog"
	"migraine-sense/internal/common"
	"migraine-sense/internal/metrics"
	"migraine-sense/internal/ml"
	"migraine-sense/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// History is the subset of the prediction store used by the server.
type History interface {
	StorePrediction(rec storage.PredictionRecord) (storage.PredictionRecord, error)
	Recent(n int) ([]storage.PredictionRecord, error)
	GetPredictionsInRange(start, end time.Time) ([]storage.PredictionRecord, error)
	LabelCounts() (map[string]uint64, error)
	Count() (int, error)
}

// Config holds the HTTP settings for a Server.
type Config struct {
	ListenPort   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	HistoryLimit int
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server wires the pipeline, catalog and optional history behind a mux router.
type Server struct {
	predictor ml.PredictorInterface
	catalog   *catalog.Catalog
	history   History                 // nil when history is disabled
	metrics   *metrics.MetricsWrapper // nil when metrics are disabled
	hub       *Hub
	router    *mux.Router
	server    *http.Server
	config    Config
	started   time.Time

	predictions atomic.Int64
	failures    atomic.Int64
	lastError   atomic.Value // string
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every prediction in h.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithMetrics records HTTP and catalog metrics on m.
func WithMetrics(m *metrics.MetricsWrapper) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer builds the router and HTTP server. Call Start to serve.
func NewServer(predictor ml.PredictorInterface, cat *catalog.Catalog, cfg Config, opts ...Option) *Server {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = common.DefaultHistoryLimit
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		predictor: predictor,
		catalog:   cat,
		config:    cfg,
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var gauge metrics.MetricsGauge
	if s.metrics != nil {
		gauge = s.metrics.WSClients()
	}
	s.hub = NewHub(gauge)

	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handleFormPredict).Methods(http.MethodPost)
	r.HandleFunc("/api/predict", s.handleAPIPredict).Methods(http.MethodPost)
	r.HandleFunc("/api/profiles", s.handleProfiles).Methods(http.MethodGet)
	r.HandleFunc("/api/labels", s.handleLabels).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history/stats", s.handleHistoryStats).Methods(http.MethodGet)
	r.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/ws", s.hub).Methods(http.MethodGet)
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving HTTP requests and blocks until the server stops.
func (s *Server) Start() error {
	s.hub.Start()
	log.Info().Str("addr", s.server.Addr).Msg("starting web server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response code for metrics. It forwards
// Hijack so websocket upgrades still work behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.HTTPObserve(route, rec.status, elapsed.Seconds())
		}

		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}
