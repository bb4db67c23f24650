package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"migraine-sense/internal/catalog"
	"migraine-sense/internal/common"
	"migraine-sense/internal/ml"
	"migraine-sense/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// errBadRequest marks request errors that map to 400.
var errBadRequest = errors.New("bad request")

// PredictionRequest is the JSON body of POST /api/predict. Exactly one of
// Features or Profile must be set.
type PredictionRequest struct {
	Features  []float64 `json:"features,omitempty" yaml:"features,omitempty"`
	Profile   string    `json:"profile,omitempty" yaml:"profile,omitempty"`
	RequestID string    `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// PredictionResponse is the result of POST /api/predict.
type PredictionResponse struct {
	RequestID    string             `json:"request_id" yaml:"request_id"`
	Label        string             `json:"label" yaml:"label"`
	Encoded      int                `json:"encoded" yaml:"encoded"`
	Importances  []ml.RankedFeature `json:"importances,omitempty" yaml:"importances,omitempty"`
	Info         []string           `json:"info" yaml:"info"`
	InfoFound    bool               `json:"info_found" yaml:"info_found"`
	InputProfile string             `json:"input_profile" yaml:"input_profile"`
	Latency      float64            `json:"latency_ms" yaml:"latency_ms"`
	Timestamp    time.Time          `json:"timestamp" yaml:"timestamp"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error" yaml:"error"`
}

// HealthStatus reports whether the server can serve predictions.
type HealthStatus struct {
	Healthy            bool      `json:"healthy" yaml:"healthy"`
	LastCheck          time.Time `json:"last_check" yaml:"last_check"`
	ModelLoaded        bool      `json:"model_loaded" yaml:"model_loaded"`
	ModelVersion       string    `json:"model_version" yaml:"model_version"`
	PredictionCount    int64     `json:"prediction_count" yaml:"prediction_count"`
	ErrorRate          float64   `json:"error_rate" yaml:"error_rate"`
	LastError          string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	HistoryEnabled     bool      `json:"history_enabled" yaml:"history_enabled"`
	WSClients          int       `json:"ws_clients" yaml:"ws_clients"`
	UncataloguedLabels []string  `json:"uncatalogued_labels,omitempty" yaml:"uncatalogued_labels,omitempty"`
	UptimeSeconds      float64   `json:"uptime_seconds" yaml:"uptime_seconds"`
}

// ModelInfo describes the loaded artifacts.
type ModelInfo struct {
	Version        string             `json:"version" yaml:"version"`
	ModelType      string             `json:"model_type" yaml:"model_type"`
	TrainedAt      time.Time          `json:"trained_at" yaml:"trained_at"`
	Accuracy       float64            `json:"accuracy" yaml:"accuracy"`
	TrainingRows   int                `json:"training_rows" yaml:"training_rows"`
	Features       []string           `json:"features" yaml:"features"`
	Labels         []string           `json:"labels" yaml:"labels"`
	HasImportances bool               `json:"has_importances" yaml:"has_importances"`
	Importances    []ml.RankedFeature `json:"importances,omitempty" yaml:"importances,omitempty"`
}

// LabelCoverage reports whether a decoder label has a catalog entry.
type LabelCoverage struct {
	Label      string `json:"label" yaml:"label"`
	Catalogued bool   `json:"catalogued" yaml:"catalogued"`
}

// HistoryStats summarizes stored predictions.
type HistoryStats struct {
	Total       int               `json:"total" yaml:"total"`
	LabelCounts map[string]uint64 `json:"label_counts" yaml:"label_counts"`
}

// outcome is one completed prediction with its catalog lookup.
type outcome struct {
	id           string
	inputProfile string
	result       *ml.PredictionResult
	info         []string
	infoFound    bool
	latency      time.Duration
	timestamp    time.Time
}

// resolveInput turns a profile name or a raw vector into the feature vector
// and the input profile label shown with the result.
func (s *Server) resolveInput(profile string, features []float64) (string, []float64, error) {
	switch {
	case profile != "" && features != nil:
		return "", nil, fmt.Errorf("%w: set either features or profile, not both", errBadRequest)
	case profile != "":
		p, err := s.catalog.LookupProfile(profile)
		if err != nil {
			return "", nil, err
		}
		return p.Name, p.Values, nil
	case features != nil:
		return common.ManualEntryProfile, features, nil
	default:
		return "", nil, fmt.Errorf("%w: features or profile is required", errBadRequest)
	}
}

// predict runs the pipeline, looks up catalog info, then records and
// publishes the prediction.
func (s *Server) predict(id, source, inputProfile string, features []float64) (*outcome, error) {
	if id == "" {
		id = uuid.NewString()
	}

	start := time.Now()
	result, err := s.predictor.Predict(features)
	latency := time.Since(start)
	if err != nil {
		s.failures.Add(1)
		s.lastError.Store(err.Error())
		log.Warn().Err(err).Str("request_id", id).Str("source", source).Msg("prediction failed")
		return nil, err
	}
	s.predictions.Add(1)

	info, found := s.catalog.Info(result.Label)
	if !found && s.metrics != nil {
		s.metrics.CatalogMissInc()
	}

	out := &outcome{
		id:           id,
		inputProfile: inputProfile,
		result:       result,
		info:         info,
		infoFound:    found,
		latency:      latency,
		timestamp:    time.Now().UTC(),
	}

	if s.history != nil {
		_, err := s.history.StorePrediction(storage.PredictionRecord{
			ID:          id,
			Timestamp:   out.timestamp,
			Source:      source,
			ProfileName: inputProfile,
			Features:    append([]float64(nil), features...),
			Label:       result.Label,
			Encoded:     result.Encoded,
			InfoFound:   found,
		})
		if err != nil {
			// History is best effort; the prediction itself succeeded.
			log.Error().Err(err).Str("request_id", id).Msg("failed to store prediction")
		}
		if s.metrics != nil {
			s.metrics.HistoryWriteInc(err == nil)
		}
	}

	s.hub.Publish(PredictionEvent{
		ID:           id,
		Source:       source,
		InputProfile: inputProfile,
		Label:        result.Label,
		Encoded:      result.Encoded,
		InfoFound:    found,
		Timestamp:    out.timestamp,
	})

	log.Info().
		Str("request_id", id).
		Str("source", source).
		Str("input_profile", inputProfile).
		Str("label", result.Label).
		Bool("info_found", found).
		Dur("latency", latency).
		Msg("prediction served")

	return out, nil
}

// statusFor maps prediction errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrShapeMismatch),
		errors.Is(err, ml.ErrInvalidFeature),
		errors.Is(err, catalog.ErrUnknownProfile):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %v", err))
		return
	}

	inputProfile, features, err := s.resolveInput(req.Profile, req.Features)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	out, err := s.predict(req.RequestID, "api", inputProfile, features)
	if err != nil {
		writeError(w, statusFor(err), fmt.Errorf("prediction failed: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		RequestID:    out.id,
		Label:        out.result.Label,
		Encoded:      out.result.Encoded,
		Importances:  out.result.Importances,
		Info:         out.info,
		InfoFound:    out.infoFound,
		InputProfile: out.inputProfile,
		Latency:      float64(out.latency.Microseconds()) / 1000,
		Timestamp:    out.timestamp,
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Profiles())
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	labels := s.predictor.Labels()
	coverage := make([]LabelCoverage, len(labels))
	for i, l := range labels {
		coverage[i] = LabelCoverage{Label: l, Catalogued: s.catalog.Has(l)}
	}
	writeJSON(w, http.StatusOK, coverage)
}

// handleHistory serves the newest records, or a time range when from/to
// (RFC 3339) are given.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("prediction history is disabled"))
		return
	}

	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		s.handleHistoryRange(w, q.Get("from"), q.Get("to"))
		return
	}

	limit := s.config.HistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	if limit > common.MaxHistoryLimit {
		limit = common.MaxHistoryLimit
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryRange(w http.ResponseWriter, fromRaw, toRaw string) {
	from := time.Unix(0, 0)
	to := time.Now()

	var err error
	if fromRaw != "" {
		if from, err = time.Parse(time.RFC3339, fromRaw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid from: %v", err))
			return
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid to: %v", err))
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, errors.New("to is before from"))
		return
	}

	records, err := s.history.GetPredictionsInRange(from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("prediction history is disabled"))
		return
	}

	total, err := s.history.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	counts, err := s.history.LabelCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryStats{Total: total, LabelCounts: counts})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	md := s.predictor.Metadata()
	writeJSON(w, http.StatusOK, ModelInfo{
		Version:        md.Version,
		ModelType:      md.ModelType,
		TrainedAt:      md.TrainedAt,
		Accuracy:       md.Accuracy,
		TrainingRows:   md.TrainingRows,
		Features:       s.predictor.FeatureNames(),
		Labels:         s.predictor.Labels(),
		HasImportances: s.predictor.HasImportances(),
		Importances:    s.predictor.Importances(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.healthStatus()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) healthStatus() HealthStatus {
	predictions := s.predictions.Load()
	failures := s.failures.Load()

	var errorRate float64
	if total := predictions + failures; total > 0 {
		errorRate = float64(failures) / float64(total)
	}

	health := HealthStatus{
		Healthy:         s.predictor != nil,
		LastCheck:       time.Now(),
		ModelLoaded:     s.predictor != nil,
		PredictionCount: predictions,
		ErrorRate:       errorRate,
		HistoryEnabled:  s.history != nil,
		WSClients:       s.hub.Clients(),
		UptimeSeconds:   time.Since(s.started).Seconds(),
	}
	if last, ok := s.lastError.Load().(string); ok {
		health.LastError = last
	}
	if s.predictor != nil {
		health.ModelVersion = s.predictor.Metadata().Version
		health.UncataloguedLabels = s.catalog.Missing(s.predictor.Labels())
	}
	return health
}
