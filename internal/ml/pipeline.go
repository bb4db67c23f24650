package ml

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the pipeline
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLShapeMismatchInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(float64)
	MLLabelObserve(string)
}

// PredictionResult is the outcome of a single prediction.
type PredictionResult struct {
	Label   string `json:"label"`
	Encoded int    `json:"encoded"`
	// Importances is nil when the classifier carries no importance data.
	Importances []RankedFeature `json:"importances,omitempty"`
}

// Pipeline runs scale → classify → decode over immutable, pre-fit artifacts.
type Pipeline struct {
	features   []string
	scaler     Scaler
	classifier Classifier
	decoder    LabelDecoder
	metadata   ModelMetadata
	metrics    MetricsInterface

	// ranked is resolved once from an ImportanceAwareClassifier, nil otherwise.
	ranked []RankedFeature
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records prediction metrics on m.
func WithMetrics(m MetricsInterface) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithMetadata attaches model metadata used for reporting and model age.
func WithMetadata(md ModelMetadata) Option {
	return func(p *Pipeline) {
		p.metadata = md
	}
}

// NewPipeline checks that all artifacts agree on the feature width and
// resolves the importance capability of the classifier.
func NewPipeline(features []string, scaler Scaler, classifier Classifier, decoder LabelDecoder, opts ...Option) (*Pipeline, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: feature list is empty", ErrInvalidArtifact)
	}
	if scaler == nil || classifier == nil || decoder == nil {
		return nil, fmt.Errorf("%w: scaler, classifier and decoder are required", ErrInvalidArtifact)
	}
	if scaler.NumFeatures() != len(features) {
		return nil, fmt.Errorf("%w: scaler expects %d features, feature list has %d",
			ErrInvalidArtifact, scaler.NumFeatures(), len(features))
	}
	if classifier.NumFeatures() != len(features) {
		return nil, fmt.Errorf("%w: classifier expects %d features, feature list has %d",
			ErrInvalidArtifact, classifier.NumFeatures(), len(features))
	}

	p := &Pipeline{
		features:   append([]string(nil), features...),
		scaler:     scaler,
		classifier: classifier,
		decoder:    decoder,
		metadata:   defaultMetadata(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if ia, ok := classifier.(ImportanceAwareClassifier); ok {
		ranked, err := RankImportances(p.features, ia.FeatureImportances())
		if err != nil {
			return nil, err
		}
		p.ranked = ranked
	}

	if p.metrics != nil && !p.metadata.TrainedAt.IsZero() {
		p.metrics.MLModelAgeSet(time.Since(p.metadata.TrainedAt).Seconds())
	}

	log.Info().
		Int("features", len(p.features)).
		Int("labels", len(decoder.Labels())).
		Bool("importances", p.ranked != nil).
		Str("model_version", p.metadata.Version).
		Msg("inference pipeline ready")

	return p, nil
}

// Predict scales the vector, classifies it and decodes the label. On error no
// partial result is returned.
func (p *Pipeline) Predict(features []float64) (*PredictionResult, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is nil")
	}

	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	result, err := p.predict(features)
	if err != nil {
		if p.metrics != nil {
			p.metrics.MLFailuresInc()
			if errors.Is(err, ErrShapeMismatch) {
				p.metrics.MLShapeMismatchInc()
			}
		}
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLLabelObserve(result.Label)
	}

	log.Debug().
		Floats64("features", features).
		Int("encoded", result.Encoded).
		Str("label", result.Label).
		Msg("prediction successful")

	return result, nil
}

func (p *Pipeline) predict(features []float64) (*PredictionResult, error) {
	scaled, err := p.scaler.Transform(features)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}

	encoded, err := p.classifier.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	label, err := p.decoder.Decode(encoded)
	if err != nil {
		log.Error().Err(err).Int("encoded", encoded).Msg("classifier and label decoder disagree")
		return nil, fmt.Errorf("decode: %w", err)
	}

	result := &PredictionResult{Label: label, Encoded: encoded}
	if p.ranked != nil {
		result.Importances = append([]RankedFeature(nil), p.ranked...)
	}
	return result, nil
}

// FeatureNames returns the ordered feature schema.
func (p *Pipeline) FeatureNames() []string {
	return append([]string(nil), p.features...)
}

// Labels returns every label the decoder knows.
func (p *Pipeline) Labels() []string {
	return p.decoder.Labels()
}

// HasImportances reports whether predictions carry ranked importances.
func (p *Pipeline) HasImportances() bool {
	return p.ranked != nil
}

// Importances returns the ranked importances, or nil.
func (p *Pipeline) Importances() []RankedFeature {
	if p.ranked == nil {
		return nil
	}
	return append([]RankedFeature(nil), p.ranked...)
}

// Metadata returns the model metadata.
func (p *Pipeline) Metadata() ModelMetadata {
	md := p.metadata
	md.Features = append([]string(nil), p.metadata.Features...)
	return md
}
