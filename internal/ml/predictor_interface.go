// Package ml provides the migraine subtype inference pipeline.
// It loads pre-fit model artifacts (scaler, classifier, label decoder and the
// ordered feature list) exported by the training project, and turns a raw
// symptom feature vector into a decoded subtype label with optional ranked
// feature importances.
//
// Artifacts are loaded once and never mutated, so a Pipeline is safe for
// concurrent use by any number of callers.
package ml

// PredictorInterface defines the interface for subtype predictors used by the
// presentation layer.
type PredictorInterface interface {
	// Predict scales, classifies and decodes a feature vector.
	// Returns the decoded label, or an error if any stage fails.
	Predict(features []float64) (*PredictionResult, error)

	FeatureNames() []string
	Labels() []string
	HasImportances() bool
	Importances() []RankedFeature
	Metadata() ModelMetadata
}

var _ PredictorInterface = (*Pipeline)(nil)

// Scaler is a pre-fit numeric transform applied before inference.
type Scaler interface {
	// Transform returns a new scaled vector. The input is never modified.
	Transform(features []float64) ([]float64, error)
	// NumFeatures is the input width the scaler was fit on.
	NumFeatures() int
}

// Classifier is a pre-fit model that maps a scaled vector to an encoded class index.
type Classifier interface {
	Predict(scaled []float64) (int, error)
	NumFeatures() int
}

// classLister is implemented by classifiers that know the encoded class
// indices they can emit.
type classLister interface {
	Classes() []int
}

// ImportanceAwareClassifier is a Classifier that also exposes per-feature
// importance weights, aligned with the feature order.
type ImportanceAwareClassifier interface {
	Classifier
	FeatureImportances() []float64
}

// LabelDecoder maps an encoded class index back to a human readable label.
type LabelDecoder interface {
	Decode(index int) (string, error)
	Labels() []string
}
