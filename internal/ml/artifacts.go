package ml

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"migraine-sense/internal/common"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type scalerFile struct {
	Kind  string    `json:"kind"`
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
	Min   []float64 `json:"min"`
}

type treeFile struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type modelFile struct {
	Kind               string      `json:"kind"`
	NFeatures          int         `json:"n_features"`
	Classes            []int       `json:"classes"`
	FeatureImportances []float64   `json:"feature_importances"`
	Trees              []treeFile  `json:"trees"`
	Coef               [][]float64 `json:"coef"`
	Intercept          []float64   `json:"intercept"`
}

type labelEncoderFile struct {
	Classes []string `json:"classes"`
}

// Artifacts holds the decoded, validated model artifacts.
type Artifacts struct {
	Features   []string
	Scaler     Scaler
	Classifier Classifier
	Decoder    LabelDecoder
	Metadata   ModelMetadata
}

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compiledSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		names := []string{
			common.ScalerFile,
			common.ModelFile,
			common.LabelEncoderFile,
			common.SelectedFeaturesFile,
		}

		compiled := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			resource := schemaResource(name)
			raw, err := schemaFS.ReadFile("schemas/" + resource)
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", resource, err)
				return
			}
			if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", resource, err)
				return
			}
			schema, err := compiler.Compile(resource)
			if err != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", resource, err)
				return
			}
			compiled[name] = schema
		}
		schemas = compiled
	})
	return schemas, schemaErr
}

// schemaResource maps scaler.json to scaler.schema.json.
func schemaResource(artifact string) string {
	ext := filepath.Ext(artifact)
	return artifact[:len(artifact)-len(ext)] + ".schema" + ext
}

// readArtifact validates the named file against its schema and decodes it into out.
func readArtifact(dir, name string, out interface{}) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	compiled, err := compiledSchemas()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", ErrInvalidArtifact, name, err)
	}
	if err := compiled[name].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidArtifact, name, err)
	}
	return nil
}

// LoadArtifacts reads and cross-checks every artifact in dir. Metadata is
// optional; defaults are used when it is missing.
func LoadArtifacts(dir string) (*Artifacts, error) {
	var features []string
	if err := readArtifact(dir, common.SelectedFeaturesFile, &features); err != nil {
		return nil, err
	}

	var sf scalerFile
	if err := readArtifact(dir, common.ScalerFile, &sf); err != nil {
		return nil, err
	}
	scaler, err := buildScaler(sf)
	if err != nil {
		return nil, fmt.Errorf("build scaler: %w", err)
	}

	var mf modelFile
	if err := readArtifact(dir, common.ModelFile, &mf); err != nil {
		return nil, err
	}
	classifier, err := buildClassifier(mf)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	var lf labelEncoderFile
	if err := readArtifact(dir, common.LabelEncoderFile, &lf); err != nil {
		return nil, err
	}
	decoder, err := NewClassDecoder(lf.Classes)
	if err != nil {
		return nil, fmt.Errorf("build label decoder: %w", err)
	}
	if err := checkClasses(classifier, len(lf.Classes)); err != nil {
		return nil, err
	}

	md := defaultMetadata()
	if loaded, err := loadModelMetadata(dir); err != nil {
		log.Warn().Err(err).Str("artifacts_dir", dir).Msg("failed to load model metadata, using defaults")
	} else {
		md = *loaded
	}
	if md.ModelType == "" {
		md.ModelType = mf.Kind
	}
	md.Features = append([]string(nil), features...)

	return &Artifacts{
		Features:   features,
		Scaler:     scaler,
		Classifier: classifier,
		Decoder:    decoder,
		Metadata:   md,
	}, nil
}

// LoadPipeline loads the artifacts in dir and assembles a Pipeline.
func LoadPipeline(dir string, opts ...Option) (*Pipeline, error) {
	a, err := LoadArtifacts(dir)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("artifacts_dir", dir).
		Str("model_type", a.Metadata.ModelType).
		Str("model_version", a.Metadata.Version).
		Msg("model artifacts loaded")

	opts = append([]Option{WithMetadata(a.Metadata)}, opts...)
	return NewPipeline(a.Features, a.Scaler, a.Classifier, a.Decoder, opts...)
}

// checkClasses rejects a classifier that can emit an index the label encoder
// cannot decode.
func checkClasses(c Classifier, nLabels int) error {
	cl, ok := c.(classLister)
	if !ok {
		return nil
	}
	for _, idx := range cl.Classes() {
		if idx < 0 || idx >= nLabels {
			return fmt.Errorf("%w: model class %d has no label, encoder knows %d",
				ErrInvalidArtifact, idx, nLabels)
		}
	}
	return nil
}

func buildScaler(sf scalerFile) (Scaler, error) {
	switch sf.Kind {
	case ScalerStandard:
		return NewStandardScaler(sf.Mean, sf.Scale)
	case ScalerMinMax:
		return NewMinMaxScaler(sf.Min, sf.Scale)
	default:
		return nil, fmt.Errorf("%w: unknown scaler kind %q", ErrInvalidArtifact, sf.Kind)
	}
}

func buildClassifier(mf modelFile) (Classifier, error) {
	var (
		c   Classifier
		err error
	)

	switch mf.Kind {
	case ClassifierRandomForest, ClassifierDecisionTree:
		c, err = buildTreeEnsemble(mf)
	case ClassifierLogisticRegression:
		classes := mf.Classes
		if len(classes) == 0 {
			n := len(mf.Coef)
			if n == 1 {
				n = 2
			}
			classes = identityClasses(n)
		}
		c, err = NewLogisticRegression(mf.Coef, mf.Intercept, classes, mf.NFeatures)
	default:
		return nil, fmt.Errorf("%w: unknown classifier kind %q", ErrInvalidArtifact, mf.Kind)
	}
	if err != nil {
		return nil, err
	}

	if len(mf.FeatureImportances) > 0 {
		return WithImportances(c, mf.FeatureImportances)
	}
	return c, nil
}

func buildTreeEnsemble(mf modelFile) (*TreeEnsemble, error) {
	nClasses := len(mf.Classes)
	if nClasses == 0 && len(mf.Trees) > 0 && len(mf.Trees[0].Value) > 0 {
		nClasses = len(mf.Trees[0].Value[0])
	}

	trees := make([]*Tree, 0, len(mf.Trees))
	for i, tf := range mf.Trees {
		t, err := NewTree(tf.ChildrenLeft, tf.ChildrenRight, tf.Feature, tf.Threshold, tf.Value, mf.NFeatures, nClasses)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, t)
	}

	classes := mf.Classes
	if len(classes) == 0 {
		classes = identityClasses(nClasses)
	}
	return NewTreeEnsemble(mf.Kind, trees, classes, mf.NFeatures)
}
