package ml

import (
	"os"
	"path/filepath"
	"testing"

	"migraine-sense/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shippedArtifacts = "../../models"

func TestLoadPipeline_ShippedModel(t *testing.T) {
	p, err := LoadPipeline(shippedArtifacts)
	require.NoError(t, err)

	assert.Len(t, p.FeatureNames(), 15)
	assert.Equal(t, "Age", p.FeatureNames()[0])
	assert.True(t, p.HasImportances())

	md := p.Metadata()
	assert.Equal(t, "2025.10.1", md.Version)
	assert.Equal(t, ClassifierRandomForest, md.ModelType)
	assert.Len(t, md.Features, 15)

	profiles := []struct {
		name   string
		values []float64
		want   string
	}{
		{"Basilar-Type Aura", []float64{32, 2, 1, 1, 1, 3, 0, 1, 0, 0, 1, 0, 0, 0, 0}, "Basilar-type aura"},
		{"Familial Hemiplegic Migraine", []float64{21, 1, 1, 1, 1, 2, 0, 1, 0, 0, 0, 0, 0, 0, 1}, "Familial hemiplegic migraine"},
		{"Migraine Without Aura", []float64{35, 2, 4, 1, 1, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0}, "Migraine without aura"},
		{"Sporadic Hemiplegic Migraine", []float64{21, 1, 1, 1, 1, 2, 0, 1, 0, 0, 0, 0, 0, 0, 0}, "Sporadic hemiplegic migraine"},
		{"Typical Aura With Migraine", []float64{32, 1, 2, 1, 1, 2, 0, 2, 0, 0, 0, 0, 0, 0, 0}, "Typical aura with migraine"},
		{"Typical Aura Without Migraine", []float64{26, 1, 2, 0, 0, 0, 0, 3, 1, 0, 0, 0, 0, 0, 0}, "Typical aura without migraine"},
	}

	for _, tt := range profiles {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Predict(tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Label)
			require.Len(t, result.Importances, 15)
			assert.Equal(t, "Frequency", result.Importances[0].Name)
		})
	}
}

func TestLoadPipeline_ShippedImportanceTies(t *testing.T) {
	p, err := LoadPipeline(shippedArtifacts)
	require.NoError(t, err)

	result, err := p.Predict([]float64{32, 2, 1, 1, 1, 3, 0, 1, 0, 0, 1, 0, 0, 0, 0})
	require.NoError(t, err)

	pos := make(map[string]int, len(result.Importances))
	for i, r := range result.Importances {
		pos[r.Name] = i
	}
	// Duration and Intensity share a weight, as do Ataxia and Conscience.
	assert.Less(t, pos["Duration"], pos["Intensity"])
	assert.Less(t, pos["Ataxia"], pos["Conscience"])
}

// copyArtifacts copies the shipped artifacts into a temp dir so tests can
// corrupt individual files.
func copyArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{
		common.ScalerFile,
		common.ModelFile,
		common.LabelEncoderFile,
		common.SelectedFeaturesFile,
		common.ModelMetadataFile,
	} {
		data, err := os.ReadFile(filepath.Join(shippedArtifacts, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadArtifacts_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"scaler not json", common.ScalerFile, `{"kind": `},
		{"scaler unknown kind", common.ScalerFile, `{"kind": "robust", "mean": [1], "scale": [1]}`},
		{"scaler missing scale", common.ScalerFile, `{"kind": "standard", "mean": [1, 2]}`},
		{"model missing trees", common.ModelFile, `{"kind": "random_forest", "n_features": 15}`},
		{"model missing coef", common.ModelFile, `{"kind": "logistic_regression", "n_features": 15, "intercept": [0]}`},
		{"label encoder empty", common.LabelEncoderFile, `{"classes": []}`},
		{"features not strings", common.SelectedFeaturesFile, `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := copyArtifacts(t)
			writeArtifact(t, dir, tt.file, tt.content)

			_, err := LoadArtifacts(dir)
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

func TestLoadPipeline_InconsistentArtifacts(t *testing.T) {
	t.Run("feature list narrower than scaler", func(t *testing.T) {
		dir := copyArtifacts(t)
		writeArtifact(t, dir, common.SelectedFeaturesFile, `["Age", "Duration"]`)

		_, err := LoadPipeline(dir)
		assert.ErrorIs(t, err, ErrInvalidArtifact)
	})

	t.Run("importances misaligned", func(t *testing.T) {
		dir := copyArtifacts(t)
		writeArtifact(t, dir, common.ModelFile, `{
			"kind": "decision_tree",
			"n_features": 15,
			"feature_importances": [1.0],
			"trees": [{"children_left": [-1], "children_right": [-1], "feature": [-2], "threshold": [-2], "value": [[1, 0]]}]
		}`)

		_, err := LoadArtifacts(dir)
		assert.ErrorIs(t, err, ErrInvalidArtifact)
	})

	t.Run("model classes outnumber labels", func(t *testing.T) {
		dir := copyArtifacts(t)
		writeArtifact(t, dir, common.LabelEncoderFile, `{"classes": ["Migraine without aura", "Other"]}`)

		_, err := LoadArtifacts(dir)
		assert.ErrorIs(t, err, ErrInvalidArtifact)
		assert.ErrorContains(t, err, "has no label")
	})

	t.Run("explicit class index beyond labels", func(t *testing.T) {
		dir := copyArtifacts(t)
		writeArtifact(t, dir, common.ScalerFile, `{"kind": "standard", "mean": [0, 0], "scale": [1, 1]}`)
		writeArtifact(t, dir, common.SelectedFeaturesFile, `["Frequency", "Visual"]`)
		writeArtifact(t, dir, common.LabelEncoderFile, `{"classes": ["Migraine Without Aura", "Typical Aura Without Migraine"]}`)
		writeArtifact(t, dir, common.ModelFile, `{
			"kind": "logistic_regression",
			"n_features": 2,
			"classes": [0, 5],
			"coef": [[-1.5, 2.0]],
			"intercept": [0.1]
		}`)

		_, err := LoadPipeline(dir)
		assert.ErrorIs(t, err, ErrInvalidArtifact)
	})

	t.Run("missing file", func(t *testing.T) {
		dir := copyArtifacts(t)
		require.NoError(t, os.Remove(filepath.Join(dir, common.ScalerFile)))

		_, err := LoadArtifacts(dir)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadPipeline_LogisticRegressionHasNoImportances(t *testing.T) {
	dir := copyArtifacts(t)
	writeArtifact(t, dir, common.ScalerFile, `{"kind": "standard", "mean": [0, 0], "scale": [1, 1]}`)
	writeArtifact(t, dir, common.SelectedFeaturesFile, `["Frequency", "Visual"]`)
	writeArtifact(t, dir, common.LabelEncoderFile, `{"classes": ["Migraine Without Aura", "Typical Aura Without Migraine"]}`)
	writeArtifact(t, dir, common.ModelFile, `{
		"kind": "logistic_regression",
		"n_features": 2,
		"coef": [[-1.5, 2.0]],
		"intercept": [0.1]
	}`)

	p, err := LoadPipeline(dir)
	require.NoError(t, err)
	assert.False(t, p.HasImportances())

	result, err := p.Predict([]float64{4, 0})
	require.NoError(t, err)
	assert.Equal(t, "Migraine Without Aura", result.Label)
	assert.Nil(t, result.Importances)

	result, err = p.Predict([]float64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, "Typical Aura Without Migraine", result.Label)
}

func TestLoadArtifacts_MetadataOptional(t *testing.T) {
	dir := copyArtifacts(t)
	require.NoError(t, os.Remove(filepath.Join(dir, common.ModelMetadataFile)))

	a, err := LoadArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, "unknown", a.Metadata.Version)
	assert.Equal(t, ClassifierRandomForest, a.Metadata.ModelType)
}

func TestLoadModelMetadata_FallsBackToNewestVersioned(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "model_metadata_20250101.json", `{"version": "old"}`)
	writeArtifact(t, dir, "model_metadata_20250901.json", `{"version": "new"}`)

	md, err := loadModelMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, "new", md.Version)

	_, err = loadModelMetadata(t.TempDir())
	assert.Error(t, err)
}

func TestSchemaResource(t *testing.T) {
	assert.Equal(t, "scaler.schema.json", schemaResource("scaler.json"))
	assert.Equal(t, "selected_features.schema.json", schemaResource("selected_features.json"))
}
