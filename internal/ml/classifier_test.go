package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTree_Validation(t *testing.T) {
	tests := []struct {
		name      string
		left      []int
		right     []int
		feature   []int
		threshold []float64
		value     [][]float64
	}{
		{"no nodes", nil, nil, nil, nil, nil},
		{"ragged arrays", []int{-1}, []int{-1, -1}, []int{-2}, []float64{-2}, [][]float64{{1, 0}}},
		{"leaf class width", []int{-1}, []int{-1}, []int{-2}, []float64{-2}, [][]float64{{1, 0, 0}}},
		{"child points back", []int{1, 0, -1}, []int{2, -1, -1}, []int{0, -2, -2}, []float64{0, -2, -2}, [][]float64{{1, 1}, {1, 0}, {0, 1}}},
		{"child out of range", []int{1, -1, -1}, []int{3, -1, -1}, []int{0, -2, -2}, []float64{0, -2, -2}, [][]float64{{1, 1}, {1, 0}, {0, 1}}},
		{"feature out of range", []int{1, -1, -1}, []int{2, -1, -1}, []int{4, -2, -2}, []float64{0, -2, -2}, [][]float64{{1, 1}, {1, 0}, {0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTree(tt.left, tt.right, tt.feature, tt.threshold, tt.value, 2, 2)
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

func TestTree_ThresholdGoesLeft(t *testing.T) {
	tree, err := NewTree(
		[]int{1, -1, -1},
		[]int{2, -1, -1},
		[]int{0, -2, -2},
		[]float64{0.5, -2, -2},
		[][]float64{{5, 5}, {4, 0}, {0, 6}},
		1, 2,
	)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, tree.proba([]float64{0.5}))
	assert.Equal(t, []float64{0, 1}, tree.proba([]float64{0.51}))
}

func TestTreeEnsemble_AveragesTrees(t *testing.T) {
	stump := func(threshold float64) *Tree {
		tree, err := NewTree(
			[]int{1, -1, -1},
			[]int{2, -1, -1},
			[]int{0, -2, -2},
			[]float64{threshold, -2, -2},
			[][]float64{{2, 2}, {3, 1}, {0, 4}},
			1, 2,
		)
		require.NoError(t, err)
		return tree
	}

	forest, err := NewTreeEnsemble(ClassifierRandomForest, []*Tree{stump(0), stump(1), stump(2)}, []int{0, 1}, 1)
	require.NoError(t, err)

	proba, err := forest.PredictProba([]float64{1.5})
	require.NoError(t, err)
	// Two trees go right, one left.
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, proba, 1e-9)

	class, err := forest.Predict([]float64{1.5})
	require.NoError(t, err)
	assert.Equal(t, 1, class)

	class, err = forest.Predict([]float64{-1})
	require.NoError(t, err)
	assert.Equal(t, 0, class)
}

func TestTreeEnsemble_TieBreaksToFirstClass(t *testing.T) {
	leaf, err := NewTree([]int{-1}, []int{-1}, []int{-2}, []float64{-2}, [][]float64{{0, 3, 3}}, 1, 3)
	require.NoError(t, err)

	forest, err := NewTreeEnsemble(ClassifierDecisionTree, []*Tree{leaf}, []int{0, 1, 2}, 1)
	require.NoError(t, err)

	class, err := forest.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 1, class)
}

func TestNewTreeEnsemble_Validation(t *testing.T) {
	leaf2, err := NewTree([]int{-1}, []int{-1}, []int{-2}, []float64{-2}, [][]float64{{1, 0}}, 1, 2)
	require.NoError(t, err)

	_, err = NewTreeEnsemble(ClassifierRandomForest, nil, []int{0, 1}, 1)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewTreeEnsemble(ClassifierDecisionTree, []*Tree{leaf2, leaf2}, []int{0, 1}, 1)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewTreeEnsemble(ClassifierRandomForest, []*Tree{leaf2}, []int{0, 1, 2}, 1)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewTreeEnsemble(ClassifierRandomForest, []*Tree{leaf2}, []int{0, 1}, 3)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestTreeEnsemble_ShapeMismatch(t *testing.T) {
	leaf, err := NewTree([]int{-1}, []int{-1}, []int{-2}, []float64{-2}, [][]float64{{1, 0}}, 2, 2)
	require.NoError(t, err)
	forest, err := NewTreeEnsemble(ClassifierDecisionTree, []*Tree{leaf}, []int{0, 1}, 2)
	require.NoError(t, err)

	_, err = forest.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	lr, err := NewLogisticRegression(
		[][]float64{{1, 0}, {0, 1}, {-1, -1}},
		[]float64{0, 0, 0.5},
		[]int{0, 1, 2},
		2,
	)
	require.NoError(t, err)

	tests := []struct {
		x    []float64
		want int
	}{
		{[]float64{2, 1}, 0},
		{[]float64{1, 2}, 1},
		{[]float64{-1, -1}, 2},
		{[]float64{1, 1}, 0}, // tie between 0 and 1
	}
	for _, tt := range tests {
		got, err := lr.Predict(tt.x)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "x=%v", tt.x)
	}

	_, err = lr.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLogisticRegression_Binary(t *testing.T) {
	lr, err := NewLogisticRegression([][]float64{{2}}, []float64{-1}, []int{0, 1}, 1)
	require.NoError(t, err)

	got, err := lr.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = lr.Predict([]float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestNewLogisticRegression_Validation(t *testing.T) {
	_, err := NewLogisticRegression(nil, nil, nil, 2)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewLogisticRegression([][]float64{{1, 2}}, []float64{0, 0}, []int{0, 1}, 2)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewLogisticRegression([][]float64{{1}}, []float64{0}, []int{0, 1}, 2)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewLogisticRegression([][]float64{{1, 2}}, []float64{0}, []int{0}, 2)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestWithImportances(t *testing.T) {
	lr, err := NewLogisticRegression([][]float64{{2, 1}}, []float64{0}, []int{0, 1}, 2)
	require.NoError(t, err)

	var plain Classifier = lr
	_, ok := plain.(ImportanceAwareClassifier)
	assert.False(t, ok)

	aware, err := WithImportances(lr, []float64{0.7, 0.3})
	require.NoError(t, err)
	assert.Equal(t, 2, aware.NumFeatures())

	weights := aware.FeatureImportances()
	weights[0] = 0
	assert.Equal(t, []float64{0.7, 0.3}, aware.FeatureImportances())

	_, err = WithImportances(lr, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestClassDecoder(t *testing.T) {
	d, err := NewClassDecoder([]string{"A", "B"})
	require.NoError(t, err)

	label, err := d.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, "B", label)

	_, err = d.Decode(2)
	assert.ErrorIs(t, err, ErrUnknownEncoding)
	_, err = d.Decode(-1)
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	labels := d.Labels()
	labels[0] = "changed"
	assert.Equal(t, []string{"A", "B"}, d.Labels())

	_, err = NewClassDecoder(nil)
	assert.ErrorIs(t, err, ErrInvalidArtifact)
	_, err = NewClassDecoder([]string{"A", "A"})
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
