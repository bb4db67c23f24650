package ml

import (
	"fmt"
)

const (
	ClassifierRandomForest       = "random_forest"
	ClassifierDecisionTree       = "decision_tree"
	ClassifierLogisticRegression = "logistic_regression"
)

// Tree is a fitted binary decision tree in array form. Node 0 is the root and
// a node with both children set to -1 is a leaf. Children always have a higher
// index than their parent, which keeps traversal finite.
type Tree struct {
	childrenLeft  []int
	childrenRight []int
	feature       []int
	threshold     []float64
	value         [][]float64
	nFeatures     int
	nClasses      int
}

// NewTree validates the node arrays against the feature and class counts.
func NewTree(left, right, feature []int, threshold []float64, value [][]float64, nFeatures, nClasses int) (*Tree, error) {
	n := len(left)
	if n == 0 {
		return nil, fmt.Errorf("%w: tree has no nodes", ErrInvalidArtifact)
	}
	if len(right) != n || len(feature) != n || len(threshold) != n || len(value) != n {
		return nil, fmt.Errorf("%w: tree node arrays differ in length", ErrInvalidArtifact)
	}

	for i := 0; i < n; i++ {
		l, r := left[i], right[i]
		if l == -1 && r == -1 {
			if len(value[i]) != nClasses {
				return nil, fmt.Errorf("%w: leaf %d has %d class values, want %d",
					ErrInvalidArtifact, i, len(value[i]), nClasses)
			}
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return nil, fmt.Errorf("%w: node %d has invalid children (%d, %d)", ErrInvalidArtifact, i, l, r)
		}
		if feature[i] < 0 || feature[i] >= nFeatures {
			return nil, fmt.Errorf("%w: node %d splits on feature %d of %d",
				ErrInvalidArtifact, i, feature[i], nFeatures)
		}
	}

	return &Tree{
		childrenLeft:  left,
		childrenRight: right,
		feature:       feature,
		threshold:     threshold,
		value:         value,
		nFeatures:     nFeatures,
		nClasses:      nClasses,
	}, nil
}

// proba returns the normalized class distribution of the leaf reached by x.
func (t *Tree) proba(x []float64) []float64 {
	node := 0
	for t.childrenLeft[node] != -1 {
		if x[t.feature[node]] <= t.threshold[node] {
			node = t.childrenLeft[node]
		} else {
			node = t.childrenRight[node]
		}
	}

	leaf := t.value[node]
	out := make([]float64, len(leaf))
	var sum float64
	for _, v := range leaf {
		sum += v
	}
	if sum == 0 {
		return out
	}
	for i, v := range leaf {
		out[i] = v / sum
	}
	return out
}

// TreeEnsemble averages the leaf distributions of its trees. A decision tree
// is an ensemble of one.
type TreeEnsemble struct {
	kind      string
	trees     []*Tree
	classes   []int
	nFeatures int
}

func NewTreeEnsemble(kind string, trees []*Tree, classes []int, nFeatures int) (*TreeEnsemble, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: %s has no trees", ErrInvalidArtifact, kind)
	}
	if kind == ClassifierDecisionTree && len(trees) != 1 {
		return nil, fmt.Errorf("%w: decision tree must have exactly one tree, got %d", ErrInvalidArtifact, len(trees))
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: %s has no classes", ErrInvalidArtifact, kind)
	}
	for i, t := range trees {
		if t.nClasses != len(classes) || t.nFeatures != nFeatures {
			return nil, fmt.Errorf("%w: tree %d is shaped %dx%d, ensemble is %dx%d",
				ErrInvalidArtifact, i, t.nFeatures, t.nClasses, nFeatures, len(classes))
		}
	}
	return &TreeEnsemble{kind: kind, trees: trees, classes: classes, nFeatures: nFeatures}, nil
}

func (e *TreeEnsemble) NumFeatures() int {
	return e.nFeatures
}

func (e *TreeEnsemble) Classes() []int {
	return append([]int(nil), e.classes...)
}

// PredictProba averages class probabilities over all trees.
func (e *TreeEnsemble) PredictProba(scaled []float64) ([]float64, error) {
	if len(scaled) != e.nFeatures {
		return nil, &ShapeMismatchError{Expected: e.nFeatures, Got: len(scaled)}
	}

	avg := make([]float64, len(e.classes))
	for _, t := range e.trees {
		for i, p := range t.proba(scaled) {
			avg[i] += p
		}
	}
	for i := range avg {
		avg[i] /= float64(len(e.trees))
	}
	return avg, nil
}

func (e *TreeEnsemble) Predict(scaled []float64) (int, error) {
	proba, err := e.PredictProba(scaled)
	if err != nil {
		return 0, err
	}
	return e.classes[argmax(proba)], nil
}

// LogisticRegression predicts the class with the highest linear decision value.
// It carries no importance data.
type LogisticRegression struct {
	coef      [][]float64
	intercept []float64
	classes   []int
	nFeatures int
}

func NewLogisticRegression(coef [][]float64, intercept []float64, classes []int, nFeatures int) (*LogisticRegression, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("%w: logistic regression has no coefficients", ErrInvalidArtifact)
	}
	if len(intercept) != len(coef) {
		return nil, fmt.Errorf("%w: logistic regression has %d coefficient rows and %d intercepts",
			ErrInvalidArtifact, len(coef), len(intercept))
	}
	for i, row := range coef {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: coefficient row %d has %d weights, want %d",
				ErrInvalidArtifact, i, len(row), nFeatures)
		}
	}

	// A binary model stores one coefficient row for the positive class.
	wantClasses := len(coef)
	if len(coef) == 1 {
		wantClasses = 2
	}
	if len(classes) != wantClasses {
		return nil, fmt.Errorf("%w: logistic regression needs %d classes, got %d",
			ErrInvalidArtifact, wantClasses, len(classes))
	}

	return &LogisticRegression{coef: coef, intercept: intercept, classes: classes, nFeatures: nFeatures}, nil
}

func (m *LogisticRegression) NumFeatures() int {
	return m.nFeatures
}

func (m *LogisticRegression) Classes() []int {
	return append([]int(nil), m.classes...)
}

func (m *LogisticRegression) Predict(scaled []float64) (int, error) {
	if len(scaled) != m.nFeatures {
		return 0, &ShapeMismatchError{Expected: m.nFeatures, Got: len(scaled)}
	}

	scores := make([]float64, len(m.coef))
	for c, row := range m.coef {
		s := m.intercept[c]
		for i, w := range row {
			s += w * scaled[i]
		}
		scores[c] = s
	}

	if len(scores) == 1 {
		if scores[0] > 0 {
			return m.classes[1], nil
		}
		return m.classes[0], nil
	}
	return m.classes[argmax(scores)], nil
}

// withImportances attaches fitted importance weights to a classifier.
type withImportances struct {
	Classifier
	importances []float64
}

func (w *withImportances) Classes() []int {
	if cl, ok := w.Classifier.(classLister); ok {
		return cl.Classes()
	}
	return nil
}

func (w *withImportances) FeatureImportances() []float64 {
	return append([]float64(nil), w.importances...)
}

// WithImportances makes c importance-aware. The weights must align with the
// classifier's feature order.
func WithImportances(c Classifier, importances []float64) (ImportanceAwareClassifier, error) {
	if len(importances) != c.NumFeatures() {
		return nil, fmt.Errorf("%w: %d importance weights for %d features",
			ErrInvalidArtifact, len(importances), c.NumFeatures())
	}
	return &withImportances{Classifier: c, importances: append([]float64(nil), importances...)}, nil
}

// argmax returns the first index of the maximum value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func identityClasses(n int) []int {
	classes := make([]int, n)
	for i := range classes {
		classes[i] = i
	}
	return classes
}
