package ml

import (
	"fmt"
	"sort"
)

// RankedFeature pairs a feature with its fitted importance weight.
type RankedFeature struct {
	Index int     `json:"index" yaml:"index"`
	Name  string  `json:"name" yaml:"name"`
	Score float64 `json:"score" yaml:"score"`
}

// RankImportances orders features by weight, highest first. Equal weights keep
// their original feature order.
func RankImportances(names []string, weights []float64) ([]RankedFeature, error) {
	if len(names) != len(weights) {
		return nil, fmt.Errorf("%w: %d feature names for %d importance weights",
			ErrInvalidArtifact, len(names), len(weights))
	}

	ranked := make([]RankedFeature, len(weights))
	for i, w := range weights {
		ranked[i] = RankedFeature{Index: i, Name: names[i], Score: w}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked, nil
}

// TopFeatures returns the first n ranked features.
func TopFeatures(ranked []RankedFeature, n int) []RankedFeature {
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return append([]RankedFeature(nil), ranked[:n]...)
}
