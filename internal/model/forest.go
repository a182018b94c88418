// Package model implements the random forest classifier and its serialized
// artifact format.
package model

import (
	"errors"
	"fmt"
	"math"
)

// Tree is a single decision tree in flattened array form. Node i is a leaf
// when Feature[i] < 0; otherwise rows with vector[Feature[i]] <= Threshold[i]
// descend to Left[i] and the rest to Right[i].
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Prob      []float64 `json:"prob"` // leaf P(fraud), class-weighted
}

func (t *Tree) predict(vec []float64) float64 {
	i := 0
	for t.Feature[i] >= 0 {
		if vec[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Prob[i]
}

// Forest is a trained random forest classifier. It implements
// domain.Classifier and is read-only after construction, so a single loaded
// forest is shared by all scoring requests without locking.
//
// Means/Stds, when present, hold the per-feature standardization fitted at
// training time. Baking them into the artifact keeps serving inputs in the
// same space the trees were grown in.
type Forest struct {
	FeatureNames []string  `json:"featureNames"`
	Means        []float64 `json:"means,omitempty"`
	Stds         []float64 `json:"stds,omitempty"`
	Trees        []Tree    `json:"trees"`
	Importances  []float64 `json:"importances"`
}

// NumFeatures returns the input dimensionality the forest was trained on.
func (f *Forest) NumFeatures() int {
	return len(f.FeatureNames)
}

// PredictProba returns the mean leaf probability across all trees for each
// vector. Probabilities are in [0,1] by construction.
func (f *Forest) PredictProba(vectors [][]float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}

	probs := make([]float64, len(vectors))
	for j, vec := range vectors {
		if len(vec) != len(f.FeatureNames) {
			return nil, fmt.Errorf("vector has %d features, model expects %d", len(vec), len(f.FeatureNames))
		}

		if len(f.Means) == len(vec) && len(f.Stds) == len(vec) {
			scaled := make([]float64, len(vec))
			for i, v := range vec {
				if f.Stds[i] > 0 {
					scaled[i] = (v - f.Means[i]) / f.Stds[i]
				} else {
					scaled[i] = v - f.Means[i]
				}
			}
			vec = scaled
		}

		var sum float64
		for i := range f.Trees {
			sum += f.Trees[i].predict(vec)
		}
		probs[j] = math.Min(1, math.Max(0, sum/float64(len(f.Trees))))
	}

	return probs, nil
}

// FeatureImportance pairs a feature name with its importance score.
type FeatureImportance struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TopFeatures returns the k most important features, descending.
// Ties keep feature-contract order.
func (f *Forest) TopFeatures(k int) []FeatureImportance {
	ranked := make([]FeatureImportance, 0, len(f.FeatureNames))
	for i, name := range f.FeatureNames {
		score := 0.0
		if i < len(f.Importances) {
			score = f.Importances[i]
		}
		ranked = append(ranked, FeatureImportance{Name: name, Score: score})
	}

	// stable selection sort keeps contract order on ties
	for i := 0; i < len(ranked) && i < k; i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].Score > ranked[best].Score {
				best = j
			}
		}
		ranked[i], ranked[best] = ranked[best], ranked[i]
	}

	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}
