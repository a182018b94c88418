package model

import (
	"math"
	"path/filepath"
	"testing"
)

// stump returns a one-split tree: vec[feat] <= thr -> lowProb, else highProb.
func stump(feat int, thr, lowProb, highProb float64) Tree {
	return Tree{
		Feature:   []int{feat, -1, -1},
		Threshold: []float64{thr, 0, 0},
		Left:      []int{1, -1, -1},
		Right:     []int{2, -1, -1},
		Prob:      []float64{0, lowProb, highProb},
	}
}

func TestTreePredict(t *testing.T) {
	tr := stump(0, 5.0, 0.1, 0.9)

	if got := tr.predict([]float64{3}); got != 0.1 {
		t.Errorf("expected left leaf 0.1, got %v", got)
	}
	if got := tr.predict([]float64{5}); got != 0.1 {
		t.Errorf("boundary value must descend left, got %v", got)
	}
	if got := tr.predict([]float64{7}); got != 0.9 {
		t.Errorf("expected right leaf 0.9, got %v", got)
	}
}

func TestForestPredictProba(t *testing.T) {
	f := &Forest{
		FeatureNames: []string{"a", "b"},
		Trees: []Tree{
			stump(0, 0, 0.2, 0.8),
			stump(0, 0, 0.4, 1.0),
		},
	}

	t.Run("AveragesTrees", func(t *testing.T) {
		probs, err := f.PredictProba([][]float64{{-1, 0}, {1, 0}})
		if err != nil {
			t.Fatalf("PredictProba failed: %v", err)
		}
		if math.Abs(probs[0]-0.3) > 1e-9 {
			t.Errorf("expected 0.3, got %v", probs[0])
		}
		if math.Abs(probs[1]-0.9) > 1e-9 {
			t.Errorf("expected 0.9, got %v", probs[1])
		}
	})

	t.Run("RejectsWrongWidth", func(t *testing.T) {
		if _, err := f.PredictProba([][]float64{{1}}); err == nil {
			t.Error("expected error for 1-wide vector against 2-feature model")
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		probs, err := f.PredictProba(nil)
		if err != nil {
			t.Fatalf("PredictProba failed: %v", err)
		}
		if len(probs) != 0 {
			t.Errorf("expected no probabilities, got %d", len(probs))
		}
	})
}

func TestFit(t *testing.T) {
	// Two clearly separated clusters on feature 0, imbalanced 4:1.
	var vectors [][]float64
	var labels []int
	for i := 0; i < 80; i++ {
		vectors = append(vectors, []float64{float64(i%10) * 0.1, 1})
		labels = append(labels, 0)
	}
	for i := 0; i < 20; i++ {
		vectors = append(vectors, []float64{10 + float64(i%10)*0.1, 1})
		labels = append(labels, 1)
	}

	cfg := FitConfig{Trees: 20, MaxDepth: 4, MinLeaf: 2, Seed: 7}
	f, err := Fit(vectors, labels, []string{"x", "bias"}, cfg)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	t.Run("SeparatesClasses", func(t *testing.T) {
		probs, err := f.PredictProba([][]float64{{0.5, 1}, {10.5, 1}})
		if err != nil {
			t.Fatalf("PredictProba failed: %v", err)
		}
		if probs[0] >= 0.5 {
			t.Errorf("legit cluster scored %v, expected < 0.5", probs[0])
		}
		if probs[1] <= 0.5 {
			t.Errorf("fraud cluster scored %v, expected > 0.5", probs[1])
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		again, err := Fit(vectors, labels, []string{"x", "bias"}, cfg)
		if err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		p1, _ := f.PredictProba([][]float64{{3, 1}})
		p2, _ := again.PredictProba([][]float64{{3, 1}})
		if p1[0] != p2[0] {
			t.Errorf("same seed produced different models: %v vs %v", p1[0], p2[0])
		}
	})

	t.Run("ImportancesFavorSplitFeature", func(t *testing.T) {
		if f.Importances[0] <= f.Importances[1] {
			t.Errorf("expected feature x to dominate importances, got %v", f.Importances)
		}
	})

	t.Run("SingleClassRejected", func(t *testing.T) {
		if _, err := Fit(vectors[:10], labels[:10], []string{"x", "bias"}, cfg); err == nil {
			t.Error("expected error for single-class training set")
		}
	})
}

func TestTopFeatures(t *testing.T) {
	f := &Forest{
		FeatureNames: []string{"a", "b", "c"},
		Importances:  []float64{0.1, 0.7, 0.2},
	}

	top := f.TopFeatures(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 features, got %d", len(top))
	}
	if top[0].Name != "b" || top[1].Name != "c" {
		t.Errorf("unexpected ranking: %+v", top)
	}

	if got := f.TopFeatures(10); len(got) != 3 {
		t.Errorf("expected clamp to 3 features, got %d", len(got))
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	f := &Forest{
		FeatureNames: []string{"a", "b"},
		Trees:        []Tree{stump(1, 2.5, 0.05, 0.95)},
		Importances:  []float64{0, 1},
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := Save(f, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.NumFeatures() != 2 {
		t.Errorf("expected 2 features, got %d", loaded.NumFeatures())
	}

	want, _ := f.PredictProba([][]float64{{0, 3}})
	got, err := loaded.PredictProba([][]float64{{0, 3}})
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if got[0] != want[0] {
		t.Errorf("loaded model predicts %v, original %v", got[0], want[0])
	}
}

func TestLoadRejectsDamagedArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		forest *Forest
	}{
		{"NoTrees", &Forest{FeatureNames: []string{"a"}}},
		{"FeatureOutOfRange", &Forest{
			FeatureNames: []string{"a"},
			Trees:        []Tree{stump(3, 0, 0.1, 0.9)},
		}},
		{"ProbOutOfRange", &Forest{
			FeatureNames: []string{"a"},
			Trees:        []Tree{stump(0, 0, -0.5, 0.9)},
		}},
		{"ChildPointsBackward", &Forest{
			FeatureNames: []string{"a"},
			Trees: []Tree{{
				Feature:   []int{0, -1},
				Threshold: []float64{0, 0},
				Left:      []int{0, -1},
				Right:     []int{1, -1},
				Prob:      []float64{0, 1},
			}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			if err := Save(tt.forest, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
