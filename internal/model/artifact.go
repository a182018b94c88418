package model

import (
	"encoding/json"
	"fmt"
	"os"
)

const artifactVersion = 1

// artifact is the on-disk JSON envelope around a trained forest.
type artifact struct {
	Version int     `json:"version"`
	Model   *Forest `json:"model"`
}

// Save writes the forest to path as a versioned JSON artifact.
func Save(f *Forest, path string) error {
	data, err := json.Marshal(artifact{Version: artifactVersion, Model: f})
	if err != nil {
		return fmt.Errorf("encoding model artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model artifact: %w", err)
	}
	return nil
}

// Load reads and validates a model artifact. Structural damage to any tree
// is reported here rather than surfacing as a panic mid-request.
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding model artifact %s: %w", path, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("model artifact %s: unsupported version %d", path, a.Version)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("model artifact %s: missing model", path)
	}
	if err := validate(a.Model); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}

	return a.Model, nil
}

func validate(f *Forest) error {
	if len(f.FeatureNames) == 0 {
		return fmt.Errorf("no feature names")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("no trees")
	}
	if len(f.Importances) != 0 && len(f.Importances) != len(f.FeatureNames) {
		return fmt.Errorf("importances length %d does not match %d features", len(f.Importances), len(f.FeatureNames))
	}
	if len(f.Means) != len(f.Stds) {
		return fmt.Errorf("means/stds length mismatch: %d vs %d", len(f.Means), len(f.Stds))
	}
	if len(f.Means) != 0 && len(f.Means) != len(f.FeatureNames) {
		return fmt.Errorf("scaler length %d does not match %d features", len(f.Means), len(f.FeatureNames))
	}

	for ti := range f.Trees {
		t := &f.Trees[ti]
		n := len(t.Feature)
		if n == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Prob) != n {
			return fmt.Errorf("tree %d has inconsistent node arrays", ti)
		}
		for i := 0; i < n; i++ {
			if t.Feature[i] < 0 {
				continue
			}
			if t.Feature[i] >= len(f.FeatureNames) {
				return fmt.Errorf("tree %d node %d references feature %d of %d", ti, i, t.Feature[i], len(f.FeatureNames))
			}
			if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
				return fmt.Errorf("tree %d node %d has out-of-range children", ti, i)
			}
		}
		for i, p := range t.Prob {
			if p < 0 || p > 1 {
				return fmt.Errorf("tree %d node %d has probability %v outside [0,1]", ti, i, p)
			}
		}
	}

	return nil
}
