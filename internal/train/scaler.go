package train

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// Scaler holds per-feature standardization parameters. Fit it on the train
// split only, then bake the parameters into the model artifact so serving
// applies the identical transform.
type Scaler struct {
	Means []float64
	Stds  []float64
}

// FitScaler computes per-feature mean and standard deviation over the train
// vectors. Constant features get a zero std, which downstream scaling treats
// as center-only.
func FitScaler(vectors [][]float64) (*Scaler, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no vectors to fit scaler on")
	}

	d := len(vectors[0])
	s := &Scaler{
		Means: make([]float64, d),
		Stds:  make([]float64, d),
	}

	col := make([]float64, len(vectors))
	for f := 0; f < d; f++ {
		for i, vec := range vectors {
			col[i] = vec[f]
		}
		mean, std := stat.MeanStdDev(col, nil)
		s.Means[f] = mean
		if len(vectors) > 1 {
			s.Stds[f] = std
		}
	}

	return s, nil
}

// Transform standardizes vectors in place.
func (s *Scaler) Transform(vectors [][]float64) {
	for _, vec := range vectors {
		for f := range vec {
			if s.Stds[f] > 0 {
				vec[f] = (vec[f] - s.Means[f]) / s.Stds[f]
			} else {
				vec[f] = vec[f] - s.Means[f]
			}
		}
	}
}
