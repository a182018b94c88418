package domain

import "strconv"

// Classifier is a trained binary classifier exposing fraud probabilities.
// Implementations must be safe for concurrent use: the loaded model is
// read-only for the lifetime of the process.
type Classifier interface {
	// PredictProba returns P(fraud) in [0,1] for each feature vector.
	PredictProba(vectors [][]float64) ([]float64, error)

	// NumFeatures returns the input dimensionality the model was trained on.
	NumFeatures() int
}

// CanonicalFeatures returns the fixed feature order the classifier expects:
// Time, V1..V28, Amount. The aligner and the training harness must agree on
// this order; it is the model contract.
func CanonicalFeatures() []string {
	features := make([]string, 0, 30)
	features = append(features, "Time")
	for i := 1; i <= 28; i++ {
		features = append(features, "V"+strconv.Itoa(i))
	}
	return append(features, "Amount")
}
