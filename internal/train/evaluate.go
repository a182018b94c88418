package train

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Metrics summarizes binary classification quality at a probability cutoff.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	Precision float64
	Recall    float64
	F1        float64
}

// Evaluate scores the dataset and computes confusion metrics at the given
// probability cutoff.
func Evaluate(clf domain.Classifier, d *Dataset, cutoff float64) (Metrics, error) {
	var m Metrics

	probs, err := clf.PredictProba(d.Vectors)
	if err != nil {
		return m, err
	}

	for i, p := range probs {
		predicted := p >= cutoff
		actual := d.Labels[i] == 1
		switch {
		case predicted && actual:
			m.TruePositives++
		case predicted && !actual:
			m.FalsePositives++
		case !predicted && actual:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}

	if m.TruePositives+m.FalsePositives > 0 {
		m.Precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	if m.TruePositives+m.FalseNegatives > 0 {
		m.Recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	return m, nil
}
