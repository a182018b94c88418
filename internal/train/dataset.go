// Package train holds the offline training harness: labeled dataset loading,
// splitting, feature standardization and model evaluation.
package train

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/ingest"
)

// Dataset is a labeled feature matrix ready for fitting.
type Dataset struct {
	Vectors [][]float64
	Labels  []int

	// Dropped counts rows discarded for a missing or non-binary label.
	Dropped int
}

// LoadDataset parses a labeled CSV export into aligned vectors. The label
// column must survive normalization as Class; rows whose label is not 0 or 1
// are dropped rather than failing the whole file.
func LoadDataset(r io.Reader) (*Dataset, error) {
	table, err := ingest.ParseCSV(r)
	if err != nil {
		return nil, err
	}

	table = ingest.Normalize(table)
	if !table.HasColumn("Class") {
		return nil, fmt.Errorf("dataset has no label column (need Class or is_fraud), columns: %s", strings.Join(table.Columns, ", "))
	}

	vectors, _ := feature.Align(table)

	ds := &Dataset{}
	for i, row := range table.Rows {
		switch strings.TrimSpace(row["Class"]) {
		case "0":
			ds.Labels = append(ds.Labels, 0)
		case "1":
			ds.Labels = append(ds.Labels, 1)
		default:
			ds.Dropped++
			continue
		}
		ds.Vectors = append(ds.Vectors, vectors[i])
	}

	return ds, nil
}

// PositiveRate returns the fraction of fraud labels in the dataset.
func (d *Dataset) PositiveRate() float64 {
	if len(d.Labels) == 0 {
		return 0
	}
	var pos int
	for _, y := range d.Labels {
		pos += y
	}
	return float64(pos) / float64(len(d.Labels))
}

// StratifiedSplit shuffles the dataset with the given seed and splits it so
// both halves keep the class mix. testFrac is the fraction held out.
func StratifiedSplit(d *Dataset, testFrac float64, seed int64) (train, test *Dataset) {
	rng := rand.New(rand.NewSource(seed))

	var byClass [2][]int
	for i, y := range d.Labels {
		byClass[y] = append(byClass[y], i)
	}

	train = &Dataset{}
	test = &Dataset{}
	for _, idx := range byClass {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		cut := int(float64(len(idx)) * testFrac)
		for k, i := range idx {
			dst := train
			if k < cut {
				dst = test
			}
			dst.Vectors = append(dst.Vectors, d.Vectors[i])
			dst.Labels = append(dst.Labels, d.Labels[i])
		}
	}

	return train, test
}

// FeatureNames returns the column contract the vectors follow.
func FeatureNames() []string {
	return domain.CanonicalFeatures()
}
