// Package feature projects normalized batches onto the canonical feature
// vector the classifier expects.
package feature

import (
	"math"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Stats counts the default substitutions made while aligning one batch.
// Substitution is a named fallback policy, not an error: retail exports
// routinely lack the forensic V1..V28 columns, and the system scores them
// best-effort rather than rejecting the batch.
type Stats struct {
	// MissingColumns is the number of canonical features absent from the
	// batch entirely. Every row gets 0.0 for those features.
	MissingColumns int

	// CoercedValues is the number of present but empty or unparseable
	// values replaced with 0.0.
	CoercedValues int
}

// Align builds one canonical feature vector per row, in the exact fixed
// order Time, V1..V28, Amount. Every element is finite; absent or
// unparseable source values become 0.0.
func Align(t *domain.Table) ([][]float64, Stats) {
	names := domain.CanonicalFeatures()
	stats := Stats{}

	present := make([]bool, len(names))
	for i, name := range names {
		present[i] = t.HasColumn(name)
		if !present[i] {
			stats.MissingColumns++
		}
	}

	vectors := make([][]float64, len(t.Rows))
	for j, row := range t.Rows {
		vec := make([]float64, len(names))
		for i, name := range names {
			if !present[i] {
				continue
			}
			v, ok := ParseNumeric(row[name])
			if !ok {
				stats.CoercedValues++
				continue
			}
			vec[i] = v
		}
		vectors[j] = vec
	}

	return vectors, stats
}

// ParseNumeric is the permissive numeric parse used across the pipeline.
// Reports ok=false for empty, non-numeric, NaN or infinite input.
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
