// Package sweep runs the scoring pipeline: normalize, align, score, filter
// and aggregate one uploaded batch into a sweep summary.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/report"
)

// Service scores uploaded batches against a loaded classifier.
type Service struct {
	clf       domain.Classifier
	formatter *report.Formatter
	threshold int
}

// Stats carries per-sweep diagnostics that do not belong in the summary
// payload but are worth logging.
type Stats struct {
	feature.Stats

	// SkippedRows counts flagged rows dropped from the anomaly list because
	// they could not be presented. They still count toward FoundCount.
	SkippedRows int

	// MaxScore is the highest score seen across the whole batch.
	MaxScore int
}

// NewService validates that the classifier matches the canonical feature
// contract. A dimensionality mismatch is a deployment error, caught here
// rather than on the first upload.
func NewService(clf domain.Classifier, formatter *report.Formatter, threshold int) (*Service, error) {
	want := len(domain.CanonicalFeatures())
	if got := clf.NumFeatures(); got != want {
		return nil, fmt.Errorf("model expects %d features, pipeline produces %d", got, want)
	}
	return &Service{
		clf:       clf,
		formatter: formatter,
		threshold: threshold,
	}, nil
}

// Threshold returns the score cutoff above which rows are flagged.
func (s *Service) Threshold() int { return s.threshold }

// Run scores one parsed batch and aggregates the flagged rows.
//
// Scores are the truncated percentage of the fraud probability; rows scoring
// strictly above the threshold are flagged, sorted by score descending with
// original order preserved on ties. Rows that cannot be rendered are dropped
// from the anomaly list but still count as found.
func (s *Service) Run(ctx context.Context, raw *domain.Table) (*domain.Summary, Stats, error) {
	var stats Stats

	table := ingest.Normalize(raw)
	vectors, alignStats := feature.Align(table)
	stats.Stats = alignStats

	summary := &domain.Summary{
		TotalScanned: table.Len(),
		Anomalies:    []domain.Anomaly{},
	}
	if table.Len() == 0 {
		return summary, stats, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	probs, err := s.clf.PredictProba(vectors)
	if err != nil {
		return nil, stats, fmt.Errorf("scoring batch: %w", err)
	}

	type flagged struct {
		idx   int
		score int
	}
	var hits []flagged
	for i, p := range probs {
		score := int(p * 100)
		if score > stats.MaxScore {
			stats.MaxScore = score
		}
		if score > s.threshold {
			hits = append(hits, flagged{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	summary.FoundCount = len(hits)

	var exposure float64
	for _, h := range hits {
		if v, ok := report.ParseMoney(table.Rows[h.idx]["Amount"]); ok {
			exposure += v
		}
	}
	summary.TotalExposure = round2(exposure)
	if len(hits) > 0 {
		summary.AvgExposure = round2(exposure / float64(len(hits)))
	}

	for _, h := range hits {
		anomaly, err := s.formatter.Format(table.Rows[h.idx], vectors[h.idx], h.score)
		if err != nil {
			stats.SkippedRows++
			slog.Warn("dropping unpresentable row",
				"row", h.idx,
				"error", err)
			continue
		}
		summary.Anomalies = append(summary.Anomalies, anomaly)
	}

	slog.Info("sweep complete",
		"scanned", summary.TotalScanned,
		"found", summary.FoundCount,
		"max_score", stats.MaxScore,
		"missing_columns", stats.MissingColumns,
		"coerced_values", stats.CoercedValues,
		"skipped_rows", stats.SkippedRows)

	return summary, stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
