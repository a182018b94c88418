package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Formatter renders flagged rows into anomalies. Retail exports carry a
// merchant name and category; forensic exports get a synthetic transaction
// id and an attributed artifact instead.
type Formatter struct {
	explain ExplainStrategy
}

// NewFormatter builds a formatter around the given attribution strategy.
func NewFormatter(explain ExplainStrategy) *Formatter {
	return &Formatter{explain: explain}
}

// Format renders one flagged row. An error means this row cannot be
// presented and should be skipped; it never aborts the sweep.
func (f *Formatter) Format(row domain.Row, vector []float64, score int) (domain.Anomaly, error) {
	id, err := displayID(row)
	if err != nil {
		return domain.Anomaly{}, err
	}

	artifact := row["category"]
	if artifact == "" {
		artifact, err = f.explain.Explain(row, vector, score)
		if err != nil {
			return domain.Anomaly{}, err
		}
	}

	amt, err := presentedAmount(row["Amount"])
	if err != nil {
		return domain.Anomaly{}, err
	}

	return domain.Anomaly{
		ID:       id,
		Amount:   FormatUSD(amt),
		Score:    score,
		Artifact: strings.ToUpper(artifact),
	}, nil
}

// displayID prefers the merchant name; forensic rows fall back to a
// synthetic id from the truncated Time value.
func displayID(row domain.Row) (string, error) {
	if m := row["merchant"]; m != "" {
		return m, nil
	}

	ts := strings.TrimSpace(row["Time"])
	if ts == "" {
		return "TXN-0", nil
	}
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return "", fmt.Errorf("unusable Time value %q", ts)
	}
	return fmt.Sprintf("TXN-%d", int64(v)), nil
}

// presentedAmount cleans the raw amount for display. Empty means zero;
// anything else must parse once symbols and separators are stripped.
func presentedAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unusable Amount value %q", raw)
	}
	return v, nil
}
