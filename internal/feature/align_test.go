package feature

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestAlign(t *testing.T) {
	t.Run("CanonicalOrder", func(t *testing.T) {
		table := &domain.Table{
			Columns: []string{"Amount", "Time", "V1", "V14"},
			Rows: []domain.Row{
				{"Amount": "10.5", "Time": "100", "V1": "-1.5", "V14": "-3.0"},
			},
		}

		vectors, _ := Align(table)
		if len(vectors) != 1 {
			t.Fatalf("expected 1 vector, got %d", len(vectors))
		}
		vec := vectors[0]
		if len(vec) != 30 {
			t.Fatalf("expected 30 features, got %d", len(vec))
		}
		if vec[0] != 100 {
			t.Errorf("expected Time at index 0, got %v", vec[0])
		}
		if vec[1] != -1.5 {
			t.Errorf("expected V1 at index 1, got %v", vec[1])
		}
		if vec[14] != -3.0 {
			t.Errorf("expected V14 at index 14, got %v", vec[14])
		}
		if vec[29] != 10.5 {
			t.Errorf("expected Amount at index 29, got %v", vec[29])
		}
	})

	t.Run("AbsentColumnsDefaultToZero", func(t *testing.T) {
		// Retail export with no forensic features at all.
		table := &domain.Table{
			Columns: []string{"merchant", "Amount"},
			Rows: []domain.Row{
				{"merchant": "Acme", "Amount": "50"},
				{"merchant": "Globex", "Amount": "75"},
			},
		}

		vectors, stats := Align(table)
		for j, vec := range vectors {
			for i := 0; i < 29; i++ { // everything except Amount
				if vec[i] != 0 {
					t.Errorf("row %d feature %d: expected 0.0 default, got %v", j, i, vec[i])
				}
			}
		}
		if stats.MissingColumns != 29 {
			t.Errorf("expected 29 missing columns, got %d", stats.MissingColumns)
		}
	})

	t.Run("UnparseableValuesCoerced", func(t *testing.T) {
		table := &domain.Table{
			Columns: []string{"Time", "Amount"},
			Rows: []domain.Row{
				{"Time": "not-a-number", "Amount": ""},
				{"Time": "5", "Amount": "1.25"},
			},
		}

		vectors, stats := Align(table)
		if vectors[0][0] != 0 || vectors[0][29] != 0 {
			t.Error("expected unparseable values to become 0.0")
		}
		if vectors[1][0] != 5 || vectors[1][29] != 1.25 {
			t.Error("expected parseable values to pass through")
		}
		if stats.CoercedValues != 2 {
			t.Errorf("expected 2 coerced values, got %d", stats.CoercedValues)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		table := &domain.Table{Columns: []string{"Amount"}}
		vectors, _ := Align(table)
		if len(vectors) != 0 {
			t.Errorf("expected no vectors, got %d", len(vectors))
		}
	})
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"1.5", 1.5, true},
		{"  -2 ", -2, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"$100", 0, false}, // currency cleanup belongs to the aggregator, not here
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}

	for _, tt := range tests {
		v, ok := ParseNumeric(tt.input)
		if v != tt.expected || ok != tt.ok {
			t.Errorf("ParseNumeric(%q) = (%v, %v), want (%v, %v)", tt.input, v, ok, tt.expected, tt.ok)
		}
	}
}
