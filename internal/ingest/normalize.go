package ingest

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// synonymTable maps retail-style export column names to the forensic
// vocabulary the model was trained on. Matching is exact after CleanColumn;
// no fuzzy or case-insensitive matching.
var synonymTable = map[string]string{
	"amt":                   "Amount",
	"unix_time":             "Time",
	"trans_date_trans_time": "Time",
	"is_fraud":              "Class",
}

// CleanColumn strips quote characters and surrounding whitespace from a
// column name.
func CleanColumn(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
}

// Normalize returns a new table with cleaned, canonically renamed columns.
// The input table is not mutated. When a renamed column collides with an
// existing one, the later column's values win (last-applied-wins).
func Normalize(t *domain.Table) *domain.Table {
	renamed := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		name := CleanColumn(col)
		if canonical, ok := synonymTable[name]; ok {
			name = canonical
		}
		renamed[i] = name
	}

	out := &domain.Table{Rows: make([]domain.Row, len(t.Rows))}
	seen := make(map[string]bool, len(renamed))
	for _, name := range renamed {
		if !seen[name] {
			seen[name] = true
			out.Columns = append(out.Columns, name)
		}
	}

	for j, row := range t.Rows {
		nr := make(domain.Row, len(renamed))
		for i, col := range t.Columns {
			if v, ok := row[col]; ok {
				nr[renamed[i]] = v
			}
		}
		out.Rows[j] = nr
	}

	return out
}
