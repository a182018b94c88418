package domain

// Row is one transaction record: free-form column name to raw value.
// Values stay strings until the feature aligner or aggregator coerces them.
type Row map[string]string

// Table is a parsed tabular batch. Rows preserve upload order.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows in the batch.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether a column is present in the batch.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
