// Package ingest parses uploaded transaction batches and normalizes their
// column vocabulary to the model contract.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrEmptyUpload is returned when the upload has no header row at all.
var ErrEmptyUpload = errors.New("empty upload: no header row")

// ParseCSV reads an arbitrary-dialect CSV batch into a Table.
// Quoted headers, stray quotes and leading whitespace are tolerated. Rows
// shorter than the header are padded with empty values. A batch that cannot
// be parsed into a table at all fails as a whole; there is no partial parse.
func ParseCSV(r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyUpload
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	table := &domain.Table{Columns: header, Rows: []domain.Row{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV row %d: %w", len(table.Rows)+2, err)
		}

		row := make(domain.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
