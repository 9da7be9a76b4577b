// Package csvparse turns raw CSV text into headers and column-keyed rows.
// It has no knowledge of the fire focus domain.
package csvparse

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

const bom = "\uFEFF"

// Parse reads text as CSV. The first record is the header row. Headers and
// values are trimmed, short rows are padded with empty strings, extra fields
// are ignored and blank lines are skipped. Parse never fails: malformed input
// ends the row list at the last record that could be read.
func Parse(text string) (headers []string, rows []map[string]string) {
	text = strings.TrimPrefix(text, bom)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	first, err := r.Read()
	if err != nil {
		return nil, nil
	}
	headers = make([]string, len(first))
	for i, h := range first {
		headers[i] = strings.TrimSpace(h)
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}
