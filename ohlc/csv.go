package ohlc

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseCSV reads OHLC rows from csv data with a `date,open,high,low,close`
// header (an optional `symbol` column is honoured). Malformed rows are
// dropped silently so a single bad line never fails a whole load. It returns
// the parsed rows and the number of lines dropped.
func ParseCSV(r io.Reader, symbol string) ([]Row, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for idx := range header {
		columns[strings.ToLower(strings.TrimSpace(header[idx]))] = idx
	}

	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := columns[required]; !ok {
			return nil, 0, fmt.Errorf("csv header missing %q column", required)
		}
	}

	rows := make([]Row, 0, 256)
	var dropped int

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}

		fields := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				fields[name] = record[idx]
			}
		}

		rowSymbol := symbol
		if fields["symbol"] != "" {
			rowSymbol = fields["symbol"]
		}

		row, ok := Sanitize(fields, rowSymbol)
		if !ok {
			dropped++
			continue
		}

		rows = append(rows, row)
	}

	return rows, dropped, nil
}
