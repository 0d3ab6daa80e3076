package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ginjaninja78/laminar/internal/errs"
)

// parseCSV reads a header row followed by data rows.
//
// PARSING PROCESS:
//   1. Validate text encoding and strip the BOM
//   2. Configure the CSV reader with the requested delimiter
//   3. Resolve the header row into logical columns
//   4. Stream data rows, aborting as soon as the row ceiling is crossed
func parseCSV(data []byte, opts Options) (*Batch, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	configureReader(reader, opts.Comma)

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, errs.New(errs.CodeEmptyBatch, "CSV input has no header row")
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeParseError, "failed to read CSV header")
	}

	cols, err := resolveColumns(headers)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Format: FormatCSV, Headers: cleanHeaders(headers)}
	rowNumber := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeParseError, "failed to read CSV row")
		}
		rowNumber++

		if isRowEmpty(row) {
			continue
		}
		if opts.Limits.MaxRows > 0 && len(batch.Records) >= opts.Limits.MaxRows {
			return nil, rowLimitError(opts.Limits.MaxRows)
		}

		batch.Records = append(batch.Records, buildRecord(rowNumber, headers, row, cols))
	}

	return batch, nil
}

// configureReader configures the CSV reader. Leading space is kept so that
// formula screening sees the cell exactly as a spreadsheet would.
func configureReader(reader *csv.Reader, comma rune) {
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = false
}

// cleanHeaders trims header values and names blank ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = normalizeHeader(header)
		if header == "" {
			header = "column_" + strconv.Itoa(i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}
