package helpers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spektr-org/crashlens/apperrors"
	"github.com/spektr-org/crashlens/engine"
)

// ============================================================================
// CSV HELPER — Parses CSV data into an engine.Table
// ============================================================================
// The caller opens the file (or any other reader). The first row is the
// header. Fields are trimmed; an empty field is null. Every column is text,
// numeric predicates parse on demand.
// ============================================================================

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable reads CSV from r into a table called name.
// A row that fails to parse or has the wrong field count is an error.
func ReadTable(r io.Reader, name string) (*engine.Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	// Read header
	headers, err := reader.Read()
	if err == io.EOF {
		return nil, &apperrors.MalformedDataError{Table: name, Row: -1, Reason: "empty CSV, no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers of %s: %w", name, err)
	}

	cols := make([]string, len(headers))
	for i, h := range headers {
		if i == 0 {
			h = string(bytes.TrimPrefix([]byte(h), utf8BOM))
		}
		cols[i] = strings.TrimSpace(h)
	}

	var rows [][]engine.Cell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, rowError(name, len(rows), err)
		}

		row := make([]engine.Cell, len(record))
		for i, val := range record {
			val = strings.TrimSpace(val)
			if val == "" {
				row[i] = engine.Null
				continue
			}
			row[i] = engine.Str(val)
		}
		rows = append(rows, row)
	}

	tbl, err := engine.NewTable(name, engine.StringColumns(cols...), rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build table %s: %w", name, err)
	}
	return tbl, nil
}

// rowError reports a bad data row; row is zero-based and excludes the header.
func rowError(table string, row int, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &apperrors.MalformedDataError{
			Table:  table,
			Row:    row,
			Reason: fmt.Sprintf("line %d: %v", parseErr.StartLine, parseErr.Err),
		}
	}
	return fmt.Errorf("failed to read CSV row %d of %s: %w", row, table, err)
}
