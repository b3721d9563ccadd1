package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// DecodeCSV parses a CSV document into a snapshot. The first record
// is the header. Column types are inferred from the data: the
// narrowest of int, float, bool and timestamp that every non-empty
// cell in the column parses as, falling back to string. Empty cells
// become the missing sentinel.
func DecodeCSV(data []byte) (*domain.Snapshot, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	header := records[0]
	rows := records[1:]

	schema := make([]domain.Column, len(header))
	for c, name := range header {
		schema[c] = domain.Column{
			Name: strings.TrimSpace(name),
			Type: inferColumnKind(rows, c),
		}
	}

	b := domain.NewBuilder(schema)
	for _, rec := range rows {
		row := make([]domain.Value, len(schema))
		for c := range schema {
			v, err := parseCell(rec[c], schema[c].Type)
			if err != nil {
				return nil, err
			}
			row[c] = v
		}
		b.Append(row)
	}
	return b.Snapshot()
}

// inferColumnKind scans one column and returns the narrowest kind
// every non-empty cell fits. Int is tried before float so "3" stays
// integral, and before bool so "1"/"0" columns stay numeric.
func inferColumnKind(rows [][]string, col int) domain.Kind {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false
	for _, rec := range rows {
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		seen = true
		if isInt {
			_, err := strconv.ParseInt(cell, 10, 64)
			isInt = err == nil
		}
		if isFloat {
			_, err := strconv.ParseFloat(cell, 64)
			isFloat = err == nil
		}
		if isBool {
			_, err := strconv.ParseBool(cell)
			isBool = err == nil
		}
		if isTime {
			_, err := time.Parse(time.RFC3339Nano, cell)
			isTime = err == nil
		}
	}
	switch {
	case !seen:
		return domain.KindString
	case isInt:
		return domain.KindInt
	case isFloat:
		return domain.KindFloat
	case isBool:
		return domain.KindBool
	case isTime:
		return domain.KindTime
	}
	return domain.KindString
}

func parseCell(raw string, typ domain.Kind) (domain.Value, error) {
	cell := strings.TrimSpace(raw)
	if cell == "" {
		return domain.Missing(), nil
	}
	switch typ {
	case domain.KindInt:
		i, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return domain.Missing(), fmt.Errorf("cell %q in int column: %w", cell, err)
		}
		return domain.Int(i), nil
	case domain.KindFloat:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return domain.Missing(), fmt.Errorf("cell %q in float column: %w", cell, err)
		}
		return domain.Float(f), nil
	case domain.KindBool:
		b, err := strconv.ParseBool(cell)
		if err != nil {
			return domain.Missing(), fmt.Errorf("cell %q in bool column: %w", cell, err)
		}
		return domain.Bool(b), nil
	case domain.KindTime:
		ts, err := time.Parse(time.RFC3339Nano, cell)
		if err != nil {
			return domain.Missing(), fmt.Errorf("cell %q in time column: %w", cell, err)
		}
		return domain.Time(ts), nil
	}
	return domain.String(raw), nil
}
