// Package domain defines the core domain models for TabMesh.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot constraints.
const (
	MaxColumnNameLength = 128
	MaxColumns          = 1024
)

// Column is one entry of a snapshot schema: an ordered (name, type) pair.
type Column struct {
	Name string `json:"name"`
	Type Kind   `json:"type"`
}

// Snapshot represents one immutable state of a table: an ordered schema
// plus column-major cell storage. A Snapshot is never mutated after
// construction; transforms build new ones, and superseded snapshots
// stay owned by their version log until evicted.
type Snapshot struct {
	schema []Column
	cols   [][]Value
	rows   int
	size   int64
	byName map[string]int
}

// NewSnapshot constructs a snapshot from a schema and column-major cells.
// It fails with ErrSchemaViolation if column names are empty, duplicated,
// or over-long, if the column count does not match the schema, if any
// column's length differs from the others, or if a cell's kind matches
// neither its column's declared type nor the missing sentinel.
func NewSnapshot(schema []Column, cols [][]Value) (*Snapshot, error) {
	if len(schema) != len(cols) {
		return nil, ErrSchemaViolation.WithDetails(
			fmt.Sprintf("schema has %d columns, data has %d", len(schema), len(cols)))
	}
	if len(schema) > MaxColumns {
		return nil, ErrSchemaViolation.WithDetails(
			fmt.Sprintf("%d columns exceeds limit of %d", len(schema), MaxColumns))
	}

	byName := make(map[string]int, len(schema))
	for i, col := range schema {
		if col.Name == "" {
			return nil, ErrSchemaViolation.WithDetails("empty column name")
		}
		if len(col.Name) > MaxColumnNameLength {
			return nil, ErrSchemaViolation.WithDetails("column name exceeds 128 characters")
		}
		if col.Type == KindMissing {
			return nil, ErrSchemaViolation.WithDetails(
				"column " + col.Name + " declares the missing sentinel as its type")
		}
		if _, dup := byName[col.Name]; dup {
			return nil, ErrSchemaViolation.WithDetails("duplicate column name: " + col.Name)
		}
		byName[col.Name] = i
	}

	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}

	var size int64
	for i, col := range cols {
		if len(col) != rows {
			return nil, ErrSchemaViolation.WithDetails(fmt.Sprintf(
				"column %s has %d values, expected %d", schema[i].Name, len(col), rows))
		}
		for _, v := range col {
			if !v.IsMissing() && v.Kind() != schema[i].Type {
				return nil, ErrSchemaViolation.WithDetails(fmt.Sprintf(
					"column %s declared %s, found %s", schema[i].Name, schema[i].Type, v.Kind()))
			}
			size += v.approxBytes()
		}
		size += int64(len(schema[i].Name)) + 8
	}

	// Defensive copies: callers keep no aliases into the snapshot.
	schemaCopy := make([]Column, len(schema))
	copy(schemaCopy, schema)
	colsCopy := make([][]Value, len(cols))
	for i, col := range cols {
		colsCopy[i] = make([]Value, len(col))
		copy(colsCopy[i], col)
	}

	return &Snapshot{
		schema: schemaCopy,
		cols:   colsCopy,
		rows:   rows,
		size:   size,
		byName: byName,
	}, nil
}

// Rows returns the row count.
func (s *Snapshot) Rows() int { return s.rows }

// Schema returns a copy of the ordered schema.
func (s *Snapshot) Schema() []Column {
	out := make([]Column, len(s.schema))
	copy(out, s.schema)
	return out
}

// ColumnNames returns the ordered column names.
func (s *Snapshot) ColumnNames() []string {
	names := make([]string, len(s.schema))
	for i, col := range s.schema {
		names[i] = col.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (s *Snapshot) ColumnIndex(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

// ColumnType returns the declared type of the named column.
func (s *Snapshot) ColumnType(name string) (Kind, bool) {
	i, ok := s.byName[name]
	if !ok {
		return KindMissing, false
	}
	return s.schema[i].Type, true
}

// Cell returns the cell at (row, col). Out-of-range access returns the
// missing sentinel.
func (s *Snapshot) Cell(row, col int) Value {
	if row < 0 || row >= s.rows || col < 0 || col >= len(s.cols) {
		return Missing()
	}
	return s.cols[col][row]
}

// Row returns a copy of one row in schema order.
func (s *Snapshot) Row(row int) []Value {
	out := make([]Value, len(s.cols))
	for c := range s.cols {
		out[c] = s.Cell(row, c)
	}
	return out
}

// ColumnValues returns a copy of one column's cells.
func (s *Snapshot) ColumnValues(col int) []Value {
	if col < 0 || col >= len(s.cols) {
		return nil
	}
	out := make([]Value, len(s.cols[col]))
	copy(out, s.cols[col])
	return out
}

// MissingCounts returns the number of missing cells per column, keyed
// by column name.
func (s *Snapshot) MissingCounts() map[string]int {
	counts := make(map[string]int, len(s.schema))
	for i, col := range s.schema {
		n := 0
		for _, v := range s.cols[i] {
			if v.IsMissing() {
				n++
			}
		}
		counts[col.Name] = n
	}
	return counts
}

// ApproxSize returns the estimated retained byte size of the snapshot,
// memoized at construction. Session size accounting sums this across
// all snapshots a session retains.
func (s *Snapshot) ApproxSize() int64 { return s.size }

// wireSnapshot is the JSON wire form shared by the persistence adapter
// and the ingestion boundary.
type wireSnapshot struct {
	Schema []Column `json:"schema"`
	Rows   int      `json:"rows"`
	Cols   [][]any  `json:"cols"`
}

// MarshalJSON encodes the snapshot into its wire form.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	cols := make([][]any, len(s.cols))
	for i, col := range s.cols {
		cells := make([]any, len(col))
		for j, v := range col {
			cells[j] = v // Value implements json.Marshaler
		}
		cols[i] = cells
	}
	return json.Marshal(wireSnapshot{
		Schema: s.schema,
		Rows:   s.rows,
		Cols:   cols,
	})
}

// UnmarshalSnapshot decodes a snapshot from its wire form, re-validating
// every construction invariant.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	// UseNumber so int64 cells above 2^53 survive the round trip.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var wire wireSnapshot
	if err := dec.Decode(&wire); err != nil {
		return nil, ErrSchemaViolation.WithCause(err)
	}

	cols := make([][]Value, len(wire.Cols))
	for i, raw := range wire.Cols {
		if i >= len(wire.Schema) {
			return nil, ErrSchemaViolation.WithDetails("more columns than schema entries")
		}
		cells := make([]Value, len(raw))
		for j, cell := range raw {
			v, err := DecodeValue(cell, wire.Schema[i].Type)
			if err != nil {
				return nil, err
			}
			cells[j] = v
		}
		cols[i] = cells
	}

	snap, err := NewSnapshot(wire.Schema, cols)
	if err != nil {
		return nil, err
	}
	if snap.rows != wire.Rows {
		return nil, ErrSchemaViolation.WithDetails(fmt.Sprintf(
			"declared %d rows, found %d", wire.Rows, snap.rows))
	}
	return snap, nil
}

// Builder assembles a new snapshot row by row against a fixed schema.
// Transforms use it to produce candidate snapshots from a prior state.
type Builder struct {
	schema []Column
	cols   [][]Value
}

// NewBuilder creates a builder for the given schema.
func NewBuilder(schema []Column) *Builder {
	cols := make([][]Value, len(schema))
	return &Builder{schema: schema, cols: cols}
}

// Append adds one row in schema order. Short rows are padded with the
// missing sentinel.
func (b *Builder) Append(row []Value) {
	for c := range b.cols {
		v := Missing()
		if c < len(row) {
			v = row[c]
		}
		b.cols[c] = append(b.cols[c], v)
	}
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int {
	if len(b.cols) == 0 {
		return 0
	}
	return len(b.cols[0])
}

// Snapshot validates and returns the assembled snapshot.
func (b *Builder) Snapshot() (*Snapshot, error) {
	return NewSnapshot(b.schema, b.cols)
}
