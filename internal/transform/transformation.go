package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// RenameColumns applies an old-name to new-name mapping.
type RenameColumns struct {
	Mapping map[string]string `json:"mapping"`
}

func (t *RenameColumns) Kind() domain.OperationKind { return domain.OpRenameColumns }

func (t *RenameColumns) Validate() error {
	if len(t.Mapping) == 0 {
		return domain.ErrMissingArgument.WithDetails("mapping")
	}
	for old, next := range t.Mapping {
		if old == "" || next == "" {
			return domain.ErrInvalidArgument.WithDetails("empty column name in mapping")
		}
	}
	return nil
}

func (t *RenameColumns) Apply(s *domain.Snapshot) (*Result, error) {
	for old := range t.Mapping {
		if _, err := columnIndex(s, old); err != nil {
			return nil, err
		}
	}
	schema := s.Schema()
	cols := make([][]domain.Value, len(schema))
	for c := range schema {
		if next, ok := t.Mapping[schema[c].Name]; ok {
			schema[c].Name = next
		}
		cols[c] = s.ColumnValues(c)
	}
	// NewSnapshot rejects duplicates the rename may have introduced.
	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}

	pairs := make([]string, 0, len(t.Mapping))
	for old, name := range t.Mapping {
		pairs = append(pairs, old+">"+name)
	}
	sort.Strings(pairs)
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{ValuesAffected: len(t.Mapping)},
		Params:   map[string]string{"mapping": strings.Join(pairs, ",")},
	}, nil
}

// ReorderColumns rearranges the schema. The list must name every
// column exactly once.
type ReorderColumns struct {
	Columns []string `json:"columns"`
}

func (t *ReorderColumns) Kind() domain.OperationKind { return domain.OpReorderColumns }

func (t *ReorderColumns) Validate() error {
	if len(t.Columns) == 0 {
		return domain.ErrMissingArgument.WithDetails("columns")
	}
	return nil
}

func (t *ReorderColumns) Apply(s *domain.Snapshot) (*Result, error) {
	idx, err := columnIndices(s, t.Columns)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) != len(s.Schema()) {
		return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf(
			"column count mismatch: expected %d, got %d", len(s.Schema()), len(t.Columns)))
	}

	schema := make([]domain.Column, len(idx))
	cols := make([][]domain.Value, len(idx))
	for i, c := range idx {
		schema[i] = s.Schema()[c]
		cols[i] = s.ColumnValues(c)
	}
	// Duplicate listings collapse into duplicate names, which
	// NewSnapshot rejects.
	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}
	return &Result{
		Snapshot: next,
		Params:   map[string]string{"columns": joinNames(t.Columns)},
	}, nil
}

// Sort orders rows by one or more columns. The sort is stable, so
// earlier keys dominate and equal rows keep their relative order.
// Missing cells sort first ascending, last descending.
type Sort struct {
	By []string `json:"by"`
	// Ascending defaults to true.
	Ascending *bool `json:"ascending,omitempty"`
}

func (t *Sort) Kind() domain.OperationKind { return domain.OpSort }

func (t *Sort) Validate() error {
	if len(t.By) == 0 {
		return domain.ErrMissingArgument.WithDetails("by")
	}
	return nil
}

func (t *Sort) Apply(s *domain.Snapshot) (*Result, error) {
	idx, err := columnIndices(s, t.By)
	if err != nil {
		return nil, err
	}
	asc := t.Ascending == nil || *t.Ascending

	rows := make([]int, s.Rows())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for _, c := range idx {
			cmp, ok := s.Cell(rows[a], c).Compare(s.Cell(rows[b], c))
			if !ok || cmp == 0 {
				continue
			}
			if asc {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})

	next, err := keepRows(s, rows)
	if err != nil {
		return nil, err
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: s.Rows()},
		Params: map[string]string{
			"by":        joinNames(t.By),
			"ascending": strconv.FormatBool(asc),
		},
	}, nil
}

// ApplyFunc applies one member of the closed row-function set to a
// column, either in place or into a new column.
type ApplyFunc struct {
	Column string  `json:"column"`
	Func   RowFunc `json:"func"`
	// Operand is the constant for add, sub, mul, div, mod and pow.
	Operand *float64 `json:"operand,omitempty"`
	// Digits applies to round. Defaults to zero.
	Digits *int `json:"digits,omitempty"`
	// CastTo is the target type name for cast.
	CastTo string `json:"cast_to,omitempty"`
	// NewColumn writes the result into a fresh column instead of
	// overwriting the source.
	NewColumn string `json:"new_column,omitempty"`
}

func (t *ApplyFunc) Kind() domain.OperationKind { return domain.OpApplyFunc }

func (t *ApplyFunc) Validate() error {
	if t.Column == "" {
		return domain.ErrMissingArgument.WithDetails("column")
	}
	if !t.Func.known() {
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("unknown row function %q", t.Func))
	}
	if t.Func.needsOperand() && t.Operand == nil {
		return domain.ErrMissingArgument.WithDetails(
			fmt.Sprintf("operand for %s", t.Func))
	}
	if !t.Func.needsOperand() && t.Operand != nil {
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("%s takes no operand", t.Func))
	}
	if t.Func == FuncCast && t.CastTo == "" {
		return domain.ErrMissingArgument.WithDetails("cast_to")
	}
	if t.Func != FuncCast && t.CastTo != "" {
		return domain.ErrInvalidArgument.WithDetails("cast_to is only valid for cast")
	}
	if t.Digits != nil && t.Func != FuncRound {
		return domain.ErrInvalidArgument.WithDetails("digits is only valid for round")
	}
	return nil
}

func (t *ApplyFunc) Apply(s *domain.Snapshot) (*Result, error) {
	c, err := columnIndex(s, t.Column)
	if err != nil {
		return nil, err
	}
	srcKind := s.Schema()[c].Type

	var castTo domain.Kind
	if t.Func == FuncCast {
		castTo, err = domain.ParseKind(t.CastTo)
		if err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("cast_to: %v", err))
		}
	}
	operand := 0.0
	if t.Operand != nil {
		operand = *t.Operand
	}
	digits := 0
	if t.Digits != nil {
		digits = *t.Digits
	}
	if t.Func != FuncCast && srcKind != domain.KindInt && srcKind != domain.KindFloat {
		return nil, domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("%s requires a numeric column, %s is %s", t.Func, t.Column, srcKind))
	}

	outKind := t.Func.resultKind(srcKind, operand, castTo)
	out := make([]domain.Value, s.Rows())
	touched := 0
	for r := 0; r < s.Rows(); r++ {
		v, err := t.Func.applyCell(s.Cell(r, c), operand, digits, outKind)
		if err != nil {
			return nil, err
		}
		out[r] = v
		if !v.IsMissing() {
			touched++
		}
	}

	schema := s.Schema()
	cols := make([][]domain.Value, len(schema))
	for i := range schema {
		cols[i] = s.ColumnValues(i)
	}
	result := t.Column
	if t.NewColumn != "" {
		result = t.NewColumn
		schema = append(schema, domain.Column{Name: t.NewColumn, Type: outKind})
		cols = append(cols, out)
	} else {
		schema[c].Type = outKind
		cols[c] = out
	}
	next, err := domain.NewSnapshot(schema, cols)
	if err != nil {
		return nil, err
	}

	opDesc := string(t.Func)
	switch {
	case t.Func.needsOperand():
		opDesc += " " + strconv.FormatFloat(operand, 'g', -1, 64)
	case t.Func == FuncRound:
		opDesc += " " + strconv.Itoa(digits)
	case t.Func == FuncCast:
		opDesc += " " + t.CastTo
	}
	params := map[string]string{
		"column":  t.Column,
		"func":    string(t.Func),
		"operand": opDesc,
	}
	if t.NewColumn != "" {
		params["new_column"] = result
	}
	return &Result{
		Snapshot: next,
		Counts:   domain.OperationCounts{RowsAffected: s.Rows(), ValuesAffected: touched},
		Params:   params,
	}, nil
}
