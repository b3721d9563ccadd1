package transform

import (
	"fmt"
	"strings"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// CondOp is a comparison operator in a row condition.
type CondOp string

const (
	CondEq       CondOp = "eq"
	CondNe       CondOp = "ne"
	CondGt       CondOp = "gt"
	CondGe       CondOp = "ge"
	CondLt       CondOp = "lt"
	CondLe       CondOp = "le"
	CondContains CondOp = "contains"
)

var condOps = map[CondOp]bool{
	CondEq: true, CondNe: true, CondGt: true, CondGe: true,
	CondLt: true, CondLe: true, CondContains: true,
}

// Condition compares one column against a constant operand. A slice
// of conditions combines with AND semantics. Rows with a missing cell
// in the tested column never match.
type Condition struct {
	Column  string `json:"column"`
	Op      CondOp `json:"op"`
	Operand any    `json:"operand"`
}

func (c Condition) validate() error {
	if c.Column == "" {
		return domain.ErrMissingArgument.WithDetails("condition column")
	}
	if !condOps[c.Op] {
		return domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("condition op %q", c.Op))
	}
	return nil
}

// compiled is a condition bound to a snapshot's columns.
type compiled struct {
	col     int
	op      CondOp
	operand domain.Value
}

// compileConditions resolves columns and coerces operands to the
// column types. contains requires a string column.
func compileConditions(s *domain.Snapshot, conds []Condition) ([]compiled, error) {
	out := make([]compiled, len(conds))
	for i, c := range conds {
		idx, err := columnIndex(s, c.Column)
		if err != nil {
			return nil, err
		}
		typ, _ := s.ColumnType(c.Column)
		if c.Op == CondContains && typ != domain.KindString {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("contains requires a string column, %s is %s", c.Column, typ))
		}
		operand, err := domain.DecodeValue(c.Operand, typ)
		if err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails(
				fmt.Sprintf("condition operand for %s: %v", c.Column, err))
		}
		if operand.IsMissing() {
			return nil, domain.ErrInvalidArgument.WithDetails(
				"condition operand must not be null")
		}
		out[i] = compiled{col: idx, op: c.Op, operand: operand}
	}
	return out, nil
}

// match reports whether the row satisfies every condition.
func match(s *domain.Snapshot, row int, conds []compiled) bool {
	for _, c := range conds {
		cell := s.Cell(row, c.col)
		if cell.IsMissing() {
			return false
		}
		switch c.op {
		case CondContains:
			if !strings.Contains(cell.Str(), c.operand.Str()) {
				return false
			}
		case CondEq:
			if !cell.Equal(c.operand) {
				return false
			}
		case CondNe:
			if cell.Equal(c.operand) {
				return false
			}
		default:
			cmp, ok := cell.Compare(c.operand)
			if !ok {
				return false
			}
			switch c.op {
			case CondGt:
				if cmp <= 0 {
					return false
				}
			case CondGe:
				if cmp < 0 {
					return false
				}
			case CondLt:
				if cmp >= 0 {
					return false
				}
			case CondLe:
				if cmp > 0 {
					return false
				}
			}
		}
	}
	return true
}

// describeConditions renders conditions for an operation record.
func describeConditions(conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Operand)
	}
	return strings.Join(parts, " and ")
}
