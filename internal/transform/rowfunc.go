package transform

import (
	"fmt"
	"math"
	"strconv"

	"github.com/yndnr/tabmesh-go/internal/core/domain"
)

// RowFunc names a member of the closed row-function set applied by
// the apply_func transform. Functions are selected by tag; there is
// no dynamic code evaluation.
type RowFunc string

const (
	FuncAdd   RowFunc = "add"
	FuncSub   RowFunc = "sub"
	FuncMul   RowFunc = "mul"
	FuncDiv   RowFunc = "div"
	FuncMod   RowFunc = "mod"
	FuncPow   RowFunc = "pow"
	FuncAbs   RowFunc = "abs"
	FuncRound RowFunc = "round"
	FuncCast  RowFunc = "cast"
)

// needsOperand reports whether the function takes a constant operand.
func (f RowFunc) needsOperand() bool {
	switch f {
	case FuncAdd, FuncSub, FuncMul, FuncDiv, FuncMod, FuncPow:
		return true
	}
	return false
}

func (f RowFunc) known() bool {
	switch f {
	case FuncAdd, FuncSub, FuncMul, FuncDiv, FuncMod, FuncPow,
		FuncAbs, FuncRound, FuncCast:
		return true
	}
	return false
}

// resultKind determines the output column type for a function applied
// to a column of the given kind. div and pow always widen to float;
// integer arithmetic stays integer when the operand is integral.
func (f RowFunc) resultKind(src domain.Kind, operand float64, castTo domain.Kind) domain.Kind {
	switch f {
	case FuncCast:
		return castTo
	case FuncDiv, FuncPow:
		return domain.KindFloat
	case FuncAdd, FuncSub, FuncMul, FuncMod:
		if src == domain.KindInt && operand == math.Trunc(operand) {
			return domain.KindInt
		}
		return domain.KindFloat
	default: // abs, round
		return src
	}
}

// applyCell transforms one cell. Missing cells stay missing.
func (f RowFunc) applyCell(v domain.Value, operand float64, digits int, out domain.Kind) (domain.Value, error) {
	if v.IsMissing() {
		return domain.Missing(), nil
	}
	if f == FuncCast {
		return castCell(v, out)
	}

	x, ok := v.AsFloat()
	if !ok {
		return domain.Missing(), domain.ErrInvalidArgument.WithDetails(
			fmt.Sprintf("%s requires a numeric column", f))
	}

	var y float64
	switch f {
	case FuncAdd:
		y = x + operand
	case FuncSub:
		y = x - operand
	case FuncMul:
		y = x * operand
	case FuncDiv:
		if operand == 0 {
			return domain.Missing(), domain.ErrInvalidArgument.WithDetails("division by zero")
		}
		y = x / operand
	case FuncMod:
		if operand == 0 {
			return domain.Missing(), domain.ErrInvalidArgument.WithDetails("modulo by zero")
		}
		y = math.Mod(x, operand)
	case FuncPow:
		y = math.Pow(x, operand)
	case FuncAbs:
		y = math.Abs(x)
	case FuncRound:
		scale := math.Pow(10, float64(digits))
		y = math.Round(x*scale) / scale
	}

	if out == domain.KindInt {
		return domain.Int(int64(y)), nil
	}
	return domain.Float(y), nil
}

// castCell converts one cell to the target kind using display-string
// parsing for the string-valued directions.
func castCell(v domain.Value, to domain.Kind) (domain.Value, error) {
	if v.Kind() == to {
		return v, nil
	}
	switch to {
	case domain.KindString:
		return domain.String(v.Display()), nil
	case domain.KindInt:
		if f, ok := v.AsFloat(); ok {
			return domain.Int(int64(f)), nil
		}
		if v.Kind() == domain.KindString {
			n, err := strconv.ParseInt(v.Str(), 10, 64)
			if err != nil {
				return domain.Missing(), domain.ErrInvalidArgument.WithDetails(
					fmt.Sprintf("cannot cast %q to int", v.Str()))
			}
			return domain.Int(n), nil
		}
		if v.Kind() == domain.KindBool {
			if v.BoolVal() {
				return domain.Int(1), nil
			}
			return domain.Int(0), nil
		}
	case domain.KindFloat:
		if f, ok := v.AsFloat(); ok {
			return domain.Float(f), nil
		}
		if v.Kind() == domain.KindString {
			f, err := strconv.ParseFloat(v.Str(), 64)
			if err != nil {
				return domain.Missing(), domain.ErrInvalidArgument.WithDetails(
					fmt.Sprintf("cannot cast %q to float", v.Str()))
			}
			return domain.Float(f), nil
		}
	case domain.KindBool:
		if v.Kind() == domain.KindString {
			b, err := strconv.ParseBool(v.Str())
			if err != nil {
				return domain.Missing(), domain.ErrInvalidArgument.WithDetails(
					fmt.Sprintf("cannot cast %q to bool", v.Str()))
			}
			return domain.Bool(b), nil
		}
		if f, ok := v.AsFloat(); ok {
			return domain.Bool(f != 0), nil
		}
	}
	return domain.Missing(), domain.ErrInvalidArgument.WithDetails(
		fmt.Sprintf("cannot cast %s to %s", v.Kind(), to))
}
