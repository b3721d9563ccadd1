// Package domain defines the core domain models for TabMesh.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. A Snapshot is an immutable table state, a
// Value is one cell, and an OperationRecord is one audit entry.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the type of a cell value or a declared column type.
type Kind uint8

// Supported cell kinds. KindMissing is the per-cell sentinel and is
// distinguishable from every valid value of any declared column type.
const (
	KindMissing Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

var kindNames = map[Kind]string{
	KindMissing: "missing",
	KindString:  "string",
	KindInt:     "int",
	KindFloat:   "float",
	KindBool:    "bool",
	KindTime:    "time",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind converts a kind name to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindMissing, ErrInvalidArgument.WithDetails("unknown type: " + name)
}

// MarshalJSON encodes the kind as its lowercase name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the kind from its lowercase name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value is a single table cell. The zero value is the missing sentinel.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bit  bool
	ts   time.Time
}

// Missing returns the missing-cell sentinel.
func Missing() Value { return Value{} }

// String returns a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer cell.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float returns a float cell.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, bit: b} }

// Time returns a timestamp cell.
func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

// Kind returns the kind of the cell.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the cell is the missing sentinel.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Str returns the string payload. Valid only for KindString cells.
func (v Value) Str() string { return v.str }

// IntVal returns the integer payload. Valid only for KindInt cells.
func (v Value) IntVal() int64 { return v.num }

// FloatVal returns the float payload. Valid only for KindFloat cells.
func (v Value) FloatVal() float64 { return v.flt }

// BoolVal returns the boolean payload. Valid only for KindBool cells.
func (v Value) BoolVal() bool { return v.bit }

// TimeVal returns the timestamp payload. Valid only for KindTime cells.
func (v Value) TimeVal() time.Time { return v.ts }

// AsFloat returns the cell as a float64 for numeric computation.
// The second result is false for missing and non-numeric cells.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.num), true
	case KindFloat:
		return v.flt, true
	default:
		return 0, false
	}
}

// Equal reports whether two cells hold the same kind and payload.
// Two missing cells are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindMissing:
		return true
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt
	case KindBool:
		return v.bit == o.bit
	case KindTime:
		return v.ts.Equal(o.ts)
	}
	return false
}

// Compare orders two cells of the same kind. Missing cells sort before
// everything else. The second result is false when the cells are not
// comparable (different kinds, or an unordered kind).
func (v Value) Compare(o Value) (int, bool) {
	if v.IsMissing() || o.IsMissing() {
		switch {
		case v.IsMissing() && o.IsMissing():
			return 0, true
		case v.IsMissing():
			return -1, true
		default:
			return 1, true
		}
	}

	// Mixed int/float columns never occur, but numeric comparison is
	// defined across both kinds for filter operands.
	if vf, ok := v.AsFloat(); ok {
		if of, ok := o.AsFloat(); ok {
			switch {
			case vf < of:
				return -1, true
			case vf > of:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if v.kind != o.kind {
		return 0, false
	}

	switch v.kind {
	case KindString:
		switch {
		case v.str < o.str:
			return -1, true
		case v.str > o.str:
			return 1, true
		default:
			return 0, true
		}
	case KindBool:
		switch {
		case v.bit == o.bit:
			return 0, true
		case !v.bit:
			return -1, true
		default:
			return 1, true
		}
	case KindTime:
		switch {
		case v.ts.Before(o.ts):
			return -1, true
		case v.ts.After(o.ts):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// Display returns a human-readable rendering of the cell.
// Missing cells render as an empty string.
func (v Value) Display() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bit)
	case KindTime:
		return v.ts.Format(time.RFC3339)
	default:
		return ""
	}
}

// approxBytes estimates the retained byte size of the cell.
func (v Value) approxBytes() int64 {
	const cellOverhead = 16
	if v.kind == KindString {
		return cellOverhead + int64(len(v.str))
	}
	return cellOverhead
}

// MarshalJSON encodes the cell as a native JSON scalar:
// null for missing, string/number/bool for typed cells, and an
// RFC 3339 string for timestamps.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindMissing:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.num)
	case KindFloat:
		return json.Marshal(v.flt)
	case KindBool:
		return json.Marshal(v.bit)
	case KindTime:
		return json.Marshal(v.ts.Format(time.RFC3339Nano))
	}
	return nil, fmt.Errorf("domain: cannot marshal kind %s", v.kind)
}

// DecodeValue coerces a decoded JSON scalar into a cell of the declared
// column type. nil becomes the missing sentinel. Numbers arrive as
// json.Number when the decoder uses UseNumber (the snapshot wire path)
// or as float64 otherwise; json.Number keeps int64 values above 2^53
// exact, where a float64 round trip would silently alter them.
func DecodeValue(raw any, typ Kind) (Value, error) {
	if raw == nil {
		return Missing(), nil
	}

	switch typ {
	case KindString:
		if s, ok := raw.(string); ok {
			return String(s), nil
		}
	case KindInt:
		switch n := raw.(type) {
		case json.Number:
			if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return Int(i), nil
			}
			if f, err := n.Float64(); err == nil {
				return Int(int64(f)), nil
			}
		case float64:
			return Int(int64(n)), nil
		}
	case KindFloat:
		switch n := raw.(type) {
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return Float(f), nil
			}
		case float64:
			return Float(n), nil
		}
	case KindBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case KindTime:
		if s, ok := raw.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return Missing(), ErrSchemaViolation.WithDetails("bad timestamp: " + s)
			}
			return Time(t), nil
		}
	}

	return Missing(), ErrSchemaViolation.WithDetails(
		fmt.Sprintf("cannot decode %T into %s column", raw, typ))
}
