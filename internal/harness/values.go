package harness

import (
	"fmt"
	"strings"
)

// ValueKind discriminates the concrete runtime values the reference
// evaluator computes with.
type ValueKind uint8

const (
	KindUnit ValueKind = iota
	KindInt
	KindBool
	KindBuffer // buffers and arrays
	KindTuple
	KindEnum
)

// Value is a concrete runtime value. Booleans store 0/1 in Int; buffers,
// arrays and tuples store their members in Elems; enums carry the variant
// tag and, for payload variants, the payload as Elems[0].
type Value struct {
	Kind  ValueKind
	Int   int64
	Tag   int
	Elems []Value
}

// UnitVal is the unit value.
func UnitVal() Value { return Value{Kind: KindUnit} }

// IntVal wraps an integer.
func IntVal(n int64) Value { return Value{Kind: KindInt, Int: n} }

// BoolVal wraps a boolean.
func BoolVal(b bool) Value {
	v := Value{Kind: KindBool}
	if b {
		v.Int = 1
	}
	return v
}

// BufVal builds a buffer of integer elements.
func BufVal(elems ...int64) Value {
	vals := make([]Value, len(elems))
	for i, e := range elems {
		vals[i] = IntVal(e)
	}
	return Value{Kind: KindBuffer, Elems: vals}
}

// TupleVal builds a tuple.
func TupleVal(elems ...Value) Value {
	return Value{Kind: KindTuple, Elems: elems}
}

// Bool reads the value as a condition. Any non-zero scalar counts as true.
func (v Value) Bool() bool { return v.Int != 0 }

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Int != o.Int || v.Tag != o.Tag || len(v.Elems) != len(o.Elems) {
		return false
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindUnit:
		return "()"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindBool:
		if v.Int != 0 {
			return "true"
		}
		return "false"
	case KindBuffer:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindTuple:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindEnum:
		if len(v.Elems) > 0 {
			return fmt.Sprintf("#%d(%s)", v.Tag, v.Elems[0])
		}
		return fmt.Sprintf("#%d", v.Tag)
	default:
		return "?"
	}
}

// valueStrings renders a result tuple for snapshots and error messages.
func valueStrings(vals []Value) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out
}
