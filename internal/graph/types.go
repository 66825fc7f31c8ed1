package graph

import (
	"fmt"
	"strings"
)

// Type is a sealed interface over the semantic types a value can carry.
// Only the types declared in this package implement it, which keeps
// type switches in analysis and lowering exhaustive.
type Type interface {
	typeNode() // Marker method - seals interface to this package
	String() string
}

// Int is a fixed-width integer type. Bits is one of 8, 16, 32, 64.
type Int struct {
	Bits int
}

func (Int) typeNode()        {}
func (t Int) String() string { return fmt.Sprintf("i%d", t.Bits) }

// Bool is the boolean type.
type Bool struct{}

func (Bool) typeNode()      {}
func (Bool) String() string { return "bool" }

// Unit is the empty type carried by statement nodes that produce no value
// (Return, LoopExit).
type Unit struct{}

func (Unit) typeNode()      {}
func (Unit) String() string { return "unit" }

// Buffer is a byte-granular buffer of Len elements, each Width bits wide.
// Len is fixed at compile time; a buffer's length is public by construction.
type Buffer struct {
	Width int // element width in bits
	Len   int // element count, compile-time constant
}

func (Buffer) typeNode()        {}
func (t Buffer) String() string { return fmt.Sprintf("buf%dx%d", t.Width, t.Len) }

// Array is a fixed-length array of an arbitrary element type.
type Array struct {
	Elem Type
	Len  int
}

func (Array) typeNode()        {}
func (t Array) String() string { return fmt.Sprintf("arr%d<%s>", t.Len, t.Elem) }

// Tuple is an anonymous product type. If and Loop nodes carry Tuple types:
// their value is the tuple of merged/final yields.
type Tuple struct {
	Elems []Type
}

func (Tuple) typeNode() {}
func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// StructField is one named field of a Struct.
type StructField struct {
	Name string
	Type Type
}

// Struct is a nominal product type. Field access is positional in the IR;
// the front-end resolves field names to indices.
type Struct struct {
	Name   string
	Fields []StructField
}

func (Struct) typeNode()        {}
func (t Struct) String() string { return "struct " + t.Name }

// EnumVariant is one variant of an Enum. Payload is nil for unit variants.
type EnumVariant struct {
	Name    string
	Payload Type
}

// Enum is a nominal sum type.
type Enum struct {
	Name     string
	Variants []EnumVariant
}

func (Enum) typeNode()        {}
func (t Enum) String() string { return "enum " + t.Name }

// TypesEqual reports structural equality of two types. Nominal types
// (Struct, Enum) compare by name and shape.
func TypesEqual(a, b Type) bool {
	switch at := a.(type) {
	case Int:
		bt, ok := b.(Int)
		return ok && at.Bits == bt.Bits
	case Bool:
		_, ok := b.(Bool)
		return ok
	case Unit:
		_, ok := b.(Unit)
		return ok
	case Buffer:
		bt, ok := b.(Buffer)
		return ok && at.Width == bt.Width && at.Len == bt.Len
	case Array:
		bt, ok := b.(Array)
		return ok && at.Len == bt.Len && TypesEqual(at.Elem, bt.Elem)
	case Tuple:
		bt, ok := b.(Tuple)
		if !ok || len(at.Elems) != len(bt.Elems) {
			return false
		}
		for i := range at.Elems {
			if !TypesEqual(at.Elems[i], bt.Elems[i]) {
				return false
			}
		}
		return true
	case Struct:
		bt, ok := b.(Struct)
		if !ok || at.Name != bt.Name || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name || !TypesEqual(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	case Enum:
		bt, ok := b.(Enum)
		if !ok || at.Name != bt.Name || len(at.Variants) != len(bt.Variants) {
			return false
		}
		for i := range at.Variants {
			av, bv := at.Variants[i], bt.Variants[i]
			if av.Name != bv.Name {
				return false
			}
			if (av.Payload == nil) != (bv.Payload == nil) {
				return false
			}
			if av.Payload != nil && !TypesEqual(av.Payload, bv.Payload) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ContainerLen returns the compile-time element count of a Buffer or Array
// type. ok is false for every other type; that is what makes a loop over the
// value statically unbounded.
func ContainerLen(t Type) (int, bool) {
	switch ct := t.(type) {
	case Buffer:
		return ct.Len, true
	case Array:
		return ct.Len, true
	default:
		return 0, false
	}
}

// ContainerElem returns the element type of a Buffer or Array type.
func ContainerElem(t Type) (Type, bool) {
	switch ct := t.(type) {
	case Buffer:
		return Int{Bits: ct.Width}, true
	case Array:
		return ct.Elem, true
	default:
		return nil, false
	}
}
