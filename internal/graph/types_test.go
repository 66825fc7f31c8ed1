package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"same int width", Int{Bits: 64}, Int{Bits: 64}, true},
		{"different int width", Int{Bits: 64}, Int{Bits: 32}, false},
		{"bool vs int", Bool{}, Int{Bits: 8}, false},
		{"unit", Unit{}, Unit{}, true},
		{"same buffer", Buffer{Width: 8, Len: 16}, Buffer{Width: 8, Len: 16}, true},
		{"buffer length differs", Buffer{Width: 8, Len: 16}, Buffer{Width: 8, Len: 8}, false},
		{"array elem differs", Array{Elem: Int{Bits: 8}, Len: 4}, Array{Elem: Int{Bits: 16}, Len: 4}, false},
		{"same tuple", Tuple{Elems: []Type{Int{Bits: 64}, Bool{}}}, Tuple{Elems: []Type{Int{Bits: 64}, Bool{}}}, true},
		{"tuple arity differs", Tuple{Elems: []Type{Int{Bits: 64}}}, Tuple{Elems: []Type{Int{Bits: 64}, Bool{}}}, false},
		{
			"struct by name and shape",
			Struct{Name: "Point", Fields: []StructField{{Name: "x", Type: Int{Bits: 32}}}},
			Struct{Name: "Point", Fields: []StructField{{Name: "x", Type: Int{Bits: 32}}}},
			true,
		},
		{
			"struct name differs",
			Struct{Name: "Point", Fields: []StructField{{Name: "x", Type: Int{Bits: 32}}}},
			Struct{Name: "Pair", Fields: []StructField{{Name: "x", Type: Int{Bits: 32}}}},
			false,
		},
		{
			"enum variant payload differs",
			Enum{Name: "Opt", Variants: []EnumVariant{{Name: "None"}, {Name: "Some", Payload: Int{Bits: 64}}}},
			Enum{Name: "Opt", Variants: []EnumVariant{{Name: "None"}, {Name: "Some", Payload: Int{Bits: 32}}}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypesEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, TypesEqual(tt.b, tt.a), "equality should be symmetric")
		})
	}
}

func TestContainerLen(t *testing.T) {
	n, ok := ContainerLen(Buffer{Width: 8, Len: 32})
	assert.True(t, ok)
	assert.Equal(t, 32, n)

	n, ok = ContainerLen(Array{Elem: Bool{}, Len: 5})
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = ContainerLen(Int{Bits: 64})
	assert.False(t, ok, "scalars have no static length")
}

func TestContainerElem(t *testing.T) {
	e, ok := ContainerElem(Buffer{Width: 8, Len: 32})
	assert.True(t, ok)
	assert.Equal(t, Int{Bits: 8}, e, "buffer elements are fixed-width ints")

	e, ok = ContainerElem(Array{Elem: Tuple{Elems: []Type{Bool{}}}, Len: 3})
	assert.True(t, ok)
	assert.Equal(t, Tuple{Elems: []Type{Bool{}}}, e)

	_, ok = ContainerElem(Bool{})
	assert.False(t, ok)
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Int{Bits: 64}, "i64"},
		{Bool{}, "bool"},
		{Unit{}, "unit"},
		{Buffer{Width: 8, Len: 16}, "buf8x16"},
		{Array{Elem: Int{Bits: 32}, Len: 4}, "arr4<i32>"},
		{Tuple{Elems: []Type{Int{Bits: 64}, Bool{}}}, "(i64,bool)"},
		{Struct{Name: "Point"}, "struct Point"},
		{Enum{Name: "Opt"}, "enum Opt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}
