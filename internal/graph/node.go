package graph

// ValueID addresses a node in a function's arena.
type ValueID int32

// NoValue marks an absent operand (e.g. a unit enum variant's payload).
const NoValue ValueID = -1

// BinOp enumerates binary operators.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd // logical/bitwise and
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var binOpNames = [...]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpShl: "shl", OpShr: "shr",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "binop?"
}

// IsComparison reports whether the operator yields a boolean.
func (op BinOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// UnOp enumerates unary operators.
type UnOp uint8

const (
	OpNot UnOp = iota // boolean negation
	OpNeg             // arithmetic negation
	OpBNot            // bitwise complement
)

var unOpNames = [...]string{OpNot: "not", OpNeg: "neg", OpBNot: "bnot"}

func (op UnOp) String() string {
	if int(op) < len(unOpNames) {
		return unOpNames[op]
	}
	return "unop?"
}

// Node represents one value in a function's data/control graph.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external node kinds and enables
// exhaustive type switches in the analysis and lowering passes.
//
// Every node produces a value (region nodes produce the tuple of their
// merged or final yields; Return and LoopExit produce unit). Operand
// references always point at already-added nodes.
type Node interface {
	nodeKind() // Marker method - seals interface to this package
}

// Param references the function parameter at Index in the signature.
type Param struct {
	Index int
}

func (Param) nodeKind() {}

// Const is a scalar literal. Booleans are stored as 0/1.
type Const struct {
	Int int64
}

func (Const) nodeKind() {}

// Binary applies Op to X and Y.
type Binary struct {
	Op   BinOp
	X, Y ValueID
}

func (Binary) nodeKind() {}

// Unary applies Op to X.
type Unary struct {
	Op UnOp
	X  ValueID
}

func (Unary) nodeKind() {}

// MakeTuple constructs a tuple (or, positionally, a struct) from Elems.
type MakeTuple struct {
	Elems []ValueID
}

func (MakeTuple) nodeKind() {}

// TupleField projects element Index out of a tuple- or struct-typed value.
type TupleField struct {
	Tuple ValueID
	Index int
}

func (TupleField) nodeKind() {}

// MakeVariant constructs an enum value with variant Tag. Payload is NoValue
// for unit variants.
type MakeVariant struct {
	Tag     int
	Payload ValueID
}

func (MakeVariant) nodeKind() {}

// VariantTag extracts the integer tag of an enum value.
type VariantTag struct {
	X ValueID
}

func (VariantTag) nodeKind() {}

// MakeBuffer constructs a buffer or array from element values.
type MakeBuffer struct {
	Elems []ValueID
}

func (MakeBuffer) nodeKind() {}

// BufferLen yields the element count of a buffer or array. Lengths are
// compile-time constants, so the result is public regardless of the
// container's sensitivity.
type BufferLen struct {
	X ValueID
}

func (BufferLen) nodeKind() {}

// BufferGet reads the element at an explicitly computed Index.
//
// The index is an explicit memory offset: it must be public, or the access
// pattern would leak. (Traversal via LoopIdx satisfies this trivially; an
// index derived from private data does not, however it was computed.)
type BufferGet struct {
	X     ValueID
	Index ValueID
}

func (BufferGet) nodeKind() {}

// BufferSet yields a copy of X with the element at Index replaced by Elem.
// Buffers have value semantics in the IR; mutation is expressed as a new
// buffer value. The index constraint of BufferGet applies.
type BufferSet struct {
	X     ValueID
	Index ValueID
	Elem  ValueID
}

func (BufferSet) nodeKind() {}

// Call invokes another function. Callee is the function name as declared;
// specialization may rewrite it to a variant name during lowering.
type Call struct {
	Callee string
	Args   []ValueID
}

func (Call) nodeKind() {}

// Export declassifies X by naming the private sources being downgraded.
//
// The export applies to this value binding at this program point only:
// other uses of the same underlying identifier keep their labels, and the
// branch history that led here stays private (lowering joins branch
// conditions into every select it synthesizes, so path labels never wash
// out through an export).
type Export struct {
	X       ValueID
	Sources []string
}

func (Export) nodeKind() {}

// Select picks Then when Cond is true, Else otherwise, in constant time at
// the target. Its result label is the join of all three operands, and the
// condition's source set propagates into the result.
//
// Select is the only conditional the lowered graph may contain for private
// conditions.
type Select struct {
	Cond ValueID
	Then ValueID
	Else ValueID
}

func (Select) nodeKind() {}

// SortByKey requests a stable sort of Payload by Keys. The lowering pass
// replaces it with a NetworkApply of the container's resolved size; it never
// survives to the emitted graph.
type SortByKey struct {
	Keys    ValueID
	Payload ValueID
}

func (SortByKey) nodeKind() {}

// NetworkApply executes the fixed comparator network for Size elements over
// Keys and Payload, producing the tuple (sorted keys, permuted payload).
//
// The comparator sequence is a function of Size alone; the backend derives
// the index pairs from Size and touches the same pairs regardless of data.
type NetworkApply struct {
	Keys    ValueID
	Payload ValueID
	Size    int
}

func (NetworkApply) nodeKind() {}

// Block is an ordered region of statements. Yield names the values the
// block hands to its enclosing region: the merged results of an If, or the
// next loop-carried state of a Loop body.
type Block struct {
	Stmts []ValueID
	Yield []ValueID
}

// If is a structured conditional. Both blocks must yield the same arity and
// types; the node's value is the tuple of merged yields. Whether the branch
// survives as a native branch or is flattened into selects depends on the
// condition's label.
type If struct {
	Cond ValueID
	Then Block
	Else Block
}

func (If) nodeKind() {}

// Loop iterates over every element of Container in order, carrying the
// state initialized by Init. The body yields the next state; the node's
// value is the tuple of final state values.
//
// The trip count is Container's compile-time length. A loop over anything
// without a fixed length is a static error caught before lowering.
type Loop struct {
	Container ValueID
	Init      []ValueID
	Body      Block
}

func (Loop) nodeKind() {}

// LoopElem is the current element of the Loop's container. It inherits the
// container's label.
type LoopElem struct {
	Loop ValueID
}

func (LoopElem) nodeKind() {}

// LoopIdx is the current iteration index of the Loop. The visit order is
// data-independent, so the index is public even over a private container.
type LoopIdx struct {
	Loop ValueID
}

func (LoopIdx) nodeKind() {}

// LoopState is the current value of loop-carried state slot Index.
type LoopState struct {
	Loop  ValueID
	Index int
}

func (LoopState) nodeKind() {}

// LoopExit requests early termination of Loop when Cond holds, making
// Results the loop's final state. Under a private condition the lowering
// pass rewrites it to a masked-accumulator form that still visits every
// element.
//
// An exit is always a direct statement of its loop's body block: front-ends
// compile an exit nested under further conditions by conjoining the path
// conditions into Cond.
type LoopExit struct {
	Loop    ValueID
	Cond    ValueID
	Results []ValueID
}

func (LoopExit) nodeKind() {}

// Return terminates the function with Values. Structured bodies have a
// single Return as the last top-level statement.
type Return struct {
	Values []ValueID
}

func (Return) nodeKind() {}
