package graph

import (
	"fmt"
)

// Label is the sensitivity of a value: public or private. The lattice is the
// two-point join lattice with Public below Private.
type Label uint8

const (
	Public Label = iota
	Private
)

func (l Label) String() string {
	if l == Private {
		return "private"
	}
	return "public"
}

// Join returns the least upper bound of two labels.
func (l Label) Join(other Label) Label {
	if l == Private || other == Private {
		return Private
	}
	return Public
}

// DeclLabel is a parameter's declared sensitivity. Uncontrolled functions
// leave every parameter unlabeled; controlled functions declare a default
// per parameter that call sites may tighten (public → private) but never
// loosen.
type DeclLabel uint8

const (
	DeclUnlabeled DeclLabel = iota
	DeclPublic
	DeclPrivate
)

func (d DeclLabel) String() string {
	switch d {
	case DeclPublic:
		return "public"
	case DeclPrivate:
		return "private"
	default:
		return "unlabeled"
	}
}

// ParamRole marks parameters that are structurally tied to memory layout.
// Length- and offset-role parameters feed public-index positions and can
// never be privatized by a call site.
type ParamRole uint8

const (
	RoleNone ParamRole = iota
	RoleLength
	RoleOffset
)

func (r ParamRole) String() string {
	switch r {
	case RoleLength:
		return "length"
	case RoleOffset:
		return "offset"
	default:
		return "none"
	}
}

// ParamSpec declares one parameter.
type ParamSpec struct {
	Name  string
	Type  Type
	Label DeclLabel
	Role  ParamRole
}

// ResultSpec declares one function result. Label is meaningful only on
// controlled functions, where a declared-public result obliges the body to
// deliver one (via export if necessary).
type ResultSpec struct {
	Name  string
	Type  Type
	Label DeclLabel
}

// Signature is a function's declared interface. Controlled functions carry
// explicit parameter labels; uncontrolled functions take whatever labels
// the call site implies.
type Signature struct {
	Params     []ParamSpec
	Results    []ResultSpec
	Controlled bool
}

// Pos is a source position attached to a node for diagnostics. The zero
// value means "no position".
type Pos struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether the position carries real source coordinates.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Func is one function body: a signature plus an arena of nodes and the
// structured top-level block. Nodes, Types and Positions are parallel
// slices indexed by ValueID.
//
// Construction convention: a region node (If, Loop) is added first as a
// placeholder so that body statements can reference it, then overwritten in
// place once its blocks are complete. After construction a Func is
// immutable; passes that transform a function return a new Func.
type Func struct {
	Name  string
	Sig   Signature
	Nodes []Node
	Types []Type
	Positions []Pos
	Body  Block
}

// NewFunc creates an empty function with the given name and signature.
func NewFunc(name string, sig Signature) *Func {
	return &Func{Name: name, Sig: sig}
}

// Add appends a node with its type to the arena and returns its ValueID.
func (f *Func) Add(n Node, t Type) ValueID {
	f.Nodes = append(f.Nodes, n)
	f.Types = append(f.Types, t)
	f.Positions = append(f.Positions, Pos{})
	return ValueID(len(f.Nodes) - 1)
}

// AddAt is Add with a source position.
func (f *Func) AddAt(n Node, t Type, pos Pos) ValueID {
	id := f.Add(n, t)
	f.Positions[id] = pos
	return id
}

// Node returns the node for id. Panics on an out-of-range id; structural
// validation happens once at build time, not on every access.
func (f *Func) Node(id ValueID) Node { return f.Nodes[id] }

// TypeOf returns the type of id.
func (f *Func) TypeOf(id ValueID) Type { return f.Types[id] }

// PosOf returns the source position of id.
func (f *Func) PosOf(id ValueID) Pos { return f.Positions[id] }

// NumValues returns the arena size.
func (f *Func) NumValues() int { return len(f.Nodes) }

// Operands returns the data operands of a node: the already-evaluated
// values it reads. Region block members are not operands (If branch
// statements are containment, not data edges), but region inputs
// (conditions, containers, initial state, exit results, yields) are.
func Operands(n Node) []ValueID {
	switch nd := n.(type) {
	case Param, Const, LoopElem, LoopIdx, LoopState:
		return nil
	case Binary:
		return []ValueID{nd.X, nd.Y}
	case Unary:
		return []ValueID{nd.X}
	case MakeTuple:
		return nd.Elems
	case TupleField:
		return []ValueID{nd.Tuple}
	case MakeVariant:
		if nd.Payload == NoValue {
			return nil
		}
		return []ValueID{nd.Payload}
	case VariantTag:
		return []ValueID{nd.X}
	case MakeBuffer:
		return nd.Elems
	case BufferLen:
		return []ValueID{nd.X}
	case BufferGet:
		return []ValueID{nd.X, nd.Index}
	case BufferSet:
		return []ValueID{nd.X, nd.Index, nd.Elem}
	case Call:
		return nd.Args
	case Export:
		return []ValueID{nd.X}
	case Select:
		return []ValueID{nd.Cond, nd.Then, nd.Else}
	case SortByKey:
		return []ValueID{nd.Keys, nd.Payload}
	case NetworkApply:
		return []ValueID{nd.Keys, nd.Payload}
	case If:
		ops := []ValueID{nd.Cond}
		ops = append(ops, nd.Then.Yield...)
		ops = append(ops, nd.Else.Yield...)
		return ops
	case Loop:
		ops := []ValueID{nd.Container}
		ops = append(ops, nd.Init...)
		ops = append(ops, nd.Body.Yield...)
		return ops
	case LoopExit:
		ops := []ValueID{nd.Cond}
		ops = append(ops, nd.Results...)
		return ops
	case Return:
		return nd.Values
	default:
		return nil
	}
}

// SubBlocks returns the nested blocks of a region node, nil for leaf nodes.
func SubBlocks(n Node) []*Block {
	switch nd := n.(type) {
	case If:
		return []*Block{&nd.Then, &nd.Else}
	case Loop:
		return []*Block{&nd.Body}
	default:
		return nil
	}
}

// WalkBlocks visits every block of the function in execution order,
// starting with the body. For a structured graph this order coincides with
// a reverse postorder over the region tree.
func (f *Func) WalkBlocks(visit func(b *Block)) {
	var walk func(b *Block)
	walk = func(b *Block) {
		visit(b)
		for _, id := range b.Stmts {
			for _, sub := range SubBlocks(f.Nodes[id]) {
				walk(sub)
			}
		}
	}
	walk(&f.Body)
}

// ValidationError reports a structural defect in a function graph.
type ValidationError struct {
	Func    string
	Value   ValueID
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: v%d: %s", e.Func, e.Value, e.Message)
}

// Validate checks the arena's structural invariants. Returns all defects
// found (does not fail-fast). A front-end that produced a non-empty result
// has a bug; passes assume a validated graph.
func (f *Func) Validate() []ValidationError {
	var errs []ValidationError

	fail := func(id ValueID, format string, args ...any) {
		errs = append(errs, ValidationError{Func: f.Name, Value: id, Message: fmt.Sprintf(format, args...)})
	}

	n := ValueID(len(f.Nodes))
	if len(f.Types) != int(n) || len(f.Positions) != int(n) {
		fail(NoValue, "arena slices disagree: %d nodes, %d types, %d positions", n, len(f.Types), len(f.Positions))
		return errs
	}

	scheduled := make([]bool, n)
	var checkBlock func(b *Block, owner ValueID)
	checkBlock = func(b *Block, owner ValueID) {
		for _, id := range b.Stmts {
			if id < 0 || id >= n {
				fail(owner, "block references out-of-range statement v%d", id)
				continue
			}
			if scheduled[id] {
				fail(id, "statement scheduled twice")
			}
			scheduled[id] = true
			if exit, ok := f.Nodes[id].(LoopExit); ok && exit.Loop != owner {
				fail(id, "exit for loop v%d scheduled outside that loop's body", exit.Loop)
			}
			for _, sub := range SubBlocks(f.Nodes[id]) {
				checkBlock(sub, id)
			}
		}
		for _, id := range b.Yield {
			if id < 0 || id >= n {
				fail(owner, "block yields out-of-range value v%d", id)
			}
		}
	}
	checkBlock(&f.Body, NoValue)

	for id := ValueID(0); id < n; id++ {
		for _, op := range Operands(f.Nodes[id]) {
			if op < 0 || op >= n {
				fail(id, "operand v%d out of range", op)
				continue
			}
			// Region nodes are allocated before their bodies are filled in,
			// so their yield operands legitimately carry higher IDs.
			if op >= id && !isRegion(f.Nodes[id]) {
				fail(id, "operand v%d does not precede its use", op)
			}
		}
		switch nd := f.Nodes[id].(type) {
		case Param:
			if nd.Index < 0 || nd.Index >= len(f.Sig.Params) {
				fail(id, "parameter index %d outside signature", nd.Index)
			}
		case If:
			if len(nd.Then.Yield) != len(nd.Else.Yield) {
				fail(id, "branch yields disagree: then %d, else %d", len(nd.Then.Yield), len(nd.Else.Yield))
			}
		case Loop:
			if len(nd.Body.Yield) != len(nd.Init) {
				fail(id, "loop body yields %d values for %d state slots", len(nd.Body.Yield), len(nd.Init))
			}
		case LoopExit:
			loop, ok := f.Nodes[nd.Loop].(Loop)
			if !ok {
				fail(id, "exit target v%d is not a loop", nd.Loop)
			} else if len(nd.Results) != len(loop.Init) {
				fail(id, "exit carries %d results for %d state slots", len(nd.Results), len(loop.Init))
			}
		case LoopElem:
			if _, ok := f.Nodes[nd.Loop].(Loop); !ok {
				fail(id, "element binding targets non-loop v%d", nd.Loop)
			}
		case LoopIdx:
			if _, ok := f.Nodes[nd.Loop].(Loop); !ok {
				fail(id, "index binding targets non-loop v%d", nd.Loop)
			}
		case LoopState:
			loop, ok := f.Nodes[nd.Loop].(Loop)
			if !ok {
				fail(id, "state binding targets non-loop v%d", nd.Loop)
			} else if nd.Index < 0 || nd.Index >= len(loop.Init) {
				fail(id, "state slot %d outside loop state", nd.Index)
			}
		case Return:
			if len(nd.Values) != len(f.Sig.Results) {
				fail(id, "returns %d values for %d declared results", len(nd.Values), len(f.Sig.Results))
			}
		}
	}

	return errs
}

func isRegion(n Node) bool {
	switch n.(type) {
	case If, Loop:
		return true
	default:
		return false
	}
}
