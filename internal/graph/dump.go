package graph

import (
	"fmt"
	"strings"
)

// Dump renders the function as deterministic line-oriented text: one line
// per statement in execution order, region bodies indented. The output is
// stable across runs and is what golden files record.
func (f *Func) Dump() string {
	var b strings.Builder
	f.dumpHeader(&b)
	f.dumpBlock(&b, f.Body, 0)
	return b.String()
}

func (f *Func) dumpHeader(b *strings.Builder) {
	params := make([]string, len(f.Sig.Params))
	for i, p := range f.Sig.Params {
		s := p.Name + " " + p.Type.String()
		if p.Label != DeclUnlabeled {
			s += " " + p.Label.String()
		}
		if p.Role != RoleNone {
			s += " " + p.Role.String()
		}
		params[i] = s
	}
	results := make([]string, len(f.Sig.Results))
	for i, r := range f.Sig.Results {
		results[i] = r.Type.String()
	}
	fmt.Fprintf(b, "func %s(%s) -> (%s)", f.Name, strings.Join(params, ", "), strings.Join(results, ", "))
	if f.Sig.Controlled {
		b.WriteString(" controlled")
	}
	b.WriteString("\n")
}

func (f *Func) dumpBlock(b *strings.Builder, blk Block, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, id := range blk.Stmts {
		switch nd := f.Nodes[id].(type) {
		case If:
			fmt.Fprintf(b, "%sv%d = if v%d : %s {\n", indent, id, nd.Cond, f.Types[id])
			f.dumpBlock(b, nd.Then, depth+1)
			fmt.Fprintf(b, "%s} else {\n", indent)
			f.dumpBlock(b, nd.Else, depth+1)
			fmt.Fprintf(b, "%s}\n", indent)
		case Loop:
			fmt.Fprintf(b, "%sv%d = loop v%d init %s : %s {\n", indent, id, nd.Container, dumpIDs(nd.Init), f.Types[id])
			f.dumpBlock(b, nd.Body, depth+1)
			fmt.Fprintf(b, "%s}\n", indent)
		default:
			fmt.Fprintf(b, "%s%s\n", indent, f.dumpStmt(id))
		}
	}
	if len(blk.Yield) > 0 {
		fmt.Fprintf(b, "%syield %s\n", indent, dumpIDs(blk.Yield))
	}
}

func (f *Func) dumpStmt(id ValueID) string {
	t := f.Types[id]
	switch nd := f.Nodes[id].(type) {
	case Param:
		return fmt.Sprintf("v%d = param %d %s : %s", id, nd.Index, f.Sig.Params[nd.Index].Name, t)
	case Const:
		return fmt.Sprintf("v%d = const %d : %s", id, nd.Int, t)
	case Binary:
		return fmt.Sprintf("v%d = %s v%d v%d : %s", id, nd.Op, nd.X, nd.Y, t)
	case Unary:
		return fmt.Sprintf("v%d = %s v%d : %s", id, nd.Op, nd.X, t)
	case MakeTuple:
		return fmt.Sprintf("v%d = tuple %s : %s", id, dumpIDs(nd.Elems), t)
	case TupleField:
		return fmt.Sprintf("v%d = field v%d %d : %s", id, nd.Tuple, nd.Index, t)
	case MakeVariant:
		if nd.Payload == NoValue {
			return fmt.Sprintf("v%d = variant %d : %s", id, nd.Tag, t)
		}
		return fmt.Sprintf("v%d = variant %d v%d : %s", id, nd.Tag, nd.Payload, t)
	case VariantTag:
		return fmt.Sprintf("v%d = tag v%d : %s", id, nd.X, t)
	case MakeBuffer:
		return fmt.Sprintf("v%d = buffer %s : %s", id, dumpIDs(nd.Elems), t)
	case BufferLen:
		return fmt.Sprintf("v%d = len v%d : %s", id, nd.X, t)
	case BufferGet:
		return fmt.Sprintf("v%d = get v%d v%d : %s", id, nd.X, nd.Index, t)
	case BufferSet:
		return fmt.Sprintf("v%d = set v%d v%d v%d : %s", id, nd.X, nd.Index, nd.Elem, t)
	case Call:
		return fmt.Sprintf("v%d = call %s %s : %s", id, nd.Callee, dumpIDs(nd.Args), t)
	case Export:
		return fmt.Sprintf("v%d = export v%d from {%s} : %s", id, nd.X, strings.Join(nd.Sources, ","), t)
	case Select:
		return fmt.Sprintf("v%d = select v%d v%d v%d : %s", id, nd.Cond, nd.Then, nd.Else, t)
	case SortByKey:
		return fmt.Sprintf("v%d = sort v%d v%d : %s", id, nd.Keys, nd.Payload, t)
	case NetworkApply:
		return fmt.Sprintf("v%d = network[%d] v%d v%d : %s", id, nd.Size, nd.Keys, nd.Payload, t)
	case LoopElem:
		return fmt.Sprintf("v%d = elem v%d : %s", id, nd.Loop, t)
	case LoopIdx:
		return fmt.Sprintf("v%d = idx v%d : %s", id, nd.Loop, t)
	case LoopState:
		return fmt.Sprintf("v%d = state v%d %d : %s", id, nd.Loop, nd.Index, t)
	case LoopExit:
		return fmt.Sprintf("v%d = exit v%d when v%d with %s", id, nd.Loop, nd.Cond, dumpIDs(nd.Results))
	case Return:
		return fmt.Sprintf("v%d = return %s", id, dumpIDs(nd.Values))
	default:
		return fmt.Sprintf("v%d = ?", id)
	}
}

func dumpIDs(ids []ValueID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("v%d", id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
