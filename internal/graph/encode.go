package graph

import "fmt"

// CanonicalMap renders the function as the canonical value tree hashed for
// identity. Two functions with the same map are the same function: the
// encoding covers the signature, every node with its type, and the region
// structure, and nothing else (positions are excluded so that reformatting
// a source file does not change identity).
func (f *Func) CanonicalMap() map[string]any {
	params := make([]any, len(f.Sig.Params))
	for i, p := range f.Sig.Params {
		params[i] = map[string]any{
			"name":  p.Name,
			"type":  typeMap(p.Type),
			"label": p.Label.String(),
			"role":  p.Role.String(),
		}
	}
	results := make([]any, len(f.Sig.Results))
	for i, r := range f.Sig.Results {
		results[i] = map[string]any{
			"name":  r.Name,
			"type":  typeMap(r.Type),
			"label": r.Label.String(),
		}
	}
	nodes := make([]any, len(f.Nodes))
	for id, n := range f.Nodes {
		m := nodeMap(n)
		m["type"] = typeMap(f.Types[id])
		nodes[id] = m
	}
	return map[string]any{
		"version": IRVersion,
		"name":    f.Name,
		"signature": map[string]any{
			"params":     params,
			"results":    results,
			"controlled": f.Sig.Controlled,
		},
		"nodes": nodes,
		"body":  blockMap(f.Body),
	}
}

func typeMap(t Type) map[string]any {
	switch tt := t.(type) {
	case nil:
		return map[string]any{"kind": "none"}
	case Int:
		return map[string]any{"kind": "int", "bits": tt.Bits}
	case Bool:
		return map[string]any{"kind": "bool"}
	case Unit:
		return map[string]any{"kind": "unit"}
	case Buffer:
		return map[string]any{"kind": "buffer", "width": tt.Width, "len": tt.Len}
	case Array:
		return map[string]any{"kind": "array", "elem": typeMap(tt.Elem), "len": tt.Len}
	case Tuple:
		elems := make([]any, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = typeMap(e)
		}
		return map[string]any{"kind": "tuple", "elems": elems}
	case Struct:
		fields := make([]any, len(tt.Fields))
		for i, fld := range tt.Fields {
			fields[i] = map[string]any{"name": fld.Name, "type": typeMap(fld.Type)}
		}
		return map[string]any{"kind": "struct", "name": tt.Name, "fields": fields}
	case Enum:
		variants := make([]any, len(tt.Variants))
		for i, v := range tt.Variants {
			vm := map[string]any{"name": v.Name}
			if v.Payload != nil {
				vm["payload"] = typeMap(v.Payload)
			}
			variants[i] = vm
		}
		return map[string]any{"kind": "enum", "name": tt.Name, "variants": variants}
	default:
		panic(fmt.Sprintf("unknown type %T", t))
	}
}

func idList(ids []ValueID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

func blockMap(b Block) map[string]any {
	return map[string]any{
		"stmts": idList(b.Stmts),
		"yield": idList(b.Yield),
	}
}

func nodeMap(n Node) map[string]any {
	switch nd := n.(type) {
	case Param:
		return map[string]any{"op": "param", "index": nd.Index}
	case Const:
		return map[string]any{"op": "const", "int": nd.Int}
	case Binary:
		return map[string]any{"op": nd.Op.String(), "x": int(nd.X), "y": int(nd.Y)}
	case Unary:
		return map[string]any{"op": nd.Op.String(), "x": int(nd.X)}
	case MakeTuple:
		return map[string]any{"op": "tuple", "elems": idList(nd.Elems)}
	case TupleField:
		return map[string]any{"op": "field", "tuple": int(nd.Tuple), "index": nd.Index}
	case MakeVariant:
		return map[string]any{"op": "variant", "tag": nd.Tag, "payload": int(nd.Payload)}
	case VariantTag:
		return map[string]any{"op": "tag", "x": int(nd.X)}
	case MakeBuffer:
		return map[string]any{"op": "buffer", "elems": idList(nd.Elems)}
	case BufferLen:
		return map[string]any{"op": "len", "x": int(nd.X)}
	case BufferGet:
		return map[string]any{"op": "get", "x": int(nd.X), "index": int(nd.Index)}
	case BufferSet:
		return map[string]any{"op": "set", "x": int(nd.X), "index": int(nd.Index), "elem": int(nd.Elem)}
	case Call:
		return map[string]any{"op": "call", "callee": nd.Callee, "args": idList(nd.Args)}
	case Export:
		srcs := make([]any, len(nd.Sources))
		for i, s := range nd.Sources {
			srcs[i] = s
		}
		return map[string]any{"op": "export", "x": int(nd.X), "sources": srcs}
	case Select:
		return map[string]any{"op": "select", "cond": int(nd.Cond), "then": int(nd.Then), "else": int(nd.Else)}
	case SortByKey:
		return map[string]any{"op": "sort", "keys": int(nd.Keys), "payload": int(nd.Payload)}
	case NetworkApply:
		return map[string]any{"op": "network", "keys": int(nd.Keys), "payload": int(nd.Payload), "size": nd.Size}
	case If:
		return map[string]any{"op": "if", "cond": int(nd.Cond), "then": blockMap(nd.Then), "else": blockMap(nd.Else)}
	case Loop:
		return map[string]any{"op": "loop", "container": int(nd.Container), "init": idList(nd.Init), "body": blockMap(nd.Body)}
	case LoopElem:
		return map[string]any{"op": "elem", "loop": int(nd.Loop)}
	case LoopIdx:
		return map[string]any{"op": "idx", "loop": int(nd.Loop)}
	case LoopState:
		return map[string]any{"op": "state", "loop": int(nd.Loop), "index": nd.Index}
	case LoopExit:
		return map[string]any{"op": "exit", "loop": int(nd.Loop), "cond": int(nd.Cond), "results": idList(nd.Results)}
	case Return:
		return map[string]any{"op": "return", "values": idList(nd.Values)}
	default:
		panic(fmt.Sprintf("unknown node %T", n))
	}
}
