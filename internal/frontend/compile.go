// Package frontend compiles the CUE interchange format emitted by the
// language front-end into function graphs.
//
// A program document is a struct with one field per function:
//
//	functions: {
//		pick: {
//			controlled: false
//			params: [{name: "x", type: "i64"}, ...]
//			results: [{name: "r", type: "i64"}]
//			values: [{op: "param", index: 0, type: "i64"}, ...]
//			body: {stmts: [0, 1, ...]}
//		}
//	}
//
// Value IDs are the indices of the values list; region operations (if,
// loop) reference later entries by index for their nested block statements.
// Types are either shorthand strings ("i64", "bool", "unit") or structured
// values discriminated on a "kind" field. Shapes are trusted from the
// front-end; only structural arena invariants are verified here.
package frontend

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/vasilvv/decor/internal/graph"
)

// CompileProgram parses every function under the document's "functions"
// field. Load errors are collected per function rather than failing fast;
// a function that failed to compile is absent from the result.
func CompileProgram(v cue.Value) (map[string]*graph.Func, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	fnsVal := v.LookupPath(cue.ParsePath("functions"))
	if !fnsVal.Exists() {
		return nil, []error{&CompileError{
			Code:    CodeMissingField,
			Field:   "functions",
			Message: "program document must declare functions",
			Pos:     v.Pos(),
		}}
	}

	iter, err := fnsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	funcs := make(map[string]*graph.Func)
	var errs []error
	for iter.Next() {
		name := iter.Label()
		fn, err := CompileFunc(name, iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("function %q: %w", name, err))
			continue
		}
		funcs[name] = fn
	}
	return funcs, errs
}

// CompileFunc parses a single function struct into a graph.Func and
// verifies the arena's structural invariants.
func CompileFunc(name string, v cue.Value) (*graph.Func, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	sig, err := parseSignature(v)
	if err != nil {
		return nil, err
	}
	fn := graph.NewFunc(name, sig)

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !valuesVal.Exists() {
		return nil, &CompileError{
			Code:    CodeMissingField,
			Field:   "values",
			Message: "function must declare its value arena",
			Pos:     v.Pos(),
		}
	}
	valIter, err := valuesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for valIter.Next() {
		entry := valIter.Value()
		node, typ, err := parseValue(entry)
		if err != nil {
			return nil, err
		}
		fn.AddAt(node, typ, posOf(entry))
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{
			Code:    CodeMissingField,
			Field:   "body",
			Message: "function must declare a body block",
			Pos:     v.Pos(),
		}
	}
	fn.Body, err = parseBlock(bodyVal)
	if err != nil {
		return nil, err
	}

	if defects := fn.Validate(); len(defects) > 0 {
		msgs := make([]string, len(defects))
		for i, d := range defects {
			msgs[i] = d.Error()
		}
		return nil, &CompileError{
			Code:    CodeBadShape,
			Field:   "values",
			Message: strings.Join(msgs, "; "),
			Pos:     v.Pos(),
		}
	}
	return fn, nil
}

// =============================================================================
// Signature
// =============================================================================

func parseSignature(v cue.Value) (graph.Signature, error) {
	var sig graph.Signature

	ctlVal := v.LookupPath(cue.ParsePath("controlled"))
	if ctlVal.Exists() {
		controlled, err := ctlVal.Bool()
		if err != nil {
			return sig, formatCUEError(err)
		}
		sig.Controlled = controlled
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		iter, err := paramsVal.List()
		if err != nil {
			return sig, formatCUEError(err)
		}
		for iter.Next() {
			p, err := parseParam(iter.Value())
			if err != nil {
				return sig, err
			}
			sig.Params = append(sig.Params, p)
		}
	}

	resultsVal := v.LookupPath(cue.ParsePath("results"))
	if resultsVal.Exists() {
		iter, err := resultsVal.List()
		if err != nil {
			return sig, formatCUEError(err)
		}
		for iter.Next() {
			r, err := parseResult(iter.Value())
			if err != nil {
				return sig, err
			}
			sig.Results = append(sig.Results, r)
		}
	}
	return sig, nil
}

func parseParam(v cue.Value) (graph.ParamSpec, error) {
	var p graph.ParamSpec
	name, err := stringField(v, "name")
	if err != nil {
		return p, err
	}
	p.Name = name
	p.Type, err = parseTypeField(v)
	if err != nil {
		return p, err
	}
	p.Label, err = parseLabel(v)
	if err != nil {
		return p, err
	}
	p.Role, err = parseRole(v)
	return p, err
}

func parseResult(v cue.Value) (graph.ResultSpec, error) {
	var r graph.ResultSpec
	name, err := stringField(v, "name")
	if err != nil {
		return r, err
	}
	r.Name = name
	r.Type, err = parseTypeField(v)
	if err != nil {
		return r, err
	}
	r.Label, err = parseLabel(v)
	return r, err
}

func parseLabel(v cue.Value) (graph.DeclLabel, error) {
	lblVal := v.LookupPath(cue.ParsePath("label"))
	if !lblVal.Exists() {
		return graph.DeclUnlabeled, nil
	}
	s, err := lblVal.String()
	if err != nil {
		return graph.DeclUnlabeled, formatCUEError(err)
	}
	switch s {
	case "public":
		return graph.DeclPublic, nil
	case "private":
		return graph.DeclPrivate, nil
	default:
		return graph.DeclUnlabeled, &CompileError{
			Code:    CodeBadType,
			Field:   "label",
			Message: fmt.Sprintf("unknown label %q (want public or private)", s),
			Pos:     lblVal.Pos(),
		}
	}
}

func parseRole(v cue.Value) (graph.ParamRole, error) {
	roleVal := v.LookupPath(cue.ParsePath("role"))
	if !roleVal.Exists() {
		return graph.RoleNone, nil
	}
	s, err := roleVal.String()
	if err != nil {
		return graph.RoleNone, formatCUEError(err)
	}
	switch s {
	case "length":
		return graph.RoleLength, nil
	case "offset":
		return graph.RoleOffset, nil
	default:
		return graph.RoleNone, &CompileError{
			Code:    CodeBadType,
			Field:   "role",
			Message: fmt.Sprintf("unknown parameter role %q (want length or offset)", s),
			Pos:     roleVal.Pos(),
		}
	}
}

// =============================================================================
// Types
// =============================================================================

// parseTypeField parses the required "type" field of a struct entry.
func parseTypeField(v cue.Value) (graph.Type, error) {
	typVal := v.LookupPath(cue.ParsePath("type"))
	if !typVal.Exists() {
		return nil, &CompileError{
			Code:    CodeMissingField,
			Field:   "type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	return parseType(typVal)
}

var intShorthand = map[string]int{"i8": 8, "i16": 16, "i32": 32, "i64": 64}

func parseType(v cue.Value) (graph.Type, error) {
	// Shorthand string form for the common scalars.
	if s, err := v.String(); err == nil {
		switch s {
		case "bool":
			return graph.Bool{}, nil
		case "unit":
			return graph.Unit{}, nil
		}
		if bits, ok := intShorthand[s]; ok {
			return graph.Int{Bits: bits}, nil
		}
		return nil, &CompileError{
			Code:    CodeBadType,
			Field:   "type",
			Message: fmt.Sprintf("unknown type shorthand %q", s),
			Pos:     v.Pos(),
		}
	}

	kind, err := stringField(v, "kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "int":
		bits, err := intField(v, "bits")
		if err != nil {
			return nil, err
		}
		return graph.Int{Bits: bits}, nil
	case "bool":
		return graph.Bool{}, nil
	case "unit":
		return graph.Unit{}, nil
	case "buffer":
		width, err := intField(v, "width")
		if err != nil {
			return nil, err
		}
		n, err := intField(v, "len")
		if err != nil {
			return nil, err
		}
		return graph.Buffer{Width: width, Len: n}, nil
	case "array":
		elem, err := parseType(v.LookupPath(cue.ParsePath("elem")))
		if err != nil {
			return nil, err
		}
		n, err := intField(v, "len")
		if err != nil {
			return nil, err
		}
		return graph.Array{Elem: elem, Len: n}, nil
	case "tuple":
		elemsVal := v.LookupPath(cue.ParsePath("elems"))
		iter, err := elemsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var t graph.Tuple
		for iter.Next() {
			elem, err := parseType(iter.Value())
			if err != nil {
				return nil, err
			}
			t.Elems = append(t.Elems, elem)
		}
		return t, nil
	case "struct":
		name, err := stringField(v, "name")
		if err != nil {
			return nil, err
		}
		st := graph.Struct{Name: name}
		iter, err := v.LookupPath(cue.ParsePath("fields")).List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fv := iter.Value()
			fname, err := stringField(fv, "name")
			if err != nil {
				return nil, err
			}
			ftype, err := parseTypeField(fv)
			if err != nil {
				return nil, err
			}
			st.Fields = append(st.Fields, graph.StructField{Name: fname, Type: ftype})
		}
		return st, nil
	case "enum":
		name, err := stringField(v, "name")
		if err != nil {
			return nil, err
		}
		en := graph.Enum{Name: name}
		iter, err := v.LookupPath(cue.ParsePath("variants")).List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			vv := iter.Value()
			vname, err := stringField(vv, "name")
			if err != nil {
				return nil, err
			}
			variant := graph.EnumVariant{Name: vname}
			payloadVal := vv.LookupPath(cue.ParsePath("payload"))
			if payloadVal.Exists() {
				variant.Payload, err = parseType(payloadVal)
				if err != nil {
					return nil, err
				}
			}
			en.Variants = append(en.Variants, variant)
		}
		return en, nil
	default:
		return nil, &CompileError{
			Code:    CodeBadType,
			Field:   "type",
			Message: fmt.Sprintf("unknown type kind %q", kind),
			Pos:     v.Pos(),
		}
	}
}

// =============================================================================
// Values
// =============================================================================

var binOpByName = map[string]graph.BinOp{
	"add": graph.OpAdd, "sub": graph.OpSub, "mul": graph.OpMul,
	"div": graph.OpDiv, "mod": graph.OpMod, "and": graph.OpAnd,
	"or": graph.OpOr, "xor": graph.OpXor, "shl": graph.OpShl,
	"shr": graph.OpShr, "eq": graph.OpEq, "ne": graph.OpNe,
	"lt": graph.OpLt, "le": graph.OpLe, "gt": graph.OpGt, "ge": graph.OpGe,
}

var unOpByName = map[string]graph.UnOp{
	"not": graph.OpNot, "neg": graph.OpNeg, "bnot": graph.OpBNot,
}

// parseValue parses one arena entry into its node and result type.
func parseValue(v cue.Value) (graph.Node, graph.Type, error) {
	op, err := stringField(v, "op")
	if err != nil {
		return nil, nil, err
	}

	node, err := parseNode(op, v)
	if err != nil {
		return nil, nil, err
	}

	// Statement ops produce no value and default to unit.
	typVal := v.LookupPath(cue.ParsePath("type"))
	if !typVal.Exists() {
		switch op {
		case "return", "exit":
			return node, graph.Unit{}, nil
		}
		return nil, nil, &CompileError{
			Code:    CodeMissingField,
			Field:   "type",
			Message: fmt.Sprintf("%s value needs a result type", op),
			Pos:     v.Pos(),
		}
	}
	typ, err := parseType(typVal)
	if err != nil {
		return nil, nil, err
	}
	return node, typ, nil
}

func parseNode(op string, v cue.Value) (graph.Node, error) {
	switch op {
	case "param":
		index, err := intField(v, "index")
		if err != nil {
			return nil, err
		}
		return graph.Param{Index: index}, nil
	case "const":
		n, err := int64Field(v, "int")
		if err != nil {
			return nil, err
		}
		return graph.Const{Int: n}, nil
	case "unary":
		name, err := stringField(v, "fn")
		if err != nil {
			return nil, err
		}
		un, ok := unOpByName[name]
		if !ok {
			return nil, badOp(v, "unknown unary operator %q", name)
		}
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		return graph.Unary{Op: un, X: x}, nil
	case "binary":
		name, err := stringField(v, "fn")
		if err != nil {
			return nil, err
		}
		bin, ok := binOpByName[name]
		if !ok {
			return nil, badOp(v, "unknown binary operator %q", name)
		}
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		y, err := vidField(v, "y")
		if err != nil {
			return nil, err
		}
		return graph.Binary{Op: bin, X: x, Y: y}, nil
	case "tuple":
		elems, err := vidListField(v, "elems")
		if err != nil {
			return nil, err
		}
		return graph.MakeTuple{Elems: elems}, nil
	case "field":
		tuple, err := vidField(v, "tuple")
		if err != nil {
			return nil, err
		}
		index, err := intField(v, "index")
		if err != nil {
			return nil, err
		}
		return graph.TupleField{Tuple: tuple, Index: index}, nil
	case "variant":
		tag, err := intField(v, "tag")
		if err != nil {
			return nil, err
		}
		payload := graph.NoValue
		if v.LookupPath(cue.ParsePath("payload")).Exists() {
			payload, err = vidField(v, "payload")
			if err != nil {
				return nil, err
			}
		}
		return graph.MakeVariant{Tag: tag, Payload: payload}, nil
	case "variant_tag":
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		return graph.VariantTag{X: x}, nil
	case "buffer":
		elems, err := vidListField(v, "elems")
		if err != nil {
			return nil, err
		}
		return graph.MakeBuffer{Elems: elems}, nil
	case "len":
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		return graph.BufferLen{X: x}, nil
	case "get":
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		index, err := vidField(v, "index")
		if err != nil {
			return nil, err
		}
		return graph.BufferGet{X: x, Index: index}, nil
	case "set":
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		index, err := vidField(v, "index")
		if err != nil {
			return nil, err
		}
		elem, err := vidField(v, "elem")
		if err != nil {
			return nil, err
		}
		return graph.BufferSet{X: x, Index: index, Elem: elem}, nil
	case "call":
		callee, err := stringField(v, "callee")
		if err != nil {
			return nil, err
		}
		args, err := vidListField(v, "args")
		if err != nil {
			return nil, err
		}
		return graph.Call{Callee: callee, Args: args}, nil
	case "export":
		x, err := vidField(v, "x")
		if err != nil {
			return nil, err
		}
		sources, err := stringListField(v, "sources")
		if err != nil {
			return nil, err
		}
		return graph.Export{X: x, Sources: sources}, nil
	case "select":
		cond, err := vidField(v, "cond")
		if err != nil {
			return nil, err
		}
		then, err := vidField(v, "then")
		if err != nil {
			return nil, err
		}
		els, err := vidField(v, "else")
		if err != nil {
			return nil, err
		}
		return graph.Select{Cond: cond, Then: then, Else: els}, nil
	case "sort":
		keys, err := vidField(v, "keys")
		if err != nil {
			return nil, err
		}
		payload, err := vidField(v, "payload")
		if err != nil {
			return nil, err
		}
		return graph.SortByKey{Keys: keys, Payload: payload}, nil
	case "network":
		keys, err := vidField(v, "keys")
		if err != nil {
			return nil, err
		}
		payload, err := vidField(v, "payload")
		if err != nil {
			return nil, err
		}
		size, err := intField(v, "size")
		if err != nil {
			return nil, err
		}
		return graph.NetworkApply{Keys: keys, Payload: payload, Size: size}, nil
	case "if":
		cond, err := vidField(v, "cond")
		if err != nil {
			return nil, err
		}
		then, err := blockField(v, "then")
		if err != nil {
			return nil, err
		}
		els, err := blockField(v, "else")
		if err != nil {
			return nil, err
		}
		return graph.If{Cond: cond, Then: then, Else: els}, nil
	case "loop":
		container, err := vidField(v, "container")
		if err != nil {
			return nil, err
		}
		init, err := vidListField(v, "init")
		if err != nil {
			return nil, err
		}
		body, err := blockField(v, "body")
		if err != nil {
			return nil, err
		}
		return graph.Loop{Container: container, Init: init, Body: body}, nil
	case "elem":
		loop, err := vidField(v, "loop")
		if err != nil {
			return nil, err
		}
		return graph.LoopElem{Loop: loop}, nil
	case "idx":
		loop, err := vidField(v, "loop")
		if err != nil {
			return nil, err
		}
		return graph.LoopIdx{Loop: loop}, nil
	case "state":
		loop, err := vidField(v, "loop")
		if err != nil {
			return nil, err
		}
		index, err := intField(v, "index")
		if err != nil {
			return nil, err
		}
		return graph.LoopState{Loop: loop, Index: index}, nil
	case "exit":
		loop, err := vidField(v, "loop")
		if err != nil {
			return nil, err
		}
		cond, err := vidField(v, "cond")
		if err != nil {
			return nil, err
		}
		results, err := vidListField(v, "results")
		if err != nil {
			return nil, err
		}
		return graph.LoopExit{Loop: loop, Cond: cond, Results: results}, nil
	case "return":
		values, err := vidListField(v, "values")
		if err != nil {
			return nil, err
		}
		return graph.Return{Values: values}, nil
	default:
		return nil, badOp(v, "unknown operation %q", op)
	}
}

// =============================================================================
// Field helpers
// =============================================================================

func parseBlock(v cue.Value) (graph.Block, error) {
	var b graph.Block
	stmts, err := vidListField(v, "stmts")
	if err != nil {
		return b, err
	}
	b.Stmts = stmts
	if v.LookupPath(cue.ParsePath("yield")).Exists() {
		b.Yield, err = vidListField(v, "yield")
		if err != nil {
			return b, err
		}
	}
	return b, nil
}

func blockField(v cue.Value, field string) (graph.Block, error) {
	bv := v.LookupPath(cue.ParsePath(field))
	if !bv.Exists() {
		return graph.Block{}, &CompileError{
			Code:    CodeMissingField,
			Field:   field,
			Message: fmt.Sprintf("%s block is required", field),
			Pos:     v.Pos(),
		}
	}
	return parseBlock(bv)
}

func stringField(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Code:    CodeMissingField,
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func int64Field(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{
			Code:    CodeMissingField,
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func intField(v cue.Value, field string) (int, error) {
	n, err := int64Field(v, field)
	return int(n), err
}

func vidField(v cue.Value, field string) (graph.ValueID, error) {
	n, err := int64Field(v, field)
	return graph.ValueID(n), err
}

func vidListField(v cue.Value, field string) ([]graph.ValueID, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, &CompileError{
			Code:    CodeMissingField,
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ids []graph.ValueID
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ids = append(ids, graph.ValueID(n))
	}
	return ids, nil
}

func stringListField(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, &CompileError{
			Code:    CodeMissingField,
			Field:   field,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func badOp(v cue.Value, format string, args ...any) error {
	return &CompileError{
		Code:    CodeBadOp,
		Field:   "op",
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	}
}

func posOf(v cue.Value) graph.Pos {
	p := v.Pos()
	if !p.IsValid() {
		return graph.Pos{}
	}
	return graph.Pos{File: p.Filename(), Line: p.Line(), Col: p.Column()}
}
