package specialize

import (
	"log/slog"

	"github.com/vasilvv/decor/internal/graph"
	"github.com/vasilvv/decor/internal/label"
)

// Resolver resolves call sites against callee signatures, analyzing callees
// per actual label tuple. It implements label.CallOracle, so handing it to
// label.Analyze makes call resolution recursive through the whole program.
//
// The resolver assumes the pipeline rejected call cycles up front; as a
// backstop, a re-entrant analysis of the same function is cut off with an
// L105 rather than recursing forever.
type Resolver struct {
	funcs  map[string]*graph.Func
	cache  *Cache
	logger *slog.Logger

	ids     map[string]string // function name -> content ID, lazy
	derived map[string]*Specialization
	active  map[string]bool // callees currently being analyzed
	diags   []label.Diagnostic
}

// NewResolver creates a resolver over the program's functions, publishing
// controlled-function specializations into cache.
func NewResolver(funcs map[string]*graph.Func, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		funcs:   funcs,
		cache:   cache,
		logger:  logger,
		ids:     make(map[string]string),
		derived: make(map[string]*Specialization),
		active:  make(map[string]bool),
	}
}

// ResolveCall implements label.CallOracle.
//
// The returned diagnostics are the caller-attributed findings for this call
// site (non-privatizable parameters) and are a pure function of the argument
// infos: the analysis asks twice per site and must see the same answer both
// times. Callee-internal findings stay with the specialization; collect them
// through the cache and Derived.
func (r *Resolver) ResolveCall(caller *graph.Func, call graph.ValueID, callee string, args []label.Info) (label.CallSummary, []label.Diagnostic) {
	fn, ok := r.funcs[callee]
	if !ok || len(args) != len(fn.Sig.Params) {
		// Unknown callee or arity mismatch: the pipeline reports these before
		// resolution; here the sound fallback is to join everything.
		return joinAll(len(args), 1), nil
	}

	var siteDiags []label.Diagnostic
	actual := make([]graph.Label, len(args))
	for i, p := range fn.Sig.Params {
		actual[i] = args[i].Label
		if fn.Sig.Controlled && p.Label == graph.DeclPrivate {
			// Declared-private is a floor: the body compiles for a private
			// parameter even when this site passes public data.
			actual[i] = graph.Private
		}
		if p.Role != graph.RoleNone && args[i].Label == graph.Private {
			siteDiags = append(siteDiags, label.NewNonPrivatizableParameter(caller, call, callee, p.Name, p.Role, args[i].Sources))
		}
	}

	spec := r.ensure(fn, actual)
	if spec == nil {
		return joinAll(len(args), len(fn.Sig.Results)), siteDiags
	}
	return label.CallSummary{Deps: spec.Result.ResultDeps}, siteDiags
}

// Resolve specializes callee under the given actual labels, creating or
// reusing the entry. It is the call-site contract without a caller: the
// pipeline and tests use it directly.
func (r *Resolver) Resolve(callee string, actual []graph.Label) (*Specialization, bool) {
	fn, ok := r.funcs[callee]
	if !ok {
		return nil, false
	}
	spec := r.ensure(fn, actual)
	return spec, spec != nil
}

// Derived returns the bottom-up analyses of uncontrolled callees, in no
// particular order. These are not specializations (nothing is declared to
// reconcile against) but carry callee-internal diagnostics the pipeline
// still reports.
func (r *Resolver) Derived() []*Specialization {
	out := make([]*Specialization, 0, len(r.derived))
	for _, s := range r.derived {
		out = append(out, s)
	}
	return out
}

// Diags returns resolver-level findings (recursion backstops).
func (r *Resolver) Diags() []label.Diagnostic {
	return append([]label.Diagnostic(nil), r.diags...)
}

// ensure returns the (possibly freshly analyzed) variant of fn under the
// actual labels, or nil when analysis had to be cut off.
func (r *Resolver) ensure(fn *graph.Func, actual []graph.Label) *Specialization {
	key := graph.SpecKey(r.funcID(fn), actual)

	if fn.Sig.Controlled {
		if spec, ok := r.cache.Lookup(key); ok {
			return spec
		}
	} else if spec, ok := r.derived[key]; ok {
		return spec
	}

	if r.active[fn.Name] {
		r.diags = append(r.diags, label.NewRecursiveCall(fn.Name, []string{fn.Name, fn.Name}))
		return nil
	}
	r.active[fn.Name] = true
	defer delete(r.active, fn.Name)

	r.logger.Debug("specializing function", "func", fn.Name, "labels", labelNames(actual))
	res := label.Analyze(fn, label.Options{Params: actual, Oracle: r})

	spec := &Specialization{Key: key, Name: fn.Name, Labels: actual, Result: res}
	if fn.Sig.Controlled {
		spec, _ = r.cache.Insert(spec)
	} else {
		r.derived[key] = spec
	}
	return spec
}

func (r *Resolver) funcID(fn *graph.Func) string {
	id, ok := r.ids[fn.Name]
	if !ok {
		id = graph.MustFuncID(fn)
		r.ids[fn.Name] = id
	}
	return id
}

// joinAll is the maximally coarse summary: every result depends on every
// argument.
func joinAll(args, results int) label.CallSummary {
	all := make([]int, args)
	for i := range all {
		all[i] = i
	}
	deps := make([][]int, results)
	for k := range deps {
		deps[k] = all
	}
	if len(deps) == 0 {
		deps = [][]int{all}
	}
	return label.CallSummary{Deps: deps}
}

func labelNames(labels []graph.Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}
