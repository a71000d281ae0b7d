// Package analyzer walks a template's node stream, binds every variable and
// member access to a type descriptor and emits diagnostics for accesses the
// declared types cannot support.
package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/typja/typja/internal/diag"
	"github.com/typja/typja/internal/pyscan"
	"github.com/typja/typja/internal/registry"
	"github.com/typja/typja/internal/template"
	"github.com/typja/typja/internal/typeexpr"
)

// Options tunes severity mapping. Strict mode escalates UndefinedVariable to
// an error; it never changes which conditions are detected.
type Options struct {
	Strict bool
}

// builtinGlobals are names the render environment provides; reading them is
// never an undefined-variable condition.
var builtinGlobals = map[string]bool{
	"range": true, "dict": true, "namespace": true, "lipsum": true,
	"cycler": true, "joiner": true, "super": true, "self": true,
}

// Analyze checks one parsed template against its resolved scope. Diagnostics
// on lines marked with an ignore directive are dropped at emission; the
// analysis itself still runs so ignore never hides a later crash.
func Analyze(tmpl *template.Template, scope *registry.Scope, file string, opts Options) diag.List {
	a := &analyzer{scope: scope, file: file, opts: opts}
	a.diags = append(a.diags, scope.ValidateImports(file)...)

	env := bindings{}
	for _, decl := range scope.Annot.AllDecls {
		resolved, failures := scope.Resolve(decl.Type)
		for _, f := range failures {
			a.diags = append(a.diags, diag.Diagnostic{
				Severity: diag.Error,
				Code:     f.Code,
				File:     file,
				Line:     decl.Line,
				Col:      decl.Col,
				Message:  f.Message,
				Hint:     f.Hint,
			})
		}
		if len(failures) > 0 {
			// A broken declaration binds as Unknown so every use of the
			// variable does not echo the same root cause.
			env[decl.Name] = typeexpr.Unknown()
			continue
		}
		env[decl.Name] = resolved
	}
	a.registerFilters()
	a.registerMacros()

	a.walk(tmpl.Nodes, env)

	kept := a.diags[:0]
	for _, d := range a.diags {
		if scope.Annot.Ignored[d.Line] {
			continue
		}
		kept = append(kept, d)
	}
	list := diag.List(kept)
	if a.opts.Strict {
		list = list.Escalate()
	}
	list.Sort()
	return list
}

// filterSig is a declared filter signature: the operand count the Callable
// expects (piped value included) and its resolved return type.
type filterSig struct {
	args int // -1 when the declaration does not constrain arity
	ret  *typeexpr.Descriptor
}

type macroSig struct {
	min, max int
	ret      *typeexpr.Descriptor
}

func (a *analyzer) registerFilters() {
	a.filters = map[string]filterSig{}
	for _, f := range a.scope.Annot.Filters {
		pos := template.Pos{Line: f.Line, Col: f.Col}
		sig, ok := filterSignature(f.Type)
		if !ok {
			a.report(pos, diag.Error, diag.TypeMismatch, "",
				"filter %q must be declared with a Callable type", f.Name)
			continue
		}
		if resolved, failures := a.scope.Resolve(sig.ret); len(failures) == 0 {
			sig.ret = resolved
		} else {
			sig.ret = typeexpr.Unknown()
		}
		a.filters[f.Name] = sig
	}
}

// filterSignature reads arity and return type out of Callable[[A, ...], R].
func filterSignature(t *typeexpr.Descriptor) (filterSig, bool) {
	if t.Kind != typeexpr.KindGeneric || t.Name != "Callable" && t.Name != "typing.Callable" {
		return filterSig{}, false
	}
	sig := filterSig{args: -1, ret: typeexpr.Unknown()}
	if len(t.Args) < 2 {
		return sig, true
	}
	if params := t.Args[0]; params.Kind == typeexpr.KindGeneric && params.Name == "" {
		sig.args = len(params.Args)
		if sig.args == 0 {
			sig.args = 1
		}
	}
	sig.ret = t.Args[len(t.Args)-1]
	return sig, true
}

func (a *analyzer) registerMacros() {
	a.macros = map[string]macroSig{}
	for _, m := range a.scope.Annot.Macros {
		pos := template.Pos{Line: m.Line, Col: m.Col}
		sig := macroSig{max: len(m.Params)}
		for _, p := range m.Params {
			if !p.HasDefault {
				sig.min++
			}
			_, failures := a.scope.Resolve(p.Type)
			for _, f := range failures {
				a.report(pos, diag.Error, f.Code, f.Hint,
					"invalid type for macro parameter %q: %s", p.Name, f.Message)
			}
		}
		ret, failures := a.scope.Resolve(m.Return)
		for _, f := range failures {
			a.report(pos, diag.Error, f.Code, f.Hint,
				"invalid macro return type: %s", f.Message)
		}
		if len(failures) > 0 {
			ret = typeexpr.Unknown()
		}
		sig.ret = ret
		a.macros[m.Name] = sig
	}
}

type bindings map[string]*typeexpr.Descriptor

func (b bindings) clone() bindings {
	out := make(bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

type analyzer struct {
	scope   *registry.Scope
	file    string
	opts    Options
	diags   diag.List
	filters map[string]filterSig
	macros  map[string]macroSig
}

func (a *analyzer) report(pos template.Pos, sev diag.Severity, code diag.Code, hint, format string, args ...any) {
	a.diags = append(a.diags, diag.Diagnostic{
		Severity: sev,
		Code:     code,
		File:     a.file,
		Line:     pos.Line,
		Col:      pos.Col,
		Message:  fmt.Sprintf(format, args...),
		Hint:     hint,
	})
}

func (a *analyzer) walk(nodes []template.Node, env bindings) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *template.Output:
			a.typeOf(n.Expr, env)

		case *template.If:
			a.walkIf(n, env)

		case *template.For:
			a.walkFor(n, env)

		case *template.Set:
			t := typeexpr.Unknown()
			if n.Value != nil {
				t = a.typeOf(n.Value, env)
			}
			env[n.Name] = t
		}
	}
}

func (a *analyzer) walkIf(n *template.If, env bindings) {
	name, thenT, elseT, narrowed := a.narrow(n.Cond, env)

	if !isDefinedGuard(n.Cond) {
		a.typeOf(n.Cond, env)
	}

	thenEnv := env.clone()
	elseEnv := env.clone()
	if narrowed {
		thenEnv[name] = thenT
		elseEnv[name] = elseT
	}
	if guard, ok := definedGuard(n.Cond); ok {
		if _, bound := env[guard]; !bound {
			thenEnv[guard] = typeexpr.Unknown()
		}
	}

	a.walk(n.Then, thenEnv)
	a.walk(n.Else, elseEnv)
}

// narrow recognizes the guard shapes that refine an Optional-typed name:
// a bare truth test, "is none", "is not none", and their negations.
func (a *analyzer) narrow(cond template.Expr, env bindings) (string, *typeexpr.Descriptor, *typeexpr.Descriptor, bool) {
	switch c := cond.(type) {
	case *template.Name:
		if t, ok := env[c.Ident]; ok && t.Kind == typeexpr.KindOptional {
			return c.Ident, t.Elem, typeexpr.None(), true
		}

	case *template.Test:
		name, ok := c.Target.(*template.Name)
		if !ok || c.Name != "none" {
			break
		}
		t, bound := env[name.Ident]
		if !bound || t.Kind != typeexpr.KindOptional {
			break
		}
		if c.Negated {
			return name.Ident, t.Elem, typeexpr.None(), true
		}
		return name.Ident, typeexpr.None(), t.Elem, true

	case *template.Not:
		name, thenT, elseT, ok := a.narrow(c.Expr, env)
		return name, elseT, thenT, ok
	}
	return "", nil, nil, false
}

func isDefinedGuard(cond template.Expr) bool {
	_, ok := definedGuard(cond)
	return ok
}

// definedGuard matches "name is defined" and "name is not undefined".
func definedGuard(cond template.Expr) (string, bool) {
	t, ok := cond.(*template.Test)
	if !ok {
		return "", false
	}
	name, ok := t.Target.(*template.Name)
	if !ok {
		return "", false
	}
	if t.Name == "defined" && !t.Negated || t.Name == "undefined" && t.Negated {
		return name.Ident, true
	}
	return "", false
}

func (a *analyzer) walkFor(n *template.For, env bindings) {
	iterT := a.typeOf(n.Iter, env)

	if iterT.Kind == typeexpr.KindOptional {
		a.report(n.Iter.Position(), diag.Error, diag.TypeMismatch, guardHint(n.Iter),
			"iterating a possibly-None value of type %s", iterT)
		iterT = iterT.Elem
	}

	body := env.clone()
	elems := elementTypes(iterT, len(n.Vars))
	for i, v := range n.Vars {
		body[v] = elems[i]
	}
	body["loop"] = typeexpr.Unknown()

	if n.Cond != nil {
		a.typeOf(n.Cond, body)
	}
	a.walk(n.Body, body)
	a.walk(n.Else, env)
}

// elementTypes maps an iterated type to the loop-variable bindings: the
// element type for sequences, keys (or key/value pairs) for mappings, and
// positional unpacking for tuple elements.
func elementTypes(iter *typeexpr.Descriptor, nvars int) []*typeexpr.Descriptor {
	out := make([]*typeexpr.Descriptor, nvars)
	for i := range out {
		out[i] = typeexpr.Unknown()
	}
	if iter.Kind != typeexpr.KindGeneric {
		return out
	}

	switch iter.Name {
	case "dict", "Dict", "Mapping":
		if len(iter.Args) == 2 {
			if nvars == 1 {
				out[0] = iter.Args[0]
			} else if nvars == 2 {
				out[0], out[1] = iter.Args[0], iter.Args[1]
			}
		}
		return out
	}

	if len(iter.Args) == 0 {
		return out
	}
	elem := iter.Args[0]
	if iter.Name == "tuple" || iter.Name == "Tuple" {
		elem = &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: "tuple", Args: iter.Args}
	}

	if nvars == 1 {
		out[0] = elem
		return out
	}
	// Multi-target unpacking of tuple elements.
	if elem.Kind == typeexpr.KindGeneric && (elem.Name == "tuple" || elem.Name == "Tuple") && len(elem.Args) == nvars {
		copy(out, elem.Args)
	}
	return out
}

func prim(name string) *typeexpr.Descriptor {
	return &typeexpr.Descriptor{Kind: typeexpr.KindPrimitive, Name: name}
}

func (a *analyzer) typeOf(e template.Expr, env bindings) *typeexpr.Descriptor {
	switch e := e.(type) {
	case *template.Name:
		if t, ok := env[e.Ident]; ok {
			return t
		}
		if _, ok := a.macros[e.Ident]; ok {
			return typeexpr.Unknown()
		}
		if builtinGlobals[e.Ident] {
			return typeexpr.Unknown()
		}
		a.report(e.Pos, diag.Warning, diag.UndefinedVariable,
			fmt.Sprintf("declare it with {# typja:var %s: <type> #}", e.Ident),
			"undefined variable %q", e.Ident)
		return typeexpr.Unknown()

	case *template.Literal:
		switch e.Kind {
		case template.LitString:
			return prim("str")
		case template.LitInt:
			return prim("int")
		case template.LitFloat:
			return prim("float")
		case template.LitBool:
			return prim("bool")
		default:
			return typeexpr.None()
		}

	case *template.Getattr:
		target := a.typeOf(e.Target, env)
		return a.lookupAttr(target, e.Attr, e.Pos, true)

	case *template.Subscript:
		target := a.typeOf(e.Target, env)
		a.typeOf(e.Index, env)
		return a.subscriptType(target, e.Pos)

	case *template.Call:
		if name, ok := e.Target.(*template.Name); ok {
			if _, bound := env[name.Ident]; !bound {
				if sig, declared := a.macros[name.Ident]; declared {
					for _, arg := range e.Args {
						a.typeOf(arg, env)
					}
					a.checkMacroArity(name.Ident, sig, len(e.Args), e.Pos)
					return sig.ret
				}
			}
		}
		t := a.typeOf(e.Target, env)
		for _, arg := range e.Args {
			a.typeOf(arg, env)
		}
		return t

	case *template.Filter:
		a.typeOf(e.Target, env)
		for _, arg := range e.Args {
			a.typeOf(arg, env)
		}
		if sig, ok := a.filters[e.Name]; ok {
			actual := 1 + len(e.Args)
			if sig.args >= 0 && actual != sig.args {
				a.report(e.Pos, diag.Error, diag.TypeMismatch, "",
					"filter %q expects %d argument(s) but got %d", e.Name, sig.args, actual)
			}
			return sig.ret
		}
		// Undeclared filters are dynamic; their output is untyped.
		return typeexpr.Unknown()

	case *template.Test:
		if _, ok := definedGuard(e); !ok {
			a.typeOf(e.Target, env)
		}
		for _, arg := range e.Args {
			a.typeOf(arg, env)
		}
		return prim("bool")

	case *template.Not:
		a.typeOf(e.Expr, env)
		return prim("bool")

	case *template.BinOp:
		left := a.typeOf(e.Left, env)
		if e.Right != nil {
			a.typeOf(e.Right, env)
		}
		switch e.Op {
		case "==", "!=", "<", "<=", ">", ">=", "in":
			return prim("bool")
		case "neg":
			return left
		default:
			return typeexpr.Unknown()
		}

	case *template.CondExpr:
		trueT := a.typeOf(e.True, env)
		a.typeOf(e.Test, env)
		if e.False == nil {
			return typeexpr.Unknown()
		}
		falseT := a.typeOf(e.False, env)
		return typeexpr.NewUnion([]*typeexpr.Descriptor{trueT, falseT})

	case *template.Seq:
		for _, item := range e.Items {
			a.typeOf(item, env)
		}
		return typeexpr.Unknown()
	}
	return typeexpr.Unknown()
}

func (a *analyzer) checkMacroArity(name string, sig macroSig, actual int, pos template.Pos) {
	switch {
	case actual < sig.min:
		a.report(pos, diag.Error, diag.TypeMismatch, "",
			"macro %q requires at least %d argument(s) but got %d", name, sig.min, actual)
	case actual > sig.max:
		a.report(pos, diag.Error, diag.TypeMismatch, "",
			"macro %q accepts at most %d argument(s) but got %d", name, sig.max, actual)
	}
}

// lookupAttr resolves a member access against a descriptor. Unknown and Any
// are permissive escape hatches and never produce diagnostics.
func (a *analyzer) lookupAttr(t *typeexpr.Descriptor, attr string, pos template.Pos, emit bool) *typeexpr.Descriptor {
	switch t.Kind {
	case typeexpr.KindUnknown, typeexpr.KindAny, typeexpr.KindPrimitive:
		return typeexpr.Unknown()

	case typeexpr.KindNone:
		if emit {
			a.report(pos, diag.Error, diag.TypeMismatch, "",
				"attribute %q accessed on None", attr)
		}
		return typeexpr.Unknown()

	case typeexpr.KindOptional:
		if emit {
			a.report(pos, diag.Error, diag.TypeMismatch, optionalHint(t),
				"attribute %q accessed on possibly-None value of type %s", attr, t)
		}
		return a.lookupAttr(t.Elem, attr, pos, false)

	case typeexpr.KindGeneric:
		if mt := mappingMethod(t, attr); mt != nil {
			return mt
		}
		if typeexpr.IsContainer(t.Name) {
			return typeexpr.Unknown()
		}
		// Parameterized user class: members come from the base definition.
		return a.lookupAttr(&typeexpr.Descriptor{Kind: typeexpr.KindNamed, Name: t.Name}, attr, pos, emit)

	case typeexpr.KindNamed:
		def, ok := a.scope.Def(t.Name)
		if !ok {
			return typeexpr.Unknown()
		}
		member, found := a.scope.LookupMember(def, attr)
		if !found {
			if emit {
				a.report(pos, diag.Error, diag.UnknownMember, memberHint(a.scope, def),
					"type %q has no member %q", t.Name, attr)
			}
			return typeexpr.Unknown()
		}
		if member.Type == nil {
			return typeexpr.Unknown()
		}
		return a.scope.ResolveLocal(def, member.Type)

	case typeexpr.KindUnion:
		var found []*typeexpr.Descriptor
		checkable := true
		for _, m := range t.Args {
			if !memberCheckable(a.scope, m) {
				checkable = false
				continue
			}
			if mt := a.lookupAttr(m, attr, pos, false); mt.Kind != typeexpr.KindUnknown || hasMember(a.scope, m, attr) {
				found = append(found, mt)
			}
		}
		switch {
		case len(found) > 0:
			return typeexpr.NewUnion(found)
		case checkable:
			if emit {
				a.report(pos, diag.Error, diag.UnknownMember, "",
					"no member %q on any variant of %s", attr, t)
			}
			return typeexpr.Unknown()
		default:
			return typeexpr.Unknown()
		}
	}
	return typeexpr.Unknown()
}

// mappingMethod types the mapping accessors templates actually use.
func mappingMethod(t *typeexpr.Descriptor, attr string) *typeexpr.Descriptor {
	if t.Name != "dict" && t.Name != "Dict" && t.Name != "Mapping" || len(t.Args) != 2 {
		return nil
	}
	k, v := t.Args[0], t.Args[1]
	pair := &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: "tuple", Args: []*typeexpr.Descriptor{k, v}}
	switch attr {
	case "items":
		return &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: "list", Args: []*typeexpr.Descriptor{pair}}
	case "keys":
		return &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: "list", Args: []*typeexpr.Descriptor{k}}
	case "values":
		return &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: "list", Args: []*typeexpr.Descriptor{v}}
	case "get":
		return typeexpr.NewOptional(v)
	}
	return nil
}

func memberCheckable(s *registry.Scope, t *typeexpr.Descriptor) bool {
	if t.Kind != typeexpr.KindNamed {
		return false
	}
	_, ok := s.Def(t.Name)
	return ok
}

func hasMember(s *registry.Scope, t *typeexpr.Descriptor, attr string) bool {
	if t.Kind != typeexpr.KindNamed {
		return false
	}
	def, ok := s.Def(t.Name)
	if !ok {
		return false
	}
	_, found := s.LookupMember(def, attr)
	return found
}

func (a *analyzer) subscriptType(t *typeexpr.Descriptor, pos template.Pos) *typeexpr.Descriptor {
	switch t.Kind {
	case typeexpr.KindOptional:
		a.report(pos, diag.Error, diag.TypeMismatch, optionalHint(t),
			"subscript on possibly-None value of type %s", t)
		return a.subscriptType(t.Elem, pos)

	case typeexpr.KindNone:
		a.report(pos, diag.Error, diag.TypeMismatch, "", "subscript on None")
		return typeexpr.Unknown()

	case typeexpr.KindPrimitive:
		if t.Name == "str" {
			return prim("str")
		}
		return typeexpr.Unknown()

	case typeexpr.KindGeneric:
		switch t.Name {
		case "dict", "Dict", "Mapping":
			if len(t.Args) == 2 {
				return t.Args[1]
			}
		case "tuple", "Tuple":
			return typeexpr.NewUnion(t.Args)
		default:
			if typeexpr.IsContainer(t.Name) && len(t.Args) > 0 {
				return t.Args[0]
			}
		}
	}
	return typeexpr.Unknown()
}

func optionalHint(t *typeexpr.Descriptor) string {
	return fmt.Sprintf("narrow it first, e.g. {%% if <name> is not none %%} (declared type: %s)", t)
}

func guardHint(e template.Expr) string {
	if n, ok := e.(*template.Name); ok {
		return fmt.Sprintf("guard the loop with {%% if %s %%}", n.Ident)
	}
	return ""
}

// memberHint lists the nearest available members so typos are cheap to spot.
func memberHint(s *registry.Scope, def *pyscan.TypeDef) string {
	names := map[string]bool{}
	collectMembers(s, def, names, map[string]bool{})
	if len(names) == 0 {
		return ""
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	if len(sorted) > 8 {
		sorted = sorted[:8]
	}
	return "available members: " + strings.Join(sorted, ", ")
}

func collectMembers(s *registry.Scope, def *pyscan.TypeDef, out map[string]bool, visited map[string]bool) {
	q := def.Qualified()
	if visited[q] {
		return
	}
	visited[q] = true
	for name := range def.Members {
		out[name] = true
	}
	for _, base := range def.Bases {
		if baseDef, ok := s.BaseDef(def, base); ok {
			collectMembers(s, baseDef, out, visited)
		}
	}
}
