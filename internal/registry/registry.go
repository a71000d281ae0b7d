// Package registry resolves type names against the merged view of one
// template's scope: explicit imports first, then the global symbol table,
// with multi-module bare-name collisions reported as ambiguity instead of
// picking a winner.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/typja/typja/internal/annot"
	"github.com/typja/typja/internal/diag"
	"github.com/typja/typja/internal/pyscan"
	"github.com/typja/typja/internal/typeexpr"
)

// Failure is one unresolved leaf of a compound type expression.
type Failure struct {
	Code    diag.Code // UnknownType or AmbiguousType
	Message string
	Hint    string
}

// Scope binds one template's declarations and imports to the read-only
// global table. It lives for a single analysis pass.
type Scope struct {
	Annot  *annot.Scope
	Global *pyscan.Table
}

// NewScope pairs an extracted annotation scope with the global table.
func NewScope(a *annot.Scope, table *pyscan.Table) *Scope {
	return &Scope{Annot: a, Global: table}
}

// ValidateImports checks that every import binding points at a module and
// symbol the scan actually found.
func (s *Scope) ValidateImports(file string) diag.List {
	var diags diag.List

	for _, m := range s.Annot.ModuleImports {
		if _, ok := s.Global.Module(m.Module); !ok {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.UnknownType,
				File:     file,
				Line:     m.Line,
				Col:      m.Col,
				Message:  fmt.Sprintf("module %q not found in configured paths", m.Module),
			})
		}
	}

	for _, imp := range s.Annot.SymbolImports {
		defs, ok := s.Global.Module(imp.Module)
		if !ok {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.UnknownType,
				File:     file,
				Line:     imp.Line,
				Col:      imp.Col,
				Message:  fmt.Sprintf("module %q not found in configured paths", imp.Module),
			})
			continue
		}
		if _, ok := defs[imp.Original]; !ok {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.UnknownType,
				File:     file,
				Line:     imp.Line,
				Col:      imp.Col,
				Message:  fmt.Sprintf("module %q has no type %q", imp.Module, imp.Original),
				Hint:     availableHint(defs),
			})
		}
	}

	return diags
}

// ResolveName maps a bare or qualified name to its definition.
//
// Lookup order: qualified names go straight to the global table; bare names
// try explicit imports first, then the global bare-name table, failing with
// AmbiguousType when several modules define the name.
func (s *Scope) ResolveName(name string) (*pyscan.TypeDef, *Failure) {
	if strings.Contains(name, ".") {
		if def, ok := s.Global.Lookup(name); ok {
			return def, nil
		}
		return nil, &Failure{
			Code:    diag.UnknownType,
			Message: fmt.Sprintf("type %q not found in configured paths", name),
		}
	}

	if imp, ok := s.Annot.Symbol(name); ok {
		qualified := imp.Module + "." + imp.Original
		if def, ok := s.Global.Lookup(qualified); ok {
			return def, nil
		}
		return nil, &Failure{
			Code:    diag.UnknownType,
			Message: fmt.Sprintf("imported type %q not found in module %q", imp.Original, imp.Module),
		}
	}

	candidates := s.Global.Candidates(name)
	switch len(candidates) {
	case 1:
		def, _ := s.Global.Lookup(candidates[0])
		return def, nil
	case 0:
		return nil, &Failure{
			Code:    diag.UnknownType,
			Message: fmt.Sprintf("type %q not found in configured paths", name),
			Hint:    fmt.Sprintf("import it with {# typja:from <module> import %s #}", name),
		}
	default:
		return nil, &Failure{
			Code:    diag.AmbiguousType,
			Message: fmt.Sprintf("type %q is defined in multiple modules: %s", name, strings.Join(candidates, ", ")),
			Hint:    "use a qualified name or an explicit {# typja:from ... import ... #}",
		}
	}
}

// Resolve rewrites a descriptor so every Named leaf carries its qualified
// name, substituting alias targets. All leaf failures are collected, not just
// the first, so one declaration surfaces every broken reference at once.
func (s *Scope) Resolve(d *typeexpr.Descriptor) (*typeexpr.Descriptor, []Failure) {
	var failures []Failure
	resolved := s.resolve(d, map[string]bool{}, &failures)
	return resolved, failures
}

func (s *Scope) resolve(d *typeexpr.Descriptor, seen map[string]bool, failures *[]Failure) *typeexpr.Descriptor {
	switch d.Kind {
	case typeexpr.KindNamed:
		def, fail := s.ResolveName(d.Name)
		if fail != nil {
			*failures = append(*failures, *fail)
			return d
		}
		if def.Kind == pyscan.KindAlias {
			q := def.Qualified()
			if seen[q] {
				// Alias cycle: leave the name as resolved-but-opaque.
				return &typeexpr.Descriptor{Kind: typeexpr.KindNamed, Name: q}
			}
			seen[q] = true
			return s.resolve(def.Aliased, seen, failures)
		}
		return &typeexpr.Descriptor{Kind: typeexpr.KindNamed, Name: def.Qualified()}

	case typeexpr.KindGeneric:
		out := &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: d.Name}
		if d.Name != "" && !typeexpr.IsContainer(d.Name) && d.Name != "Callable" && d.Name != "typing.Callable" {
			def, fail := s.ResolveName(d.Name)
			if fail != nil {
				*failures = append(*failures, *fail)
			} else {
				out.Name = def.Qualified()
			}
		}
		for _, a := range d.Args {
			out.Args = append(out.Args, s.resolve(a, seen, failures))
		}
		return out

	case typeexpr.KindUnion:
		members := make([]*typeexpr.Descriptor, 0, len(d.Args))
		for _, a := range d.Args {
			members = append(members, s.resolve(a, seen, failures))
		}
		return typeexpr.NewUnion(members)

	case typeexpr.KindOptional:
		return typeexpr.NewOptional(s.resolve(d.Elem, seen, failures))

	default:
		return d
	}
}

// Def returns the definition behind a resolved qualified name.
func (s *Scope) Def(qualified string) (*pyscan.TypeDef, bool) {
	return s.Global.Lookup(qualified)
}

// LookupMember finds a member on a definition, walking base classes lazily
// in declaration order. Own members shadow inherited ones; the first match
// wins. A visited set keeps cyclic base references from looping.
func (s *Scope) LookupMember(def *pyscan.TypeDef, name string) (pyscan.Member, bool) {
	return s.lookupMember(def, name, map[string]bool{})
}

func (s *Scope) lookupMember(def *pyscan.TypeDef, name string, visited map[string]bool) (pyscan.Member, bool) {
	q := def.Qualified()
	if visited[q] {
		return pyscan.Member{}, false
	}
	visited[q] = true

	if m, ok := def.Members[name]; ok {
		return m, true
	}
	for _, base := range def.Bases {
		baseDef := s.resolveBase(def, base)
		if baseDef == nil {
			continue
		}
		if m, ok := s.lookupMember(baseDef, name, visited); ok {
			return m, true
		}
	}
	return pyscan.Member{}, false
}

// ResolveLocal resolves the names inside a member annotation in the context
// of its defining module: the module's own definitions win over a unique
// global candidate. Names that resolve nowhere stay as written; member
// annotations never produce template diagnostics on their own.
func (s *Scope) ResolveLocal(def *pyscan.TypeDef, d *typeexpr.Descriptor) *typeexpr.Descriptor {
	return s.resolveLocal(def, d, map[string]bool{})
}

func (s *Scope) resolveLocal(def *pyscan.TypeDef, d *typeexpr.Descriptor, seen map[string]bool) *typeexpr.Descriptor {
	switch d.Kind {
	case typeexpr.KindNamed:
		target := s.resolveBase(def, d.Name)
		if target == nil {
			return d
		}
		if target.Kind == pyscan.KindAlias {
			q := target.Qualified()
			if seen[q] {
				return &typeexpr.Descriptor{Kind: typeexpr.KindNamed, Name: q}
			}
			seen[q] = true
			return s.resolveLocal(target, target.Aliased, seen)
		}
		return &typeexpr.Descriptor{Kind: typeexpr.KindNamed, Name: target.Qualified()}

	case typeexpr.KindGeneric:
		out := &typeexpr.Descriptor{Kind: typeexpr.KindGeneric, Name: d.Name}
		if d.Name != "" && !typeexpr.IsContainer(d.Name) {
			if target := s.resolveBase(def, d.Name); target != nil {
				out.Name = target.Qualified()
			}
		}
		for _, a := range d.Args {
			out.Args = append(out.Args, s.resolveLocal(def, a, seen))
		}
		return out

	case typeexpr.KindUnion:
		members := make([]*typeexpr.Descriptor, 0, len(d.Args))
		for _, a := range d.Args {
			members = append(members, s.resolveLocal(def, a, seen))
		}
		return typeexpr.NewUnion(members)

	case typeexpr.KindOptional:
		return typeexpr.NewOptional(s.resolveLocal(def, d.Elem, seen))

	default:
		return d
	}
}

// BaseDef resolves a base-class reference of def to its definition, using
// the same rules as member lookup.
func (s *Scope) BaseDef(def *pyscan.TypeDef, base string) (*pyscan.TypeDef, bool) {
	d := s.resolveBase(def, base)
	return d, d != nil
}

// resolveBase maps a base-class reference to its definition: dotted names go
// to the global table, bare names prefer the defining module, then a unique
// global candidate.
func (s *Scope) resolveBase(def *pyscan.TypeDef, base string) *pyscan.TypeDef {
	if strings.Contains(base, ".") {
		if d, ok := s.Global.Lookup(base); ok {
			return d
		}
		return nil
	}
	if defs, ok := s.Global.Module(def.Module); ok {
		if d, ok := defs[base]; ok {
			return d
		}
	}
	if candidates := s.Global.Candidates(base); len(candidates) == 1 {
		d, _ := s.Global.Lookup(candidates[0])
		return d
	}
	return nil
}

func availableHint(defs map[string]*pyscan.TypeDef) string {
	if len(defs) == 0 {
		return ""
	}
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return "available types: " + strings.Join(names, ", ")
}
