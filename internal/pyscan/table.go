// Package pyscan extracts type definitions from Python source files using
// tree-sitter and merges them into the global symbol table consumed by the
// registry.
package pyscan

import (
	"sort"
	"strings"

	"github.com/typja/typja/internal/typeexpr"
)

// DefKind is the declaration kind of a scanned type.
type DefKind string

const (
	KindClass    DefKind = "class"
	KindEnum     DefKind = "enum"
	KindAlias    DefKind = "alias"
	KindCallable DefKind = "callable"
)

// Member is one attribute or method of a type definition.
type Member struct {
	Type     *typeexpr.Descriptor
	Callable bool
}

// TypeDef is a type definition discovered in a source file. Immutable after
// the scan; owned by the global table.
type TypeDef struct {
	Name    string
	Module  string // dotted module path, may be empty for root-level files
	Kind    DefKind
	Members map[string]Member

	// Bases holds base-class names as written in the source. They are
	// resolved and flattened lazily at member-lookup time, so scan order
	// across files does not matter.
	Bases []string

	// Aliased is the target descriptor for alias definitions.
	Aliased *typeexpr.Descriptor

	File string
}

// Qualified returns the fully qualified module_path.Name key.
func (d *TypeDef) Qualified() string {
	if d.Module == "" {
		return d.Name
	}
	return d.Module + "." + d.Name
}

// Table is the global symbol table: one immutable view of every scanned
// definition, keyed by qualified name, with bare-name ambiguity modeled as a
// first-class candidate set rather than an error.
type Table struct {
	byQualified map[string]*TypeDef
	byBare      map[string][]string           // bare name -> sorted qualified candidates
	modules     map[string]map[string]*TypeDef // module path -> name -> def
}

// NewTable builds a table from a flat list of definitions. Definitions with
// the same qualified name keep the first occurrence.
func NewTable(defs []*TypeDef) *Table {
	t := &Table{
		byQualified: map[string]*TypeDef{},
		byBare:      map[string][]string{},
		modules:     map[string]map[string]*TypeDef{},
	}
	for _, def := range defs {
		q := def.Qualified()
		if _, dup := t.byQualified[q]; dup {
			continue
		}
		t.byQualified[q] = def
		t.byBare[def.Name] = append(t.byBare[def.Name], q)
		if t.modules[def.Module] == nil {
			t.modules[def.Module] = map[string]*TypeDef{}
		}
		t.modules[def.Module][def.Name] = def
	}
	for name := range t.byBare {
		sort.Strings(t.byBare[name])
	}
	return t
}

// Lookup returns the definition for a fully qualified name.
func (t *Table) Lookup(qualified string) (*TypeDef, bool) {
	def, ok := t.byQualified[qualified]
	return def, ok
}

// Candidates returns the qualified names matching a bare name, sorted. An
// empty result means unknown; more than one means ambiguous.
func (t *Table) Candidates(bare string) []string {
	return t.byBare[bare]
}

// Module returns the definitions declared in a module, if the module was
// seen during the scan.
func (t *Table) Module(path string) (map[string]*TypeDef, bool) {
	defs, ok := t.modules[path]
	return defs, ok
}

// Len returns the number of distinct qualified definitions.
func (t *Table) Len() int { return len(t.byQualified) }

// ModulePath converts a root-relative, slash-separated file path into a
// dotted module path. "models/user.py" becomes "models.user";
// "models/__init__.py" becomes "models".
func ModulePath(rel string) string {
	rel = strings.TrimSuffix(rel, ".py")
	parts := strings.Split(rel, "/")
	if n := len(parts); n > 0 && parts[n-1] == "__init__" {
		parts = parts[:n-1]
	}
	return strings.Join(parts, ".")
}
