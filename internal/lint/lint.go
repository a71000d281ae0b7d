// Package lint adds style diagnostics over a template's typja annotations,
// independent of whether the analyzer found errors. Fixes carry byte spans
// for the patch writer; overlapping fixes are deferred to a later pass.
package lint

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/typja/typja/internal/annot"
	"github.com/typja/typja/internal/diag"
	"github.com/typja/typja/internal/typeexpr"
)

// Options selects the enabled rules.
type Options struct {
	PreferUnionOperator bool
	FlagUnusedImports   bool
	FlagDuplicateDecls  bool
	FlagUnsortedImports bool
	FlagRedundantNone   bool
}

// DefaultOptions enables every rule.
func DefaultOptions() Options {
	return Options{
		PreferUnionOperator: true,
		FlagUnusedImports:   true,
		FlagDuplicateDecls:  true,
		FlagUnsortedImports: true,
		FlagRedundantNone:   true,
	}
}

// Run lints one template's annotation scope. source is the raw template text,
// used to attach fix spans to declarations. Diagnostics on ignored lines are
// dropped, matching the analyzer.
func (o Options) Run(source []byte, scope *annot.Scope, file string) diag.List {
	var diags diag.List

	if o.PreferUnionOperator {
		diags = append(diags, unionStyle(source, scope, file)...)
	}
	if o.FlagUnusedImports {
		diags = append(diags, unusedImports(scope, file)...)
	}
	if o.FlagDuplicateDecls {
		diags = append(diags, duplicateDecls(scope, file)...)
	}
	if o.FlagUnsortedImports {
		diags = append(diags, sortedImports(scope, file)...)
	}
	if o.FlagRedundantNone {
		diags = append(diags, redundantNone(source, scope, file)...)
	}

	kept := diags[:0]
	for _, d := range diags {
		if scope.Ignored[d.Line] {
			continue
		}
		kept = append(kept, d)
	}
	list := diag.List(kept)
	list.Sort()
	return list
}

// bracketedUnionRe matches the typing spellings at an identifier boundary, so
// user types like MyOptional never trip the rule.
var bracketedUnionRe = regexp.MustCompile(`\b(?:typing\.)?(?:Optional|Union)\[`)

// unionStyle flags the bracketed Optional/Union spelling and offers the
// canonical operator form as a fix.
func unionStyle(source []byte, scope *annot.Scope, file string) diag.List {
	var diags diag.List
	starts := lineStarts(source)

	for _, decl := range scope.AllDecls {
		if !bracketedUnionRe.MatchString(decl.RawType) {
			continue
		}
		d := diag.Diagnostic{
			Severity: diag.Warning,
			Code:     diag.UnionStyle,
			File:     file,
			Line:     decl.Line,
			Col:      decl.Col,
			Message:  fmt.Sprintf("prefer the union operator form: %s", decl.Type),
			Hint:     fmt.Sprintf("rewrite %q as %q", decl.RawType, decl.Type.String()),
		}
		if start, end, ok := rawTypeSpan(source, starts, decl); ok {
			d.Fix = &diag.Fix{Start: start, End: end, Replacement: decl.Type.String()}
		}
		diags = append(diags, d)
	}
	return diags
}

// rawTypeSpan locates the declaration's raw type text on its line. Multi-line
// type expressions get a diagnostic without a fix.
func rawTypeSpan(source []byte, starts []int, decl annot.Declaration) (int, int, bool) {
	if decl.Line < 1 || decl.Line > len(starts) {
		return 0, 0, false
	}
	lineStart := starts[decl.Line-1]
	lineEnd := len(source)
	if decl.Line < len(starts) {
		lineEnd = starts[decl.Line]
	}
	idx := strings.Index(string(source[lineStart:lineEnd]), decl.RawType)
	if idx < 0 {
		return 0, 0, false
	}
	start := lineStart + idx
	return start, start + len(decl.RawType), true
}

func lineStarts(source []byte) []int {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// unusedImports reports import bindings no declaration references.
func unusedImports(scope *annot.Scope, file string) diag.List {
	used := map[string]bool{}
	var modules []string
	for _, decl := range scope.AllDecls {
		collectNames(decl.Type, used, &modules)
	}

	var diags diag.List
	for _, imp := range scope.SymbolImports {
		if used[imp.Local] {
			continue
		}
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Warning,
			Code:     diag.UnusedImport,
			File:     file,
			Line:     imp.Line,
			Col:      imp.Col,
			Message:  fmt.Sprintf("imported type %q is never used", imp.Local),
		})
	}
	for _, m := range scope.ModuleImports {
		if moduleUsed(m.Module, modules) {
			continue
		}
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Warning,
			Code:     diag.UnusedImport,
			File:     file,
			Line:     m.Line,
			Col:      m.Col,
			Message:  fmt.Sprintf("imported module %q is never used", m.Module),
		})
	}
	return diags
}

// collectNames gathers the bare identifiers and dotted prefixes referenced by
// a descriptor.
func collectNames(d *typeexpr.Descriptor, bare map[string]bool, modules *[]string) {
	if d == nil {
		return
	}
	if d.Kind == typeexpr.KindNamed || d.Kind == typeexpr.KindGeneric {
		if i := strings.LastIndex(d.Name, "."); i >= 0 {
			*modules = append(*modules, d.Name[:i])
		} else if d.Name != "" {
			bare[d.Name] = true
		}
	}
	for _, a := range d.Args {
		collectNames(a, bare, modules)
	}
	collectNames(d.Elem, bare, modules)
}

func moduleUsed(module string, refs []string) bool {
	for _, r := range refs {
		if r == module || strings.HasPrefix(r, module+".") {
			return true
		}
	}
	return false
}

// sortedImports checks that each contiguous block of import directives is
// alphabetical by module, module imports before from-imports. A gap of more
// than two lines starts a new block.
func sortedImports(scope *annot.Scope, file string) diag.List {
	type entry struct {
		line, col int
		key       string
	}
	var entries []entry
	for _, m := range scope.ModuleImports {
		entries = append(entries, entry{m.Line, m.Col, "0:" + m.Module})
	}
	for _, imp := range scope.SymbolImports {
		entries = append(entries, entry{imp.Line, imp.Col, "1:" + imp.Module})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].line < entries[j].line })

	var diags diag.List
	var block []entry
	flush := func() {
		for i := 1; i < len(block); i++ {
			if block[i].key < block[i-1].key {
				diags = append(diags, diag.Diagnostic{
					Severity: diag.Warning,
					Code:     diag.UnsortedImports,
					File:     file,
					Line:     block[i].line,
					Col:      block[i].col,
					Message:  "imports are not sorted alphabetically",
					Hint:     "keep module imports first, then from-imports, each sorted by module",
				})
				break
			}
		}
		block = block[:0]
	}
	for i, e := range entries {
		if i > 0 && e.line-entries[i-1].line > 2 {
			flush()
		}
		block = append(block, e)
	}
	flush()
	return diags
}

// redundantNone flags unions that spell None more than once and offers the
// canonical form as a fix.
func redundantNone(source []byte, scope *annot.Scope, file string) diag.List {
	var diags diag.List
	starts := lineStarts(source)

	for _, decl := range scope.AllDecls {
		if topLevelNones(decl.RawType) < 2 {
			continue
		}
		d := diag.Diagnostic{
			Severity: diag.Warning,
			Code:     diag.RedundantNone,
			File:     file,
			Line:     decl.Line,
			Col:      decl.Col,
			Message:  fmt.Sprintf("union for %q spells None more than once", decl.Name),
			Hint:     fmt.Sprintf("rewrite %q as %q", decl.RawType, decl.Type.String()),
		}
		if start, end, ok := rawTypeSpan(source, starts, decl); ok {
			d.Fix = &diag.Fix{Start: start, End: end, Replacement: decl.Type.String()}
		}
		diags = append(diags, d)
	}
	return diags
}

// topLevelNones counts None members at bracket depth zero of a raw union.
func topLevelNones(raw string) int {
	n := 0
	depth := 0
	start := 0
	count := func(end int) {
		if strings.TrimSpace(raw[start:end]) == "None" {
			n++
		}
	}
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case '|':
			if depth == 0 {
				count(i)
				start = i + 1
			}
		}
	}
	count(len(raw))
	return n
}

// duplicateDecls reports exact redeclarations. Conflicting redeclarations are
// already diagnosed during extraction.
func duplicateDecls(scope *annot.Scope, file string) diag.List {
	seen := map[string]annot.Declaration{}
	var diags diag.List
	for _, decl := range scope.AllDecls {
		prev, dup := seen[decl.Name]
		seen[decl.Name] = decl
		if !dup || !prev.Type.Equal(decl.Type) {
			continue
		}
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Warning,
			Code:     diag.DuplicateDecl,
			File:     file,
			Line:     decl.Line,
			Col:      decl.Col,
			Message:  fmt.Sprintf("variable %q is already declared with this type at line %d", decl.Name, prev.Line),
		})
	}
	return diags
}

// SelectFixes picks a non-overlapping subset of the fixes carried by a
// diagnostic list, earliest span first. Overlapping fixes are left for a
// subsequent pass so one rewrite never corrupts another.
func SelectFixes(diags diag.List) ([]diag.Fix, int) {
	var fixes []diag.Fix
	for _, d := range diags {
		if d.Fix != nil {
			fixes = append(fixes, *d.Fix)
		}
	}
	sort.Slice(fixes, func(i, j int) bool {
		if fixes[i].Start != fixes[j].Start {
			return fixes[i].Start < fixes[j].Start
		}
		return fixes[i].End < fixes[j].End
	})

	var apply []diag.Fix
	deferred := 0
	for _, f := range fixes {
		if len(apply) > 0 && f.Overlaps(apply[len(apply)-1]) {
			deferred++
			continue
		}
		apply = append(apply, f)
	}
	return apply, deferred
}

// Apply rewrites source with a non-overlapping, sorted fix set.
func Apply(source []byte, fixes []diag.Fix) []byte {
	if len(fixes) == 0 {
		return source
	}
	var out []byte
	prev := 0
	for _, f := range fixes {
		out = append(out, source[prev:f.Start]...)
		out = append(out, f.Replacement...)
		prev = f.End
	}
	out = append(out, source[prev:]...)
	return out
}
