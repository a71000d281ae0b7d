// Package annot extracts typja directives from template comment spans.
//
// Six directive shapes are recognized inside comments:
//
//	typja:var NAME: TYPE[, NAME: TYPE]*
//	typja:import MODULE
//	typja:from MODULE import NAME [as ALIAS], ...
//	typja:filter NAME: CALLABLE-TYPE
//	typja:macro NAME(PARAM: TYPE[ = DEFAULT], ...) -> TYPE
//	typja: ignore
//
// A malformed directive produces a diagnostic and never aborts extraction of
// the remaining directives.
package annot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/typja/typja/internal/diag"
	"github.com/typja/typja/internal/typeexpr"
)

// Comment is one comment span from the template tokenizer. Text is the inner
// body without the comment delimiters; Col is the column of the body start.
type Comment struct {
	Text string
	Line int
	Col  int
}

// Declaration is one template variable declared via a var directive.
type Declaration struct {
	Name    string
	Type    *typeexpr.Descriptor
	RawType string
	Line    int
	Col     int
}

// ModuleImport binds a module path for qualified access.
type ModuleImport struct {
	Module string
	Line   int
	Col    int
}

// SymbolImport binds a local name to a symbol in a module.
type SymbolImport struct {
	Local    string
	Module   string
	Original string
	Line     int
	Col      int
}

// FilterDecl types a custom template filter. The analyzer requires the
// declared type to be a Callable.
type FilterDecl struct {
	Name    string
	Type    *typeexpr.Descriptor
	RawType string
	Line    int
	Col     int
}

// MacroParam is one typed macro parameter.
type MacroParam struct {
	Name       string
	Type       *typeexpr.Descriptor
	HasDefault bool
}

// MacroDecl declares a macro signature for call-site checking.
type MacroDecl struct {
	Name   string
	Params []MacroParam
	Return *typeexpr.Descriptor
	Line   int
	Col    int
}

// Scope is the template-local skeleton the registry completes against the
// global table: declarations, import bindings and ignored lines for one
// template.
type Scope struct {
	// Decls holds the effective declaration per name. Later declarations
	// overwrite earlier ones.
	Decls map[string]Declaration

	// AllDecls keeps every declaration in source order, duplicates
	// included, for the linter.
	AllDecls []Declaration

	ModuleImports []ModuleImport
	SymbolImports []SymbolImport
	Filters       []FilterDecl
	Macros        []MacroDecl

	// Ignored lines suppress analyzer and linter diagnostics at emission.
	Ignored map[int]bool
}

// HasModule reports whether the scope imports the given module.
func (s *Scope) HasModule(module string) bool {
	for _, m := range s.ModuleImports {
		if m.Module == module {
			return true
		}
	}
	return false
}

// Symbol returns the symbol import bound to a local name, if any.
func (s *Scope) Symbol(local string) (SymbolImport, bool) {
	for _, imp := range s.SymbolImports {
		if imp.Local == local {
			return imp, true
		}
	}
	return SymbolImport{}, false
}

const prefix = "typja:"

var (
	importRe = regexp.MustCompile(`^import\s+([A-Za-z_][A-Za-z0-9_.]*)\s*$`)
	fromRe   = regexp.MustCompile(`^from\s+(\.*[A-Za-z_][A-Za-z0-9_.]*)\s+import\s+(.+)$`)
	nameRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Extract scans the ordered comment spans of one template and builds its
// scope skeleton. Diagnostics cover malformed directives and malformed type
// expressions; extraction continues past each failure.
func Extract(comments []Comment, file string) (*Scope, diag.List) {
	scope := &Scope{
		Decls:   map[string]Declaration{},
		Ignored: map[int]bool{},
	}
	var diags diag.List

	for _, c := range comments {
		body := strings.TrimSpace(c.Text)
		if !strings.HasPrefix(body, prefix) {
			continue
		}
		payload := strings.TrimSpace(body[len(prefix):])

		switch {
		case payload == "ignore" || strings.HasPrefix(payload, "ignore "):
			scope.Ignored[c.Line] = true

		case strings.HasPrefix(payload, "var"):
			diags = append(diags, extractVars(scope, payload[3:], c, file)...)

		case strings.HasPrefix(payload, "filter "):
			diags = append(diags, extractFilter(scope, payload[len("filter "):], c, file)...)

		case strings.HasPrefix(payload, "macro "):
			diags = append(diags, extractMacro(scope, payload[len("macro "):], c, file)...)

		case strings.HasPrefix(payload, "import "):
			m := importRe.FindStringSubmatch(payload)
			if m == nil {
				diags = append(diags, malformed(file, c, "invalid import statement: %s", payload))
				continue
			}
			scope.ModuleImports = append(scope.ModuleImports, ModuleImport{
				Module: m[1], Line: c.Line, Col: c.Col,
			})

		case strings.HasPrefix(payload, "from "):
			m := fromRe.FindStringSubmatch(payload)
			if m == nil {
				diags = append(diags, malformed(file, c, "invalid from-import statement: %s", payload))
				continue
			}
			imps, err := parseImportNames(m[1], m[2], c)
			if err != nil {
				diags = append(diags, malformed(file, c, "%s", err))
				continue
			}
			// Relative modules resolve against the configured import
			// roots, so leading dots are dropped.
			for i := range imps {
				imps[i].Module = strings.TrimLeft(imps[i].Module, ".")
			}
			scope.SymbolImports = append(scope.SymbolImports, imps...)

		default:
			short := payload
			if len(short) > 30 {
				short = short[:30] + "..."
			}
			diags = append(diags, malformed(file, c, "unknown typja directive: %s", short))
		}
	}

	return scope, diags
}

// extractVars parses the payload of a var directive. Top-level commas
// separate declarations; commas inside brackets belong to generic arguments.
func extractVars(scope *Scope, payload string, c Comment, file string) diag.List {
	var diags diag.List

	for _, part := range splitDecls(payload) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, typeStr, ok := strings.Cut(part, ":")
		if !ok {
			diags = append(diags, malformed(file, c, "invalid variable declaration: %s", part))
			continue
		}
		name = strings.TrimSpace(name)
		typeStr = strings.TrimSpace(typeStr)
		if !nameRe.MatchString(name) {
			diags = append(diags, malformed(file, c, "invalid variable name: %q", name))
			continue
		}

		desc, err := typeexpr.Parse(typeStr)
		if err != nil {
			diags = append(diags, typeError(file, c, err))
			continue
		}

		decl := Declaration{Name: name, Type: desc, RawType: typeStr, Line: c.Line, Col: c.Col}
		if prev, dup := scope.Decls[name]; dup && !prev.Type.Equal(desc) {
			diags = append(diags, diag.Diagnostic{
				Severity: diag.Warning,
				Code:     diag.DuplicateDecl,
				File:     file,
				Line:     c.Line,
				Col:      c.Col,
				Message:  fmt.Sprintf("variable %q redeclared with a different type (was %s, now %s)", name, prev.Type, desc),
				Hint:     fmt.Sprintf("%q was first declared at line %d", name, prev.Line),
			})
		}
		scope.Decls[name] = decl
		scope.AllDecls = append(scope.AllDecls, decl)
	}

	return diags
}

// extractFilter parses "filter NAME: TYPE". The Callable requirement is
// checked by the analyzer, where the failure can carry a proper hint.
func extractFilter(scope *Scope, payload string, c Comment, file string) diag.List {
	name, typeStr, ok := strings.Cut(payload, ":")
	if !ok {
		return diag.List{malformed(file, c, "invalid filter declaration: %s", strings.TrimSpace(payload))}
	}
	name = strings.TrimSpace(name)
	typeStr = strings.TrimSpace(typeStr)
	if !nameRe.MatchString(name) {
		return diag.List{malformed(file, c, "invalid filter name: %q", name)}
	}

	desc, err := typeexpr.Parse(typeStr)
	if err != nil {
		return diag.List{typeError(file, c, err)}
	}
	scope.Filters = append(scope.Filters, FilterDecl{
		Name: name, Type: desc, RawType: typeStr, Line: c.Line, Col: c.Col,
	})
	return nil
}

// extractMacro parses "macro NAME(PARAM: TYPE = DEFAULT, ...) -> TYPE". The
// return type is mandatory.
func extractMacro(scope *Scope, payload string, c Comment, file string) diag.List {
	open := strings.Index(payload, "(")
	end := strings.LastIndex(payload, ")")
	if open < 0 || end < open {
		return diag.List{malformed(file, c, "invalid macro declaration: %s", strings.TrimSpace(payload))}
	}
	name := strings.TrimSpace(payload[:open])
	if !nameRe.MatchString(name) {
		return diag.List{malformed(file, c, "invalid macro name: %q", name)}
	}

	retStr := ""
	if rest := payload[end+1:]; strings.Contains(rest, "->") {
		retStr = strings.TrimSpace(rest[strings.Index(rest, "->")+2:])
	}
	if retStr == "" {
		return diag.List{malformed(file, c, "macro %q must declare a return type with ->", name)}
	}

	var params []MacroParam
	for _, part := range splitDecls(payload[open+1 : end]) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hasDefault := false
		if i := strings.Index(part, "="); i >= 0 {
			hasDefault = true
			part = strings.TrimSpace(part[:i])
		}
		pname, typeStr, ok := strings.Cut(part, ":")
		if !ok {
			return diag.List{malformed(file, c, "macro parameter %q needs a type annotation", part)}
		}
		pname = strings.TrimSpace(pname)
		if !nameRe.MatchString(pname) {
			return diag.List{malformed(file, c, "invalid macro parameter name: %q", pname)}
		}
		desc, err := typeexpr.Parse(strings.TrimSpace(typeStr))
		if err != nil {
			return diag.List{typeError(file, c, err)}
		}
		params = append(params, MacroParam{Name: pname, Type: desc, HasDefault: hasDefault})
	}

	ret, err := typeexpr.Parse(retStr)
	if err != nil {
		return diag.List{typeError(file, c, err)}
	}
	scope.Macros = append(scope.Macros, MacroDecl{
		Name: name, Params: params, Return: ret, Line: c.Line, Col: c.Col,
	})
	return nil
}

func parseImportNames(module, list string, c Comment) ([]SymbolImport, error) {
	var imps []SymbolImport
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, alias := part, ""
		if orig, as, ok := strings.Cut(part, " as "); ok {
			name = strings.TrimSpace(orig)
			alias = strings.TrimSpace(as)
		}
		if !nameRe.MatchString(name) || (alias != "" && !nameRe.MatchString(alias)) {
			return nil, fmt.Errorf("invalid imported name: %q", part)
		}
		local := name
		if alias != "" {
			local = alias
		}
		imps = append(imps, SymbolImport{
			Local: local, Module: module, Original: name,
			Line: c.Line, Col: c.Col,
		})
	}
	if len(imps) == 0 {
		return nil, fmt.Errorf("from-import lists no names")
	}
	return imps, nil
}

// splitDecls splits on commas at bracket depth zero.
func splitDecls(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func typeError(file string, c Comment, err error) diag.Diagnostic {
	return diag.Diagnostic{
		Severity: diag.Error,
		Code:     diag.MalformedTypeExpr,
		File:     file,
		Line:     c.Line,
		Col:      c.Col,
		Message:  err.Error(),
	}
}

func malformed(file string, c Comment, format string, args ...any) diag.Diagnostic {
	return diag.Diagnostic{
		Severity: diag.Error,
		Code:     diag.MalformedDirective,
		File:     file,
		Line:     c.Line,
		Col:      c.Col,
		Message:  fmt.Sprintf(format, args...),
	}
}
