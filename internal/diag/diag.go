// Package diag defines the diagnostic model shared by the analyzer, linter
// and reporter.
package diag

import (
	"fmt"
	"sort"
)

// Severity classifies how serious a diagnostic is.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Code identifies the condition a diagnostic reports. Codes are stable and
// machine-readable; messages are not.
type Code string

const (
	MalformedTypeExpr  Code = "malformed-type-expr"
	MalformedDirective Code = "malformed-directive"
	UnknownType        Code = "unknown-type"
	AmbiguousType      Code = "ambiguous-type"
	UndefinedVariable  Code = "undefined-variable"
	UnknownMember      Code = "unknown-member"
	TypeMismatch       Code = "type-mismatch"
	ParseFailure       Code = "parse-failure"
	TemplateSyntax     Code = "template-syntax"
	DuplicateDecl      Code = "duplicate-declaration"
	UnusedImport       Code = "unused-import"
	UnionStyle         Code = "union-style"
	UnsortedImports    Code = "unsorted-imports"
	RedundantNone      Code = "redundant-none"
)

// Fix is a textual replacement the patch writer can apply. Start and End are
// byte offsets into the file content; End is exclusive.
type Fix struct {
	Start       int
	End         int
	Replacement string
}

// Overlaps reports whether two fixes touch a common byte range.
func (f Fix) Overlaps(other Fix) bool {
	return f.Start < other.End && other.Start < f.End
}

// Diagnostic is one finding against one source location. Immutable once
// created.
type Diagnostic struct {
	Severity Severity
	Code     Code
	File     string
	Line     int
	Col      int
	Message  string
	Hint     string
	Fix      *Fix
}

func (d Diagnostic) String() string {
	loc := fmt.Sprintf("%s:%d", d.File, d.Line)
	if d.Col > 0 {
		loc += fmt.Sprintf(":%d", d.Col)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
}

// List is an ordered collection of diagnostics.
type List []Diagnostic

// Sort orders diagnostics by file, then line, then column. The order is
// deterministic so repeated runs on identical input produce identical output.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].File != l[j].File {
			return l[i].File < l[j].File
		}
		if l[i].Line != l[j].Line {
			return l[i].Line < l[j].Line
		}
		return l[i].Col < l[j].Col
	})
}

// HasErrors reports whether any diagnostic has error severity.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any diagnostic has warning severity.
func (l List) HasWarnings() bool {
	for _, d := range l {
		if d.Severity == Warning {
			return true
		}
	}
	return false
}

// Escalate returns a copy of the list with every warning raised to an error.
// Strict mode changes severities only, never which conditions are detected.
func (l List) Escalate() List {
	out := make(List, len(l))
	for i, d := range l {
		if d.Severity == Warning {
			d.Severity = Error
		}
		out[i] = d
	}
	return out
}
