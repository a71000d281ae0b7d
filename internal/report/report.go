// Package report renders diagnostics for a terminal: grouped by file, sorted
// by line, with source snippets and hints. Machine formats live elsewhere;
// diagnostics carry all structured data a renderer needs.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/typja/typja/internal/diag"
)

// Reporter writes human-readable diagnostics.
type Reporter struct {
	out io.Writer

	// ShowHints and ShowSnippets gate the secondary lines under each
	// diagnostic. Both default to on.
	ShowHints    bool
	ShowSnippets bool

	header *color.Color
	errC   *color.Color
	warnC  *color.Color
	infoC  *color.Color
	faint  *color.Color
	hintC  *color.Color
}

// New builds a reporter. mode is "auto", "always" or "never"; auto follows
// the fatih/color TTY detection.
func New(out io.Writer, mode string) *Reporter {
	r := &Reporter{
		out:          out,
		ShowHints:    true,
		ShowSnippets: true,
		header:       color.New(color.Bold, color.Underline),
		errC:         color.New(color.FgRed, color.Bold),
		warnC:        color.New(color.FgYellow),
		infoC:        color.New(color.FgCyan),
		faint:        color.New(color.Faint),
		hintC:        color.New(color.FgGreen),
	}
	switch mode {
	case "always":
		for _, c := range r.colors() {
			c.EnableColor()
		}
	case "never":
		for _, c := range r.colors() {
			c.DisableColor()
		}
	}
	return r
}

func (r *Reporter) colors() []*color.Color {
	return []*color.Color{r.header, r.errC, r.warnC, r.infoC, r.faint, r.hintC}
}

// Print renders a sorted diagnostic list. sources maps file paths to raw
// content for snippet lines; files without content render without snippets.
func (r *Reporter) Print(diags diag.List, sources map[string][]byte) {
	currentFile := ""
	for _, d := range diags {
		if d.File != currentFile {
			if currentFile != "" {
				fmt.Fprintln(r.out)
			}
			currentFile = d.File
			fmt.Fprintln(r.out, r.header.Sprint(d.File))
		}

		fmt.Fprintf(r.out, "  %s  %s  %s  %s\n",
			r.faint.Sprintf("%d:%d", d.Line, d.Col),
			r.severity(d.Severity),
			r.faint.Sprint(string(d.Code)),
			d.Message)

		if line, ok := sourceLine(sources[d.File], d.Line); ok && r.ShowSnippets {
			fmt.Fprintf(r.out, "        %s %s\n", r.faint.Sprint("|"), strings.TrimRight(line, " \t"))
			if d.Col > 0 && d.Col <= len(line)+1 {
				fmt.Fprintf(r.out, "        %s %s%s\n",
					r.faint.Sprint("|"), strings.Repeat(" ", d.Col-1), r.severityColor(d.Severity).Sprint("^"))
			}
		}
		if d.Hint != "" && r.ShowHints {
			fmt.Fprintf(r.out, "        %s %s\n", r.hintC.Sprint("hint:"), d.Hint)
		}
	}
}

// Summary writes the closing tally.
func (r *Reporter) Summary(diags diag.List, templates int) {
	errors, warnings := 0, 0
	for _, d := range diags {
		switch d.Severity {
		case diag.Error:
			errors++
		case diag.Warning:
			warnings++
		}
	}

	if len(diags) > 0 {
		fmt.Fprintln(r.out)
	}
	switch {
	case errors == 0 && warnings == 0:
		fmt.Fprintf(r.out, "%s %s\n",
			r.hintC.Sprint("ok:"),
			fmt.Sprintf("no problems in %s", plural(templates, "template")))
	default:
		parts := []string{}
		if errors > 0 {
			parts = append(parts, r.errC.Sprint(plural(errors, "error")))
		}
		if warnings > 0 {
			parts = append(parts, r.warnC.Sprint(plural(warnings, "warning")))
		}
		fmt.Fprintf(r.out, "%s in %s\n", strings.Join(parts, ", "), plural(templates, "template"))
	}
}

func (r *Reporter) severity(s diag.Severity) string {
	return r.severityColor(s).Sprint(paddedSeverity(s))
}

func (r *Reporter) severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.Error:
		return r.errC
	case diag.Warning:
		return r.warnC
	default:
		return r.infoC
	}
}

func paddedSeverity(s diag.Severity) string {
	switch s {
	case diag.Error:
		return "error  "
	case diag.Warning:
		return "warning"
	default:
		return "info   "
	}
}

func sourceLine(source []byte, line int) (string, bool) {
	if source == nil || line < 1 {
		return "", false
	}
	lines := strings.Split(string(source), "\n")
	if line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
