package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/typja/typja/internal/diag"
)

func sample() diag.List {
	return diag.List{
		{
			Severity: diag.Error, Code: diag.UnknownMember,
			File: "templates/index.html", Line: 2, Col: 9,
			Message: `type "models.User" has no member "nmae"`,
			Hint:    "available members: email, name",
		},
		{
			Severity: diag.Warning, Code: diag.UndefinedVariable,
			File: "templates/other.html", Line: 1, Col: 4,
			Message: `undefined variable "missing"`,
		},
	}
}

func TestPrintGroupsByFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, "never")
	r.Print(sample(), map[string][]byte{
		"templates/index.html": []byte("<ul>\n{{ user.nmae }}\n</ul>"),
	})

	out := buf.String()
	assert.Contains(t, out, "templates/index.html\n")
	assert.Contains(t, out, "templates/other.html\n")
	assert.Contains(t, out, "2:9  error")
	assert.Contains(t, out, "{{ user.nmae }}")
	assert.Contains(t, out, "        ^")
	assert.Contains(t, out, "hint: available members")

	// Files without source content still render the diagnostic line.
	assert.Contains(t, out, "1:4  warning")
}

func TestPrintCanSuppressHintsAndSnippets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, "never")
	r.ShowHints = false
	r.ShowSnippets = false
	r.Print(sample(), map[string][]byte{
		"templates/index.html": []byte("<ul>\n{{ user.nmae }}\n</ul>"),
	})

	out := buf.String()
	assert.Contains(t, out, "2:9  error")
	assert.NotContains(t, out, "{{ user.nmae }}")
	assert.NotContains(t, out, "hint:")
}

func TestSummaryCounts(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, "never")
	r.Summary(sample(), 3)
	assert.Contains(t, buf.String(), "1 error, 1 warning in 3 templates")
}

func TestSummaryClean(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, "never")
	r.Summary(nil, 1)
	assert.Contains(t, buf.String(), "no problems in 1 template")
}

func TestNeverModeHasNoEscapes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf, "never")
	r.Print(sample(), nil)
	r.Summary(sample(), 2)
	assert.NotContains(t, buf.String(), "\x1b[")
}
