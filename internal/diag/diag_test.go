package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortIsStableAcrossFilesAndLines(t *testing.T) {
	t.Parallel()

	l := List{
		{File: "b.html", Line: 1, Col: 1},
		{File: "a.html", Line: 9, Col: 2},
		{File: "a.html", Line: 9, Col: 1},
		{File: "a.html", Line: 2, Col: 5},
	}
	l.Sort()

	assert.Equal(t, "a.html", l[0].File)
	assert.Equal(t, 2, l[0].Line)
	assert.Equal(t, 1, l[1].Col)
	assert.Equal(t, "b.html", l[3].File)
}

func TestEscalateRaisesWarningsOnly(t *testing.T) {
	t.Parallel()

	l := List{
		{Severity: Warning, Code: UndefinedVariable},
		{Severity: Error, Code: UnknownMember},
		{Severity: Info, Code: UnionStyle},
	}
	out := l.Escalate()

	assert.Equal(t, Error, out[0].Severity)
	assert.Equal(t, Error, out[1].Severity)
	assert.Equal(t, Info, out[2].Severity)

	// The input list is untouched.
	assert.Equal(t, Warning, l[0].Severity)
}

func TestFixOverlaps(t *testing.T) {
	t.Parallel()

	a := Fix{Start: 0, End: 10}
	assert.True(t, a.Overlaps(Fix{Start: 5, End: 15}))
	assert.False(t, a.Overlaps(Fix{Start: 10, End: 20}))
}

func TestDiagnosticString(t *testing.T) {
	t.Parallel()

	d := Diagnostic{Severity: Error, File: "x.html", Line: 3, Col: 7, Message: "boom"}
	assert.Equal(t, "x.html:3:7: error: boom", d.String())
}
