package lint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typja/typja/internal/annot"
	"github.com/typja/typja/internal/diag"
	"github.com/typja/typja/internal/template"
)

func extract(t *testing.T, source string) (*annot.Scope, []byte) {
	t.Helper()

	tmpl, pdiags := template.Parse([]byte(source), "page.html")
	require.Empty(t, pdiags)
	scope, adiags := annot.Extract(tmpl.Comments, "page.html")
	require.Empty(t, adiags)
	return scope, []byte(source)
}

func TestUnionStyleFix(t *testing.T) {
	t.Parallel()

	scope, src := extract(t, `{# typja:var user: Optional[User] #}{{ user }}`)
	diags := DefaultOptions().Run(src, scope, "page.html")

	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnionStyle, diags[0].Code)
	require.NotNil(t, diags[0].Fix)

	fixed := Apply(src, []diag.Fix{*diags[0].Fix})
	assert.Equal(t, `{# typja:var user: User | None #}{{ user }}`, string(fixed))
}

func TestVerboseUnionFix(t *testing.T) {
	t.Parallel()

	scope, src := extract(t, `{# typja:var v: Union[int, str] #}{{ v }}`)
	diags := DefaultOptions().Run(src, scope, "page.html")

	require.Len(t, diags, 1)
	require.NotNil(t, diags[0].Fix)
	assert.Equal(t, "int | str", diags[0].Fix.Replacement)
}

func TestOperatorFormIsClean(t *testing.T) {
	t.Parallel()

	scope, src := extract(t, `{# typja:var user: User | None #}{{ user }}`)
	diags := DefaultOptions().Run(src, scope, "page.html")
	assert.Empty(t, diags)
}

func TestUserTypeNamedLikeOptionalIsClean(t *testing.T) {
	t.Parallel()

	scope, src := extract(t, `{# typja:var user: MyOptional[User] #}{{ user }}`)
	diags := DefaultOptions().Run(src, scope, "page.html")
	assert.Empty(t, diags)
}

func TestUnsortedImports(t *testing.T) {
	t.Parallel()

	src := `{# typja:from billing import Invoice #}
{# typja:from accounts import User #}
{{ x }}`
	scope, raw := extract(t, src)
	diags := Options{FlagUnsortedImports: true}.Run(raw, scope, "page.html")

	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnsortedImports, diags[0].Code)
	assert.Equal(t, 2, diags[0].Line)
}

func TestImportBlocksSplitByBlankLines(t *testing.T) {
	t.Parallel()

	src := `{# typja:from billing import Invoice #}


{# typja:from accounts import User #}`
	scope, raw := extract(t, src)
	diags := Options{FlagUnsortedImports: true}.Run(raw, scope, "page.html")
	assert.Empty(t, diags)
}

func TestRedundantNoneFix(t *testing.T) {
	t.Parallel()

	scope, src := extract(t, `{# typja:var u: User | None | None #}{{ u }}`)
	diags := DefaultOptions().Run(src, scope, "page.html")

	require.Len(t, diags, 1)
	assert.Equal(t, diag.RedundantNone, diags[0].Code)
	require.NotNil(t, diags[0].Fix)

	fixed := Apply(src, []diag.Fix{*diags[0].Fix})
	assert.Equal(t, `{# typja:var u: User | None #}{{ u }}`, string(fixed))
}

func TestUnusedImport(t *testing.T) {
	t.Parallel()

	src := `{# typja:from models import User, Product #}{# typja:var u: User #}{{ u }}`
	scope, raw := extract(t, src)
	diags := DefaultOptions().Run(raw, scope, "page.html")

	require.Len(t, diags, 1)
	assert.Equal(t, diag.UnusedImport, diags[0].Code)
	assert.Contains(t, diags[0].Message, "Product")
}

func TestModuleImportUsedByQualifiedName(t *testing.T) {
	t.Parallel()

	src := `{# typja:import models #}{# typja:var u: models.User #}{{ u }}`
	scope, raw := extract(t, src)
	diags := DefaultOptions().Run(raw, scope, "page.html")
	assert.Empty(t, diags)
}

func TestDuplicateDeclaration(t *testing.T) {
	t.Parallel()

	src := `{# typja:var u: User #}
{# typja:var u: User #}{{ u }}`
	scope, raw := extract(t, src)
	diags := DefaultOptions().Run(raw, scope, "page.html")

	require.Len(t, diags, 1)
	assert.Equal(t, diag.DuplicateDecl, diags[0].Code)
	assert.Equal(t, 2, diags[0].Line)
}

func TestIgnoredLineSuppressed(t *testing.T) {
	t.Parallel()

	src := `{# typja:var u: Optional[User] #}{# typja: ignore #}{{ u }}`
	scope, raw := extract(t, src)
	diags := DefaultOptions().Run(raw, scope, "page.html")
	assert.Empty(t, diags)
}

func TestSelectFixesRejectsOverlaps(t *testing.T) {
	t.Parallel()

	diags := diag.List{
		{Fix: &diag.Fix{Start: 0, End: 10, Replacement: "a"}},
		{Fix: &diag.Fix{Start: 5, End: 15, Replacement: "b"}},
		{Fix: &diag.Fix{Start: 10, End: 20, Replacement: "c"}},
	}
	apply, deferred := SelectFixes(diags)

	require.Len(t, apply, 2)
	assert.Equal(t, 1, deferred)
	assert.Equal(t, 0, apply[0].Start)
	assert.Equal(t, 10, apply[1].Start)
}

func TestApplyMultipleFixes(t *testing.T) {
	t.Parallel()

	src := []byte("aaa bbb ccc")
	out := Apply(src, []diag.Fix{
		{Start: 0, End: 3, Replacement: "X"},
		{Start: 8, End: 11, Replacement: "Y"},
	})
	assert.Equal(t, "X bbb Y", string(out))
}
