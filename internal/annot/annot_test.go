package annot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typja/typja/internal/diag"
)

func extract(t *testing.T, texts ...string) (*Scope, diag.List) {
	t.Helper()
	comments := make([]Comment, len(texts))
	for i, txt := range texts {
		comments[i] = Comment{Text: txt, Line: i + 1, Col: 1}
	}
	return Extract(comments, "page.html")
}

func TestVarDeclaration(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "typja:var user: models.User")
	assert.Empty(t, diags)
	require.Contains(t, scope.Decls, "user")
	assert.Equal(t, "models.User", scope.Decls["user"].Type.String())
}

func TestCommaInsideGenericIsNotASplit(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "typja:var data: dict[str, int], flag: bool")
	assert.Empty(t, diags)
	require.Len(t, scope.Decls, 2)
	assert.Equal(t, "dict[str, int]", scope.Decls["data"].Type.String())
	assert.Equal(t, "bool", scope.Decls["flag"].Type.String())
}

func TestImports(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t,
		"typja:import models.user",
		"typja:from models import User, Admin as Boss",
	)
	assert.Empty(t, diags)
	assert.True(t, scope.HasModule("models.user"))

	imp, ok := scope.Symbol("User")
	require.True(t, ok)
	assert.Equal(t, "models", imp.Module)
	assert.Equal(t, "User", imp.Original)

	boss, ok := scope.Symbol("Boss")
	require.True(t, ok)
	assert.Equal(t, "Admin", boss.Original)
	_, ok = scope.Symbol("Admin")
	assert.False(t, ok, "aliased import must not bind the original name")
}

func TestRelativeFromImport(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "typja:from .models import User")
	assert.Empty(t, diags)

	imp, ok := scope.Symbol("User")
	require.True(t, ok)
	assert.Equal(t, "models", imp.Module, "leading dots resolve against the import roots")
}

func TestFilterDeclaration(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "typja:filter money: Callable[[float, str], str]")
	assert.Empty(t, diags)

	require.Len(t, scope.Filters, 1)
	f := scope.Filters[0]
	assert.Equal(t, "money", f.Name)
	assert.Equal(t, "Callable", f.Type.Name)
	require.Len(t, f.Type.Args, 2)
	assert.Len(t, f.Type.Args[0].Args, 2)
}

func TestMacroDeclaration(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "typja:macro badge(user: User, compact: bool = false) -> str")
	assert.Empty(t, diags)

	require.Len(t, scope.Macros, 1)
	m := scope.Macros[0]
	assert.Equal(t, "badge", m.Name)
	require.Len(t, m.Params, 2)
	assert.Equal(t, "user", m.Params[0].Name)
	assert.False(t, m.Params[0].HasDefault)
	assert.True(t, m.Params[1].HasDefault)
	assert.Equal(t, "str", m.Return.String())
}

func TestMacroRequiresReturnType(t *testing.T) {
	t.Parallel()

	_, diags := extract(t, "typja:macro badge(user: User)")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.MalformedDirective, diags[0].Code)
	assert.Contains(t, diags[0].Message, "return type")
}

func TestIgnoreDirective(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "non-typja comment", "typja: ignore")
	assert.Empty(t, diags)
	assert.True(t, scope.Ignored[2])
	assert.False(t, scope.Ignored[1])
}

func TestMalformedDirectiveIsIsolated(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t,
		"typja:frobnicate things",
		"typja:var ok: str",
		"typja:import 1bad",
	)
	require.Len(t, diags, 2)
	assert.Equal(t, diag.MalformedDirective, diags[0].Code)
	assert.Equal(t, 1, diags[0].Line)
	require.Contains(t, scope.Decls, "ok")
}

func TestMalformedTypeExpr(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t, "typja:var broken: dict[str")
	require.Len(t, diags, 1)
	assert.Equal(t, diag.MalformedTypeExpr, diags[0].Code)
	assert.NotContains(t, scope.Decls, "broken")
}

func TestRedeclarationLastWriteWins(t *testing.T) {
	t.Parallel()

	scope, diags := extract(t,
		"typja:var n: int",
		"typja:var n: str",
		"typja:var m: int",
		"typja:var m: int",
	)
	// Same-type redeclaration is silent; differing types warn.
	require.Len(t, diags, 1)
	assert.Equal(t, diag.DuplicateDecl, diags[0].Code)
	assert.Equal(t, diag.Warning, diags[0].Severity)
	assert.Equal(t, "str", scope.Decls["n"].Type.String())
	assert.Len(t, scope.AllDecls, 4)
}
