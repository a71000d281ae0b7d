package typeexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr string
		kind Kind
		name string
	}{
		{"str", KindPrimitive, "str"},
		{"int", KindPrimitive, "int"},
		{"User", KindNamed, "User"},
		{"models.user.User", KindNamed, "models.user.User"},
		{"None", KindNone, "None"},
		{"Any", KindAny, "Any"},
		{"list", KindUnknown, "list"},
		{"dict", KindUnknown, "dict"},
	}
	for _, tc := range cases {
		d, err := Parse(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.kind, d.Kind, tc.expr)
		assert.Equal(t, tc.name, d.Name, tc.expr)
	}
}

func TestParseGeneric(t *testing.T) {
	t.Parallel()

	d, err := Parse("dict[str, list[User]]")
	require.NoError(t, err)
	require.Equal(t, KindGeneric, d.Kind)
	assert.Equal(t, "dict", d.Name)
	require.Len(t, d.Args, 2)
	assert.Equal(t, KindPrimitive, d.Args[0].Kind)
	require.Equal(t, KindGeneric, d.Args[1].Kind)
	assert.Equal(t, "User", d.Args[1].Args[0].Name)
}

func TestOptionalAndUnionCanonicalize(t *testing.T) {
	t.Parallel()

	// Both surface forms must produce structurally equal descriptors.
	a, err := Parse("Optional[str]")
	require.NoError(t, err)
	b, err := Parse("str | None")
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "Optional[str] != str | None")
	assert.Equal(t, "str | None", a.String())
	assert.Equal(t, "str | None", b.String())

	c, err := Parse("Union[int, str, None]")
	require.NoError(t, err)
	d, err := Parse("int | str | None")
	require.NoError(t, err)
	assert.True(t, c.Equal(d))
	require.Equal(t, KindOptional, c.Kind)
	assert.Equal(t, KindUnion, c.Elem.Kind)
}

func TestUnionFlattensAndDedupes(t *testing.T) {
	t.Parallel()

	d, err := Parse("int | str | int")
	require.NoError(t, err)
	require.Equal(t, KindUnion, d.Kind)
	assert.Len(t, d.Args, 2)

	nested, err := Parse("Union[int, Union[str, bytes]]")
	require.NoError(t, err)
	require.Equal(t, KindUnion, nested.Kind)
	assert.Len(t, nested.Args, 3)
}

func TestDoubleOptionalCollapses(t *testing.T) {
	t.Parallel()

	a, err := Parse("Optional[Optional[str]]")
	require.NoError(t, err)
	b, err := Parse("str | None")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestParseCallableParamList(t *testing.T) {
	t.Parallel()

	d, err := Parse("Callable[[int, str], bool]")
	require.NoError(t, err)
	require.Equal(t, KindGeneric, d.Kind)
	assert.Equal(t, "Callable", d.Name)
	require.Len(t, d.Args, 2)
	params := d.Args[0]
	require.Equal(t, KindGeneric, params.Kind)
	assert.Empty(t, params.Name)
	assert.Len(t, params.Args, 2)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"dict[str",
		"dict[str]]",
		"list[]",
		"foo bar",
		"1User",
		"User.",
		"|int",
		"Optional[int, str]",
	}
	for _, expr := range cases {
		_, err := Parse(expr)
		assert.Error(t, err, "expected error for %q", expr)
	}
}

func TestParseErrorOffset(t *testing.T) {
	t.Parallel()

	_, err := Parse("dict[str, 1bad]")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "1bad", pe.Expr)
}

func TestStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"str",
		"models.User",
		"dict[str, int]",
		"int | str",
		"list[User] | None",
	} {
		d, err := Parse(expr)
		require.NoError(t, err)
		back, err := Parse(d.String())
		require.NoError(t, err, d.String())
		assert.True(t, d.Equal(back), "round trip changed %q", expr)
	}
}
