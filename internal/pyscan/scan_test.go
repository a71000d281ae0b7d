package pyscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typja/typja/internal/typeexpr"
)

const userSource = `
class User:
    id: int
    name: str
    email: str | None

    def greet(self) -> str:
        return "hi " + self.name


class Admin(User):
    level: int
`

func TestScanClassMembers(t *testing.T) {
	t.Parallel()

	table, diags := Scan([]File{{Path: "models/user.py", Source: []byte(userSource)}})
	assert.Empty(t, diags)

	user, ok := table.Lookup("models.user.User")
	require.True(t, ok)
	assert.Equal(t, KindClass, user.Kind)

	name, ok := user.Members["name"]
	require.True(t, ok)
	assert.Equal(t, "str", name.Type.String())
	assert.False(t, name.Callable)

	email := user.Members["email"]
	assert.Equal(t, typeexpr.KindOptional, email.Type.Kind)

	greet, ok := user.Members["greet"]
	require.True(t, ok)
	assert.True(t, greet.Callable)
	assert.Equal(t, "str", greet.Type.String())

	admin, ok := table.Lookup("models.user.Admin")
	require.True(t, ok)
	assert.Equal(t, []string{"User"}, admin.Bases)
	_, own := admin.Members["level"]
	assert.True(t, own)
	_, inherited := admin.Members["name"]
	assert.False(t, inherited, "bases must not be flattened at scan time")
}

func TestScanInitFields(t *testing.T) {
	t.Parallel()

	src := `
class Point:
    def __init__(self, x: int, y: int, label=None):
        self.x = x
        self.y = y
        self.color = "red"
`
	table, diags := Scan([]File{{Path: "geo.py", Source: []byte(src)}})
	assert.Empty(t, diags)

	point, ok := table.Lookup("geo.Point")
	require.True(t, ok)
	assert.Equal(t, "int", point.Members["x"].Type.String())
	assert.Equal(t, typeexpr.KindAny, point.Members["label"].Type.Kind)
	assert.Equal(t, typeexpr.KindAny, point.Members["color"].Type.Kind)
}

func TestScanEnum(t *testing.T) {
	t.Parallel()

	src := `
from enum import Enum

class Role(Enum):
    ADMIN = "admin"
    VIEWER = "viewer"
    _internal = 0
`
	table, _ := Scan([]File{{Path: "models/role.py", Source: []byte(src)}})

	role, ok := table.Lookup("models.role.Role")
	require.True(t, ok)
	assert.Equal(t, KindEnum, role.Kind)
	assert.Contains(t, role.Members, "ADMIN")
	assert.Contains(t, role.Members, "VIEWER")
	assert.NotContains(t, role.Members, "_internal")
}

func TestScanAliasAndCallable(t *testing.T) {
	t.Parallel()

	src := `
UserId = int
Rows = list[dict[str, int]]
MAX_SIZE = 100

def render_price(value: float) -> str:
    return str(value)
`
	table, _ := Scan([]File{{Path: "util.py", Source: []byte(src)}})

	alias, ok := table.Lookup("util.UserId")
	require.True(t, ok)
	assert.Equal(t, KindAlias, alias.Kind)
	assert.Equal(t, "int", alias.Aliased.String())

	rows, ok := table.Lookup("util.Rows")
	require.True(t, ok)
	assert.Equal(t, "list[dict[str, int]]", rows.Aliased.String())

	_, ok = table.Lookup("util.MAX_SIZE")
	assert.False(t, ok, "integer constants are not aliases")

	fn, ok := table.Lookup("util.render_price")
	require.True(t, ok)
	assert.Equal(t, KindCallable, fn.Kind)
}

func TestScanAmbiguousBareName(t *testing.T) {
	t.Parallel()

	a := `
class User:
    name: str
`
	b := `
class User:
    login: str
`
	table, diags := Scan([]File{
		{Path: "accounts.py", Source: []byte(a)},
		{Path: "billing.py", Source: []byte(b)},
	})
	assert.Empty(t, diags)

	candidates := table.Candidates("User")
	assert.Equal(t, []string{"accounts.User", "billing.User"}, candidates)
}

func TestScanNestedClass(t *testing.T) {
	t.Parallel()

	src := `
class Outer:
    label: str

    class Inner:
        depth: int
`
	table, diags := Scan([]File{{Path: "shapes.py", Source: []byte(src)}})
	assert.Empty(t, diags)

	outer, ok := table.Lookup("shapes.Outer")
	require.True(t, ok)
	assert.Contains(t, outer.Members, "label")

	inner, ok := table.Lookup("shapes.Inner")
	require.True(t, ok)
	assert.Contains(t, inner.Members, "depth")
}

func TestScanParseFailureIsIsolated(t *testing.T) {
	t.Parallel()

	table, diags := Scan([]File{
		{Path: "broken.py", Source: []byte("class 12 oops(:")},
		{Path: "ok.py", Source: []byte("class Fine:\n    x: int\n")},
	})

	require.NotEmpty(t, diags)
	assert.Equal(t, "broken.py", diags[0].File)

	_, ok := table.Lookup("ok.Fine")
	assert.True(t, ok, "a broken file must not stop the scan of others")
}

func TestModulePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "models.user", ModulePath("models/user.py"))
	assert.Equal(t, "models", ModulePath("models/__init__.py"))
	assert.Equal(t, "app", ModulePath("app.py"))
}
