package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func projectFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, root, "typja.toml", `
[project]
paths = ["models"]

[environment]
template_dirs = ["templates"]
`)
	writeFixture(t, root, "models/user.py", `
class User:
    name: str
    email: str | None
`)
	return root
}

func TestCheckReportsUnknownMember(t *testing.T) {
	t.Parallel()

	root := projectFixture(t)
	writeFixture(t, root, "templates/index.html",
		"{# typja:var user: User #}\n{{ user.name }}\n{{ user.nmae }}\n")

	var out, errBuf bytes.Buffer
	err := run([]string{"check", "--root", root, "--color", "never"}, &out, &errBuf)

	assert.ErrorIs(t, err, errIssuesFound)
	assert.Contains(t, out.String(), "templates/index.html")
	assert.Contains(t, out.String(), "unknown-member")
	assert.Contains(t, out.String(), `"nmae"`)
	assert.Contains(t, out.String(), "1 error")
}

func TestCheckCleanProject(t *testing.T) {
	t.Parallel()

	root := projectFixture(t)
	writeFixture(t, root, "templates/index.html",
		"{# typja:var user: User #}\n{{ user.name }}\n")

	var out, errBuf bytes.Buffer
	err := run([]string{"check", "--root", root, "--color", "never"}, &out, &errBuf)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "no problems in 1 template")
}

func TestCheckFailOnWarning(t *testing.T) {
	t.Parallel()

	root := projectFixture(t)
	writeFixture(t, root, "templates/index.html", "{{ mystery }}\n")

	var out, errBuf bytes.Buffer
	err := run([]string{"check", "--root", root, "--color", "never"}, &out, &errBuf)
	assert.NoError(t, err, "warnings alone keep exit status zero")

	err = run([]string{"check", "--root", root, "--color", "never", "--fail-on-warning"}, &out, &errBuf)
	assert.ErrorIs(t, err, errIssuesFound)
}

func TestCheckStrictEscalates(t *testing.T) {
	t.Parallel()

	root := projectFixture(t)
	writeFixture(t, root, "templates/index.html", "{{ mystery }}\n")

	var out, errBuf bytes.Buffer
	err := run([]string{"check", "--root", root, "--color", "never", "--strict"}, &out, &errBuf)
	assert.ErrorIs(t, err, errIssuesFound)
}

func TestCheckFixRewritesOptional(t *testing.T) {
	t.Parallel()

	root := projectFixture(t)
	tmplPath := "templates/index.html"
	writeFixture(t, root, tmplPath,
		"{# typja:var user: Optional[User] #}\n{% if user %}{{ user.name }}{% endif %}\n")

	var out, errBuf bytes.Buffer
	err := run([]string{"check", "--root", root, "--color", "never", "--fix"}, &out, &errBuf)
	require.NoError(t, err)

	fixed, rerr := os.ReadFile(filepath.Join(root, filepath.FromSlash(tmplPath)))
	require.NoError(t, rerr)
	assert.Contains(t, string(fixed), "typja:var user: User | None")
	assert.Contains(t, errBuf.String(), "applied 1 fix")
}

func TestInitWritesConfigOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var out, errBuf bytes.Buffer
	require.NoError(t, run([]string{"init", "--root", root}, &out, &errBuf))
	assert.FileExists(t, filepath.Join(root, "typja.toml"))

	err := run([]string{"init", "--root", root}, &out, &errBuf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestVersionFlag(t *testing.T) {
	t.Parallel()

	var out, errBuf bytes.Buffer
	require.NoError(t, run([]string{"--version"}, &out, &errBuf))
	assert.Contains(t, out.String(), "typja")
}
