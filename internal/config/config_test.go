package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := write(t, dir, FileName, `
[project]
paths = ["models", "schemas"]
fail_on_warning = true

[environment]
template_dirs = ["views"]

[linting]
prefer_union_operator = false

[errors]
show_snippets = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"models", "schemas"}, cfg.Project.Paths)
	assert.True(t, cfg.Project.FailOnWarning)
	assert.False(t, cfg.Project.Strict)
	assert.Equal(t, []string{"views"}, cfg.Environment.TemplateDirs)

	// Untouched keys keep defaults.
	assert.Contains(t, cfg.Environment.IncludePatterns, "*.html")
	opts := cfg.LintOptions()
	assert.False(t, opts.PreferUnionOperator)
	assert.True(t, opts.FlagUnusedImports)
	assert.True(t, opts.FlagUnsortedImports)
	assert.True(t, opts.FlagRedundantNone)

	assert.False(t, cfg.Errors.ShowSnippets)
	assert.True(t, cfg.Errors.ShowHints)
	assert.Equal(t, "auto", cfg.Errors.Color)

	assert.Equal(t, dir, cfg.Root)
}

func TestLoadRejectsBadColorMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := write(t, dir, FileName, "[errors]\ncolor = \"rainbow\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "errors.color")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := write(t, dir, FileName, "[project]\npath = [\"typo\"]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestFindWalksUpward(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, root, FileName, "[project]\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), found)
}

func TestLoadFromFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"."}, cfg.Project.Paths)
	assert.Equal(t, []string{"templates"}, cfg.Environment.TemplateDirs)
}
