package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/typja/typja/internal/config"
)

type initCmd struct {
	Root string `short:"r" long:"root" description:"directory to write typja.toml into" default:"."`

	stdout io.Writer
}

const defaultConfig = `# typja configuration

[project]
# Directories scanned for Python type definitions, relative to this file.
paths = ["."]
# Treat warnings like errors for the exit status.
fail_on_warning = false
# Escalate undefined template variables to errors.
strict = false

[environment]
template_dirs = ["templates"]
include_patterns = ["*.html", "*.jinja", "*.j2", "*.jinja2"]
exclude_patterns = []

[linting]
prefer_union_operator = true
no_unused_imports = true
no_duplicate_declarations = true
sorted_imports = true
no_redundant_none = true

[errors]
show_hints = true
show_snippets = true
# auto, always or never
color = "auto"
`

// Execute writes the default config. An existing typja.toml is never
// overwritten.
func (c *initCmd) Execute(args []string) error {
	path := filepath.Join(c.Root, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(c.stdout, "wrote %s\n", path)
	return nil
}
