// Package config loads typja.toml, the project file that names the template
// and source roots and tunes severity and lint rules. Missing keys keep their
// defaults; a missing file means defaults relative to the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/typja/typja/internal/lint"
)

// FileName is the project file searched for upward from the working
// directory.
const FileName = "typja.toml"

// Project configures the source side of the check.
type Project struct {
	// Paths are the directories scanned for Python type definitions,
	// relative to the config root.
	Paths []string `toml:"paths"`

	// FailOnWarning makes warnings affect the exit status like errors.
	FailOnWarning bool `toml:"fail_on_warning"`

	// Strict escalates UndefinedVariable to an error.
	Strict bool `toml:"strict"`
}

// Environment configures template discovery.
type Environment struct {
	TemplateDirs    []string `toml:"template_dirs"`
	IncludePatterns []string `toml:"include_patterns"`
	ExcludePatterns []string `toml:"exclude_patterns"`
}

// Linting toggles individual lint rules.
type Linting struct {
	PreferUnionOperator     bool `toml:"prefer_union_operator"`
	NoUnusedImports         bool `toml:"no_unused_imports"`
	NoDuplicateDeclarations bool `toml:"no_duplicate_declarations"`
	SortedImports           bool `toml:"sorted_imports"`
	NoRedundantNone         bool `toml:"no_redundant_none"`
}

// Errors configures diagnostic rendering.
type Errors struct {
	ShowHints    bool   `toml:"show_hints"`
	ShowSnippets bool   `toml:"show_snippets"`
	Color        string `toml:"color"`
}

// Config is the loaded project file plus the directory it was found in.
type Config struct {
	Project     Project     `toml:"project"`
	Environment Environment `toml:"environment"`
	Linting     Linting     `toml:"linting"`
	Errors      Errors      `toml:"errors"`

	// Root is the directory containing the config file. Every relative
	// path in the file resolves against it.
	Root string `toml:"-"`
}

// Default returns the configuration used when no typja.toml exists.
func Default(root string) *Config {
	return &Config{
		Project: Project{
			Paths: []string{"."},
		},
		Environment: Environment{
			TemplateDirs:    []string{"templates"},
			IncludePatterns: []string{"*.html", "*.jinja", "*.j2", "*.jinja2"},
		},
		Linting: Linting{
			PreferUnionOperator:     true,
			NoUnusedImports:         true,
			NoDuplicateDeclarations: true,
			SortedImports:           true,
			NoRedundantNone:         true,
		},
		Errors: Errors{
			ShowHints:    true,
			ShowSnippets: true,
			Color:        "auto",
		},
		Root: root,
	}
}

// Load reads one config file. Defaults fill any key the file omits.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("loading %s: unknown key %q", path, undecoded[0].String())
	}
	if len(cfg.Project.Paths) == 0 {
		cfg.Project.Paths = []string{"."}
	}
	if len(cfg.Environment.TemplateDirs) == 0 {
		cfg.Environment.TemplateDirs = []string{"templates"}
	}
	if len(cfg.Environment.IncludePatterns) == 0 {
		cfg.Environment.IncludePatterns = Default("").Environment.IncludePatterns
	}
	switch cfg.Errors.Color {
	case "auto", "always", "never":
	case "":
		cfg.Errors.Color = "auto"
	default:
		return nil, fmt.Errorf("loading %s: errors.color must be auto, always or never, got %q", path, cfg.Errors.Color)
	}
	return cfg, nil
}

// Find walks upward from start looking for typja.toml. Returns the file path
// or "" when no config exists anywhere above start.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadFrom finds and loads the config governing dir, falling back to defaults
// rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		return Default(abs), nil
	}
	return Load(path)
}

// LintOptions maps the lint section onto the linter's rule switches.
func (c *Config) LintOptions() lint.Options {
	return lint.Options{
		PreferUnionOperator: c.Linting.PreferUnionOperator,
		FlagUnusedImports:   c.Linting.NoUnusedImports,
		FlagDuplicateDecls:  c.Linting.NoDuplicateDeclarations,
		FlagUnsortedImports: c.Linting.SortedImports,
		FlagRedundantNone:   c.Linting.NoRedundantNone,
	}
}
