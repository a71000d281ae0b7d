// Package discover finds the template and Python source files a check run
// operates on, honoring .gitignore and the configured exclude patterns.
package discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/typja/typja/internal/config"
)

// Source is one Python file: its config-root-relative path (for diagnostics)
// and the dotted module path derived from its import root.
type Source struct {
	Path   string
	Module string
}

// Result is the discovered input set, both slices sorted by path.
type Result struct {
	Templates []string
	Sources   []Source
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Files walks the configured template and source roots.
func Files(cfg *config.Config) (*Result, error) {
	excl := compileExcludes(cfg)
	gi := loadGitignore(cfg.Root)

	res := &Result{}
	seenTemplates := map[string]bool{}
	seenSources := map[string]bool{}

	for _, dir := range cfg.Environment.TemplateDirs {
		err := walkFiles(cfg.Root, dir, gi, excl, func(rel string) {
			if !matchAny(cfg.Environment.IncludePatterns, rel) || seenTemplates[rel] {
				return
			}
			seenTemplates[rel] = true
			res.Templates = append(res.Templates, rel)
		})
		if err != nil {
			return nil, err
		}
	}

	for _, root := range cfg.Project.Paths {
		importRoot := filepath.ToSlash(filepath.Clean(root))
		err := walkFiles(cfg.Root, root, gi, excl, func(rel string) {
			if !strings.HasSuffix(rel, ".py") || seenSources[rel] {
				return
			}
			seenSources[rel] = true
			res.Sources = append(res.Sources, Source{
				Path:   rel,
				Module: moduleFor(importRoot, rel),
			})
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(res.Templates)
	sort.Slice(res.Sources, func(i, j int) bool { return res.Sources[i].Path < res.Sources[j].Path })
	return res, nil
}

// walkFiles visits regular files under base/dir, calling fn with paths
// relative to base, slash-separated. A missing directory is not an error; it
// just contributes nothing.
func walkFiles(base, dir string, gi, excl *ignore.GitIgnore, fn func(rel string)) error {
	start := filepath.Join(base, dir)
	if info, err := os.Stat(start); err != nil || !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if path == start {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if excl != nil && excl.MatchesPath(rel) {
			return nil
		}
		fn(rel)
		return nil
	})
}

// moduleFor derives the dotted module path of a source file relative to its
// import root.
func moduleFor(importRoot, rel string) string {
	inner := rel
	if importRoot != "." && strings.HasPrefix(rel, importRoot+"/") {
		inner = rel[len(importRoot)+1:]
	}
	return modulePath(inner)
}

func modulePath(rel string) string {
	rel = strings.TrimSuffix(rel, ".py")
	parts := strings.Split(rel, "/")
	if n := len(parts); n > 0 && parts[n-1] == "__init__" {
		parts = parts[:n-1]
	}
	return strings.Join(parts, ".")
}

// compileExcludes turns the config's exclude patterns into a gitignore-style
// matcher, which supports both bare globs and directory prefixes.
func compileExcludes(cfg *config.Config) *ignore.GitIgnore {
	if len(cfg.Environment.ExcludePatterns) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(cfg.Environment.ExcludePatterns...)
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// matchAny reports whether the file's base name matches one of the include
// patterns.
func matchAny(patterns []string, rel string) bool {
	base := filepath.Base(rel)
	for _, p := range patterns {
		if ok, err := filepath.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}
