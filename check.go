package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/typja/typja/internal/analyzer"
	"github.com/typja/typja/internal/annot"
	"github.com/typja/typja/internal/cache"
	"github.com/typja/typja/internal/config"
	"github.com/typja/typja/internal/diag"
	"github.com/typja/typja/internal/discover"
	"github.com/typja/typja/internal/lint"
	"github.com/typja/typja/internal/pyscan"
	"github.com/typja/typja/internal/registry"
	"github.com/typja/typja/internal/report"
	"github.com/typja/typja/internal/template"
)

type checkCmd struct {
	Root          string `short:"r" long:"root" description:"directory to search for typja.toml" default:"."`
	Strict        bool   `long:"strict" description:"escalate undefined variables to errors"`
	Fix           bool   `long:"fix" description:"apply lint autofixes to template files"`
	FailOnWarning bool   `long:"fail-on-warning" description:"exit nonzero when warnings exist"`
	Color         string `long:"color" description:"colorize output" choice:"auto" choice:"always" choice:"never" default:"auto"`

	stdout, stderr io.Writer
}

func (c *checkCmd) Execute(args []string) error {
	cfg, err := config.LoadFrom(c.Root)
	if err != nil {
		return err
	}
	if c.Strict {
		cfg.Project.Strict = true
	}
	if c.FailOnWarning {
		cfg.Project.FailOnWarning = true
	}

	res, err := analyzeProject(cfg, nil)
	if err != nil {
		return err
	}

	if c.Fix {
		applied, deferred, err := applyFixes(cfg.Root, res)
		if err != nil {
			return err
		}
		if applied > 0 || deferred > 0 {
			noun := "fixes"
			if applied == 1 {
				noun = "fix"
			}
			fmt.Fprintf(c.stderr, "applied %d %s", applied, noun)
			if deferred > 0 {
				fmt.Fprintf(c.stderr, " (%d overlapping, re-run to apply)", deferred)
			}
			fmt.Fprintln(c.stderr)
		}
	}

	rep := newReporter(c.stdout, c.Color, cfg)
	rep.Print(res.diags, res.templateSources)
	rep.Summary(res.diags, res.templateCount)

	if res.diags.HasErrors() || cfg.Project.FailOnWarning && res.diags.HasWarnings() {
		return errIssuesFound
	}
	return nil
}

// newReporter builds the console reporter from the [errors] config section.
// A --color flag other than auto overrides the configured mode.
func newReporter(out io.Writer, flagColor string, cfg *config.Config) *report.Reporter {
	mode := cfg.Errors.Color
	if flagColor != "auto" {
		mode = flagColor
	}
	rep := report.New(out, mode)
	rep.ShowHints = cfg.Errors.ShowHints
	rep.ShowSnippets = cfg.Errors.ShowSnippets
	return rep
}

// runResult is one full analysis pass over the project.
type runResult struct {
	diags           diag.List
	templateSources map[string][]byte
	templateCount   int
}

// analyzeProject runs the scan-then-merge pipeline: sources are parsed into
// one read-only global table, then every template is analyzed in parallel
// against it. A non-nil cache skips templates whose content and source
// fingerprint are unchanged.
func analyzeProject(cfg *config.Config, c *cache.Cache) (*runResult, error) {
	found, err := discover.Files(cfg)
	if err != nil {
		return nil, err
	}

	var all diag.List

	files := make([]pyscan.File, 0, len(found.Sources))
	srcPaths := make([]string, 0, len(found.Sources))
	srcContents := make([][]byte, 0, len(found.Sources))
	for _, s := range found.Sources {
		data, err := os.ReadFile(filepath.Join(cfg.Root, filepath.FromSlash(s.Path)))
		if err != nil {
			all = append(all, diag.Diagnostic{
				Severity: diag.Error,
				Code:     diag.ParseFailure,
				File:     s.Path,
				Line:     1,
				Message:  fmt.Sprintf("cannot read source file: %v", err),
			})
			continue
		}
		files = append(files, pyscan.File{Path: s.Path, Module: s.Module, Source: data})
		srcPaths = append(srcPaths, s.Path)
		srcContents = append(srcContents, data)
	}

	table, scanDiags := pyscan.Scan(files)
	all = append(all, scanDiags...)

	if c != nil {
		c.SetSourceFingerprint(cache.Fingerprint(srcPaths, srcContents))
	}

	perTemplate := make([]diag.List, len(found.Templates))
	sources := make([][]byte, len(found.Templates))
	var mu sync.Mutex
	var readFailures diag.List

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range found.Templates {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(cfg.Root, filepath.FromSlash(path)))
			if err != nil {
				mu.Lock()
				readFailures = append(readFailures, diag.Diagnostic{
					Severity: diag.Error,
					Code:     diag.ParseFailure,
					File:     path,
					Line:     1,
					Message:  fmt.Sprintf("cannot read template: %v", err),
				})
				mu.Unlock()
				return nil
			}
			sources[i] = data

			sum := cache.Sum(data)
			if c != nil {
				if cached, ok := c.Get(path, sum); ok {
					perTemplate[i] = cached
					return nil
				}
			}

			perTemplate[i] = checkTemplate(data, path, table, cfg)
			if c != nil {
				c.Put(path, sum, perTemplate[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all = append(all, readFailures...)
	for _, d := range perTemplate {
		all = append(all, d...)
	}
	all.Sort()

	srcMap := make(map[string][]byte, len(found.Templates))
	for i, path := range found.Templates {
		if sources[i] != nil {
			srcMap[path] = sources[i]
		}
	}
	return &runResult{
		diags:           all,
		templateSources: srcMap,
		templateCount:   len(found.Templates),
	}, nil
}

// checkTemplate runs the per-template chain: tokenize, extract annotations,
// resolve against the global table, analyze, lint.
func checkTemplate(data []byte, path string, table *pyscan.Table, cfg *config.Config) diag.List {
	tmpl, diags := template.Parse(data, path)

	scope, adiags := annot.Extract(tmpl.Comments, path)
	diags = append(diags, adiags...)

	rscope := registry.NewScope(scope, table)
	diags = append(diags, analyzer.Analyze(tmpl, rscope, path, analyzer.Options{
		Strict: cfg.Project.Strict,
	})...)
	diags = append(diags, cfg.LintOptions().Run(data, scope, path)...)

	diags.Sort()
	return diags
}

// applyFixes rewrites template files with the non-overlapping fix subset of
// their diagnostics.
func applyFixes(root string, res *runResult) (applied, deferred int, err error) {
	byFile := map[string]diag.List{}
	for _, d := range res.diags {
		if d.Fix != nil {
			byFile[d.File] = append(byFile[d.File], d)
		}
	}

	for file, diags := range byFile {
		source, ok := res.templateSources[file]
		if !ok {
			continue
		}
		fixes, skipped := lint.SelectFixes(diags)
		deferred += skipped
		if len(fixes) == 0 {
			continue
		}
		fixed := lint.Apply(source, fixes)
		path := filepath.Join(root, filepath.FromSlash(file))
		if werr := os.WriteFile(path, fixed, 0o644); werr != nil {
			return applied, deferred, fmt.Errorf("applying fixes to %s: %w", file, werr)
		}
		applied += len(fixes)
	}
	return applied, deferred, nil
}
