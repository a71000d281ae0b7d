package pyscan

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/typja/typja/internal/diag"
)

// File is one source file handed to the scanner: a root-relative,
// slash-separated path and its raw bytes. All I/O happens before the scan.
// Module overrides the dotted module path derived from Path, for projects
// whose import roots are not the project root.
type File struct {
	Path   string
	Module string
	Source []byte
}

// Scan parses every file concurrently and merges the per-file results into
// one global table. Each worker owns its parser (tree-sitter parsers are not
// thread-safe); merging is single-threaded so bare-name collisions are
// detected over a consistent view. A file that fails to parse contributes a
// ParseFailure diagnostic and whatever definitions were still recoverable;
// it never stops the scan of other files.
func Scan(files []File) (*Table, diag.List) {
	type result struct {
		defs  []*TypeDef
		diags diag.List
	}
	results := make([]result, len(files))

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			parser := sitter.NewParser()
			parser.SetLanguage(python.GetLanguage())

			for idx := range work {
				f := files[idx]
				defs, diags := scanOne(parser, f)
				results[idx] = result{defs: defs, diags: diags}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)
	wg.Wait()

	// Merge private tables in input order so output is deterministic.
	var all []*TypeDef
	var diags diag.List
	for _, r := range results {
		all = append(all, r.defs...)
		diags = append(diags, r.diags...)
	}
	return NewTable(all), diags
}

func scanOne(parser *sitter.Parser, f File) ([]*TypeDef, diag.List) {
	tree, err := parser.ParseCtx(context.Background(), nil, f.Source)
	if err != nil {
		return nil, diag.List{{
			Severity: diag.Error,
			Code:     diag.ParseFailure,
			File:     f.Path,
			Line:     1,
			Message:  fmt.Sprintf("failed to parse: %v", err),
		}}
	}
	defer tree.Close()

	root := tree.RootNode()

	var diags diag.List
	if root.HasError() {
		line := 1
		if n := firstErrorNode(root); n != nil {
			line = int(n.StartPoint().Row) + 1
		}
		diags = append(diags, diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.ParseFailure,
			File:     f.Path,
			Line:     line,
			Message:  "syntax error in source file",
		})
	}

	module := f.Module
	if module == "" {
		module = ModulePath(f.Path)
	}
	defs := extractFile(root, f.Source, module, f.Path)
	return defs, diags
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if !node.Child(i).HasError() {
			continue
		}
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
