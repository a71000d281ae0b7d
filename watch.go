package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/typja/typja/internal/cache"
	"github.com/typja/typja/internal/config"
	"github.com/typja/typja/internal/discover"
)

type watchCmd struct {
	Root     string        `short:"r" long:"root" description:"directory to search for typja.toml" default:"."`
	Strict   bool          `long:"strict" description:"escalate undefined variables to errors"`
	Color    string        `long:"color" description:"colorize output" choice:"auto" choice:"always" choice:"never" default:"auto"`
	Interval time.Duration `long:"interval" description:"poll interval" default:"2s"`

	stdout, stderr io.Writer
}

// Execute polls file modification times and re-runs the check when anything
// under the configured roots changes. A change arriving mid-analysis is
// picked up on the next tick; the in-flight pass completes and its stale
// output is simply superseded.
func (w *watchCmd) Execute(args []string) error {
	cfg, err := config.LoadFrom(w.Root)
	if err != nil {
		return err
	}
	if w.Strict {
		cfg.Project.Strict = true
	}

	c := cache.New()
	var lastStamp string

	fmt.Fprintf(w.stderr, "watching %s (interval %s)\n", cfg.Root, w.Interval)

	for {
		stamp, err := snapshot(cfg)
		if err != nil {
			return err
		}
		if stamp != lastStamp {
			lastStamp = stamp
			if err := w.runOnce(cfg, c); err != nil {
				return err
			}
		}
		time.Sleep(w.Interval)
	}
}

func (w *watchCmd) runOnce(cfg *config.Config, c *cache.Cache) error {
	res, err := analyzeProject(cfg, c)
	if err != nil {
		return err
	}

	fmt.Fprintf(w.stderr, "[%s] checked %d templates\n", time.Now().Format("15:04:05"), res.templateCount)
	rep := newReporter(w.stdout, w.Color, cfg)
	rep.Print(res.diags, res.templateSources)
	rep.Summary(res.diags, res.templateCount)
	return nil
}

// snapshot summarizes the watched file set and its modification times. Any
// difference in the rendered string means something changed: content, a new
// file, or a deletion.
func snapshot(cfg *config.Config) (string, error) {
	found, err := discover.Files(cfg)
	if err != nil {
		return "", err
	}

	out := ""
	stat := func(rel string) {
		info, err := os.Stat(filepath.Join(cfg.Root, filepath.FromSlash(rel)))
		if err != nil {
			out += rel + ":gone;"
			return
		}
		out += fmt.Sprintf("%s:%d:%d;", rel, info.Size(), info.ModTime().UnixNano())
	}
	for _, t := range found.Templates {
		stat(t)
	}
	for _, s := range found.Sources {
		stat(s.Path)
	}
	return out, nil
}
