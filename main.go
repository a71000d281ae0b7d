// typja statically checks Jinja-style templates against Python type
// declarations.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

var version = "dev"

// errIssuesFound signals a clean run that found diagnostics: exit 1, no
// error banner.
var errIssuesFound = errors.New("issues found")

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errIssuesFound):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var root struct {
		Version bool `short:"V" long:"version" description:"print version and exit"`
	}

	parser := flags.NewNamedParser("typja", flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "static type checker for Jinja-style templates"
	if _, err := parser.AddGroup("Application Options", "", &root); err != nil {
		return err
	}

	cmds := []struct {
		name, short, long string
		data              interface{}
	}{
		{"check", "check templates once",
			"Scan the configured sources, analyze every template and report diagnostics.",
			&checkCmd{stdout: stdout, stderr: stderr}},
		{"watch", "re-check templates on change",
			"Run check continuously, polling for file changes and re-analyzing only what changed.",
			&watchCmd{stdout: stdout, stderr: stderr}},
		{"init", "write a default typja.toml",
			"Create a typja.toml with the default project layout. Refuses to overwrite an existing file.",
			&initCmd{stdout: stdout}},
	}
	for _, c := range cmds {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			return err
		}
	}

	_, err := parser.ParseArgs(args)
	if root.Version {
		fmt.Fprintf(stdout, "typja %s\n", version)
		return nil
	}
	if err != nil {
		if flags.WroteHelp(err) {
			parser.WriteHelp(stdout)
			return nil
		}
		return err
	}
	return nil
}
