// Package maincmd wires the lox command-line front end: flag parsing,
// environment-variable overrides, signal-driven shutdown and the dispatch
// between running a source file and entering the REPL. It mirrors the
// teacher repository's own maincmd package shape, generalized from a
// multi-subcommand compiler front end to a single run-or-REPL entry point.
package maincmd

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/mna/mainer"
)

const binName = "lox"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and virtual machine for the %[1]s programming language.

When <path> is given, it is compiled and executed. Otherwise %[1]s starts a
REPL: each line read from stdin is interpreted immediately, printing its own
diagnostics and continuing on error; an empty line exits.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --dasm                    Print the compiled module's disassembly
                                 instead of executing it.
       --log-level               One of debug, info, warn, error (default
                                 info). May also be set via LOX_LOG_LEVEL.

More information on the %[1]s repository:
       https://github.com/loxvm/lox
`, binName)
)

// Cmd is the top-level command, decoded from os.Args by mainer.Parser. Its
// shape (exported bool/string fields tagged with "flag") is the same
// convention the teacher's own Cmd uses.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Dasm     bool   `flag:"dasm"`
	LogLevel string `flag:"log-level"`

	args []string
}

func (c *Cmd) SetArgs(args []string) { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return fmt.Errorf("at most one source file path may be given, got %d", len(c.args))
	}
	return nil
}

// Main parses args, handles --help/--version, and otherwise runs the
// resolved Config's file-or-REPL mode until completion or a SIGINT/SIGTERM.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: "LOX_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	cfg, err := loadConfig(c)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid configuration: %s\n", err)
		return mainer.InvalidArgs
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt, syscall.SIGTERM)

	if len(c.args) == 1 {
		if err := RunFile(ctx, stdio, cfg, c.args[0]); err != nil {
			return mainer.Failure
		}
		return mainer.Success
	}
	if err := REPL(ctx, stdio, cfg); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}
