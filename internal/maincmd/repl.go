package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/loxvm/lox/lang/compiler"
	"github.com/loxvm/lox/lang/machine"
	"github.com/loxvm/lox/lang/parser"
	"github.com/loxvm/lox/lang/token"
)

// REPL implements the CLI's no-argument mode: prompt "> ", read one line,
// exit on an empty line, otherwise interpret it and print any diagnostic,
// then repeat. A single VM (and a single session Import, so globals persist
// across lines) serves the whole session; a runtime error on one line does
// not end the session, matching §7's "VM itself reusable" policy.
func REPL(ctx context.Context, stdio mainer.Stdio, cfg Config) error {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}

	vm := machine.NewVM()
	vm.Stdout = stdio.Stdout
	vm.Logger = newLogger(stdio.Stderr, cfg.LogLevel)
	defer vm.Close()

	sess := vm.NewSession("repl", dir)
	scanner := bufio.NewScanner(stdio.Stdin)

	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			return nil
		}

		if err := interpretLine(ctx, stdio, vm, sess, line); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
}

func interpretLine(ctx context.Context, stdio mainer.Stdio, vm *machine.VM, sess *machine.Import, line string) error {
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "<repl>", []byte(line))
	if err != nil {
		return err
	}
	mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
	if err != nil {
		return err
	}
	_, err = vm.InterpretSession(ctx, sess, mod)
	return err
}
