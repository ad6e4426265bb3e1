package maincmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mna/mainer"

	"github.com/loxvm/lox/lang/compiler"
	"github.com/loxvm/lox/lang/machine"
	"github.com/loxvm/lox/lang/parser"
	"github.com/loxvm/lox/lang/token"
)

// RunFile compiles and executes the source file at path, or (with
// cfg.Dasm) prints its disassembly instead. It returns a non-nil error for
// either a compile diagnostic list or a runtime error; both are printed to
// stdio.Stderr before returning.
func RunFile(ctx context.Context, stdio mainer.Stdio, cfg Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, path, src)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	if cfg.Dasm {
		for i := range mod.Chunks {
			name := fmt.Sprintf("chunk %d", i)
			for _, cl := range mod.Closures {
				if cl.Chunk == i {
					name = cl.Name
					break
				}
			}
			compiler.Dasm(stdio.Stdout, mod, i, name)
		}
		return nil
	}

	vm := machine.NewVM()
	vm.Stdout = stdio.Stdout
	vm.Logger = newLogger(stdio.Stderr, cfg.LogLevel)
	defer vm.Close()

	name := filepath.Base(path)
	if _, err := vm.Interpret(ctx, mod, name, filepath.Dir(path)); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return nil
}
