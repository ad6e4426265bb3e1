package machine_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxvm/lox/lang/compiler"
	"github.com/loxvm/lox/lang/machine"
	"github.com/loxvm/lox/lang/parser"
	"github.com/loxvm/lox/lang/token"
)

func run(t *testing.T, src string) string {
	t.Helper()
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test", []byte(src))
	require.NoError(t, err)
	mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
	require.NoError(t, err)

	var out bytes.Buffer
	vm := machine.NewVM()
	vm.Stdout = &out
	defer vm.Close()

	_, err = vm.Interpret(context.Background(), mod, "test", ".")
	require.NoError(t, err)
	return out.String()
}

func TestInterpretArithmeticPrint(t *testing.T) {
	require.Equal(t, "3\n", run(t, `print 1 + 2;`))
}

func TestInterpretShadowedBlockScope(t *testing.T) {
	out := run(t, `
		var a = "outer";
		{
			var a = "inner";
			print a;
		}
		print a;
	`)
	require.Equal(t, "inner\nouter\n", out)
}

func TestInterpretClosureCounter(t *testing.T) {
	out := run(t, `
		fun makeCounter() {
			var count = 0;
			fun counter() {
				count = count + 1;
				print count;
			}
			return counter;
		}
		var c = makeCounter();
		c();
		c();
		c();
	`)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestInterpretClassInitAndMethod(t *testing.T) {
	out := run(t, `
		class Greeter {
			init(who) {
				this.who = who;
			}
			greet() {
				print this.who;
			}
		}
		var g = Greeter("world");
		g.greet();
	`)
	require.Equal(t, "world\n", out)
}

func TestInterpretForLoop(t *testing.T) {
	out := run(t, `for (var i = 0; i < 3; i = i + 1) print i;`)
	require.Equal(t, "0\n1\n2\n", out)
}

func TestInterpretSingleInheritanceSuper(t *testing.T) {
	out := run(t, `
		class A {
			f() {
				print "A";
			}
		}
		class B < A {
			f() {
				super.f();
				print "B";
			}
		}
		B().f();
	`)
	require.Equal(t, "A\nB\n", out)
}

func TestInterpretListIndexing(t *testing.T) {
	out := run(t, `
		var xs = [1, 2, 3];
		xs[1] = 9;
		print xs[0];
		print xs[1];
		print xs[2];
	`)
	require.Equal(t, "1\n9\n3\n", out)
}

func TestInterpretUndefinedGlobalIsRuntimeError(t *testing.T) {
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test", []byte(`print nope;`))
	require.NoError(t, err)
	mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
	require.NoError(t, err)

	vm := machine.NewVM()
	defer vm.Close()
	_, err = vm.Interpret(context.Background(), mod, "test", ".")
	require.Error(t, err)
}

func TestInterpretSessionPersistsGlobalsAcrossLines(t *testing.T) {
	fset := token.NewFileSet()
	compile := func(src string) *compiler.Module {
		chunk, err := parser.ParseChunk(fset, "repl", []byte(src))
		require.NoError(t, err)
		mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
		require.NoError(t, err)
		return mod
	}

	var out bytes.Buffer
	vm := machine.NewVM()
	vm.Stdout = &out
	defer vm.Close()

	sess := vm.NewSession("repl", ".")
	_, err := vm.InterpretSession(context.Background(), sess, compile(`var x = 1;`))
	require.NoError(t, err)
	_, err = vm.InterpretSession(context.Background(), sess, compile(`x = x + 1; print x;`))
	require.NoError(t, err)

	require.Equal(t, "2\n", out.String())
}
