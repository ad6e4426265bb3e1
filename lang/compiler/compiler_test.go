package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxvm/lox/lang/compiler"
	"github.com/loxvm/lox/lang/parser"
	"github.com/loxvm/lox/lang/token"
)

func compile(t *testing.T, src string) *compiler.Module {
	t.Helper()
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test", []byte(src))
	require.NoError(t, err)
	mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
	require.NoError(t, err)
	return mod
}

func TestCompileArithmeticConstantPool(t *testing.T) {
	mod := compile(t, `print 1 + 2;`)
	require.Len(t, mod.Chunks, 1)
	require.Contains(t, mod.Numbers, 1.0)
	require.Contains(t, mod.Numbers, 2.0)

	code := mod.Chunks[0].Code
	require.Equal(t, byte(compiler.OpNumber), code[0])
	require.Equal(t, byte(compiler.OpPrint), code[len(code)-2])
	require.Equal(t, byte(compiler.OpReturnTop), code[len(code)-1])
}

func TestCompileGlobalVar(t *testing.T) {
	mod := compile(t, `var x = 3; print x;`)
	require.Contains(t, mod.Idents, "x")
	require.Contains(t, mod.Chunks[0].Code, byte(compiler.OpDefineGlobal))
	require.Contains(t, mod.Chunks[0].Code, byte(compiler.OpGetGlobal))
}

func TestCompileBlockScopePop(t *testing.T) {
	mod := compile(t, `{ var a = 1; var b = 2; }`)
	code := mod.Chunks[0].Code
	var pops int
	for _, b := range code {
		if compiler.Op(b) == compiler.OpPop {
			pops++
		}
	}
	require.GreaterOrEqual(t, pops, 2)
}

func TestCompileClosureUpvalue(t *testing.T) {
	mod := compile(t, `fun mk() { var c = 0; fun inc() { c = c + 1; return c; } return inc; }`)
	require.Len(t, mod.Closures, 2)
	inner := mod.Closures[0]
	require.Equal(t, "inc", inner.Name)
	require.Len(t, inner.Upvalues, 1)
	require.Equal(t, compiler.UpvalueLocal, inner.Upvalues[0].Source)
}

func TestCompileClassWithSuper(t *testing.T) {
	mod := compile(t, `class A { f() { print "A"; } } class B < A { f() { super.f(); } }`)
	require.Len(t, mod.Classes, 2)
	require.Equal(t, "A", mod.Classes[0].Name)
	require.Equal(t, "B", mod.Classes[1].Name)

	code := mod.Chunks[0].Code
	require.Contains(t, code, byte(compiler.OpInherit))
}

func TestCompileForDesugaredLoop(t *testing.T) {
	mod := compile(t, `for (var i = 0; i < 3; i = i + 1) print i;`)
	code := mod.Chunks[0].Code
	require.Contains(t, code, byte(compiler.OpJumpIfFalse))
	require.Contains(t, code, byte(compiler.OpJump))
}

func TestCompileReturnOutsideFunctionIsDiagnostic(t *testing.T) {
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test", []byte(`return 1;`))
	require.NoError(t, err)
	_, err = compiler.Compile(fset.File(chunk.EOF), chunk)
	require.Error(t, err)
}

func TestCompileListLiteralAndIndex(t *testing.T) {
	mod := compile(t, `var xs = [1, 2, 3]; xs[0] = 9;`)
	code := mod.Chunks[0].Code
	require.Contains(t, code, byte(compiler.OpNewList))
	require.Contains(t, code, byte(compiler.OpIndexSet))
}

func TestCompileImportWithFor(t *testing.T) {
	mod := compile(t, `import "utils" for add;`)
	require.Contains(t, mod.Strings, "utils")
	require.Contains(t, mod.Idents, "add")
	code := mod.Chunks[0].Code
	require.Contains(t, code, byte(compiler.OpImport))
	require.Contains(t, code, byte(compiler.OpImportGlobal))
}

func TestModuleValidateRejectsBadChunkIndex(t *testing.T) {
	mod := compiler.NewModule()
	mod.AddChunk()
	mod.AddClosure(compiler.ClosureInfo{Name: "bad", Chunk: 5})
	require.Error(t, mod.Validate())
}
