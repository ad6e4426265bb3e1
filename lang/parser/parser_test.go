package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxvm/lox/lang/ast"
	"github.com/loxvm/lox/lang/parser"
	"github.com/loxvm/lox/lang/token"
)

func parse(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test", []byte(src))
	require.NoError(t, err)
	return chunk
}

func TestParseVarAndPrint(t *testing.T) {
	chunk := parse(t, `var x = 1 + 2; print x;`)
	require.Len(t, chunk.Stmts, 2)

	v, ok := chunk.Stmts[0].(*ast.VarStmt)
	require.True(t, ok)
	require.Equal(t, "x", v.Name.Lit)
	bin, ok := v.Init.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, token.PLUS, bin.Type)

	_, ok = chunk.Stmts[1].(*ast.PrintStmt)
	require.True(t, ok)
}

func TestParseIfElse(t *testing.T) {
	chunk := parse(t, `if (x) { print 1; } else { print 2; }`)
	require.Len(t, chunk.Stmts, 1)
	ifs, ok := chunk.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, ifs.Alt)
}

func TestParseForDesugarsToWhile(t *testing.T) {
	chunk := parse(t, `for (var i = 0; i < 3; i = i + 1) print i;`)
	require.Len(t, chunk.Stmts, 1)
	blk, ok := chunk.Stmts[0].(*ast.BlockStmt)
	require.True(t, ok)
	require.Len(t, blk.Stmts, 2)
	_, ok = blk.Stmts[0].(*ast.VarStmt)
	require.True(t, ok)
	while, ok := blk.Stmts[1].(*ast.WhileStmt)
	require.True(t, ok)
	body, ok := while.Body.(*ast.BlockStmt)
	require.True(t, ok)
	require.Len(t, body.Stmts, 2)
}

func TestParseFunctionAndClosureCall(t *testing.T) {
	chunk := parse(t, `fun mk() { var c = 0; fun inc() { c = c + 1; return c; } return inc; } var f = mk(); print f();`)
	require.Len(t, chunk.Stmts, 3)
	fn, ok := chunk.Stmts[0].(*ast.FunctionStmt)
	require.True(t, ok)
	require.Equal(t, "mk", fn.Name.Lit)
}

func TestParseClassWithSuperAndMethod(t *testing.T) {
	chunk := parse(t, `class A { f() { print "A"; } } class B < A { f() { super.f(); print "B"; } } B().f();`)
	require.Len(t, chunk.Stmts, 3)
	a, ok := chunk.Stmts[0].(*ast.ClassStmt)
	require.True(t, ok)
	require.Nil(t, a.Superclass)
	require.Len(t, a.Methods, 1)

	b, ok := chunk.Stmts[1].(*ast.ClassStmt)
	require.True(t, ok)
	require.NotNil(t, b.Superclass)
	require.Equal(t, "A", b.Superclass.Lit)
}

func TestParseListAndIndex(t *testing.T) {
	chunk := parse(t, `var xs = [1, 2, 3]; xs[0] = 9; print xs[0];`)
	require.Len(t, chunk.Stmts, 3)
	v := chunk.Stmts[0].(*ast.VarStmt)
	list, ok := v.Init.(*ast.ListExpr)
	require.True(t, ok)
	require.Len(t, list.Items, 3)

	set := chunk.Stmts[1].(*ast.ExprStmt)
	_, ok = set.Expr.(*ast.ListSetExpr)
	require.True(t, ok)
}

func TestParseImport(t *testing.T) {
	chunk := parse(t, `import "utils" for add, sub;`)
	require.Len(t, chunk.Stmts, 1)
	imp, ok := chunk.Stmts[0].(*ast.ImportStmt)
	require.True(t, ok)
	require.Equal(t, "utils", imp.Path.Value)
	require.Len(t, imp.For, 2)
}

func TestParseInvalidAssignTarget(t *testing.T) {
	fset := token.NewFileSet()
	_, err := parser.ParseChunk(fset, "test", []byte(`1 + 2 = 3;`))
	require.Error(t, err)
}
