package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loxvm/lox/lang/scanner"
	"github.com/loxvm/lox/lang/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, []token.Value) {
	t.Helper()
	fs := token.NewFileSet()
	f := fs.AddFile("test", -1, len(src))

	var s scanner.Scanner
	var el scanner.ErrorList
	s.Init(f, []byte(src), el.Add)

	var toks []token.Token
	var vals []token.Value
	for {
		var v token.Value
		tok := s.Scan(&v)
		toks = append(toks, tok)
		vals = append(vals, v)
		if tok == token.EOF {
			break
		}
	}
	require.NoError(t, el.Err())
	return toks, vals
}

func TestScanPunctuationAndKeywords(t *testing.T) {
	toks, _ := scanAll(t, `var x = 1 + 2; print x; // trailing comment`)
	want := []token.Token{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.PLUS, token.NUMBER, token.SEMI,
		token.PRINT, token.IDENT, token.SEMI, token.COMMENT, token.EOF,
	}
	require.Equal(t, want, toks)
}

func TestScanNumber(t *testing.T) {
	_, vals := scanAll(t, `3.14`)
	require.Equal(t, 3.14, vals[0].Number)
}

func TestScanString(t *testing.T) {
	_, vals := scanAll(t, `"hello\nworld"`)
	require.Equal(t, "hello\nworld", vals[0].String)
}

func TestScanOperators(t *testing.T) {
	toks, _ := scanAll(t, `!= == <= >= < > ! =`)
	want := []token.Token{
		token.BANGEQ, token.EQEQ, token.LE, token.GE, token.LT, token.GT, token.BANG, token.EQ, token.EOF,
	}
	require.Equal(t, want, toks)
}

func TestScanUnterminatedString(t *testing.T) {
	fs := token.NewFileSet()
	f := fs.AddFile("test", -1, len(`"oops`))
	var s scanner.Scanner
	var el scanner.ErrorList
	s.Init(f, []byte(`"oops`), el.Add)
	var v token.Value
	s.Scan(&v)
	require.Error(t, el.Err())
}
