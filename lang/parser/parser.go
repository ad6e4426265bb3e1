// Package parser implements the parser that transforms Lox source code into
// an abstract syntax tree (AST).
package parser

import (
	"context"
	"os"
	"strings"

	"github.com/loxvm/lox/lang/ast"
	"github.com/loxvm/lox/lang/scanner"
	"github.com/loxvm/lox/lang/token"
)

// ParseFiles is a helper function that parses the source files and returns
// the fileset along with the ASTs and any error encountered. The error, if
// non-nil, is guaranteed to be a scanner.ErrorList.
func ParseFiles(ctx context.Context, files ...string) (*token.FileSet, []*ast.Chunk, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	var p parser
	res := make([]*ast.Chunk, 0, len(files))
	fs := token.NewFileSet()

	for _, file := range files {
		select {
		case <-ctx.Done():
			p.errors.Add(token.Position{Filename: file}, ctx.Err().Error())
			continue
		default:
		}

		b, err := os.ReadFile(file)
		if err != nil {
			p.errors.Add(token.Position{Filename: file}, err.Error())
			continue
		}

		p.init(fs, file, b)
		ch := p.parseChunk()
		ch.Name = file
		res = append(res, ch)
	}
	p.errors.Sort()
	return fs, res, p.errors.Err()
}

// ParseChunk is a helper function that parses a single chunk from a slice of
// bytes and returns the AST and any error encountered. The chunk is added to
// the provided fset for position reporting under the name specified in
// filename. The error, if non-nil, is guaranteed to be a scanner.ErrorList.
func ParseChunk(fset *token.FileSet, filename string, src []byte) (*ast.Chunk, error) {
	var p parser
	p.init(fset, filename, src)
	ch := p.parseChunk()
	ch.Name = filename
	return ch, p.errors.Err()
}

// parser parses Lox source and generates an AST.
type parser struct {
	scanner scanner.Scanner
	errors  scanner.ErrorList
	file    *token.File

	tok token.Token
	val token.Value
}

func (p *parser) init(fset *token.FileSet, filename string, src []byte) {
	p.file = fset.AddFile(filename, -1, len(src))
	p.scanner.Init(p.file, src, p.errors.Add)
	p.advance()
}

func (p *parser) advance() {
	p.tok = p.scanner.Scan(&p.val)
	for p.tok == token.COMMENT {
		p.tok = p.scanner.Scan(&p.val)
	}
}

// errPanicMode is used to unwind the recursive-descent parser to the
// enclosing statement, which recovers it and synthesizes a BadStmt/BadExpr
// spanning the skipped tokens. This lets the parser surface more than one
// diagnostic per run instead of stopping at the first error.
type errPanic struct{}

var errPanicMode = errPanic{}

// expect returns the position of the current token and consumes it if it
// matches one of the expected tokens, otherwise it reports an error and
// panics with errPanicMode, recovered at the statement level.
func (p *parser) expect(toks ...token.Token) token.Pos {
	pos := p.val.Pos

	var ok bool
	for _, tok := range toks {
		if p.tok == tok {
			ok = true
			break
		}
	}

	if !ok {
		var buf strings.Builder
		for i, tok := range toks {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(tok.GoString())
		}
		lbl := buf.String()
		if len(toks) > 1 {
			lbl = "one of " + lbl
		}
		p.errorExpected(pos, lbl)
		panic(errPanicMode)
	}

	p.advance()
	return pos
}

func (p *parser) error(pos token.Pos, msg string) {
	p.errors.Add(p.file.Position(pos), msg)
}

func (p *parser) errorExpected(pos token.Pos, msg string) {
	msg = "expected " + msg
	if pos == p.val.Pos {
		msg += ", found " + p.tok.GoString()
	}
	p.error(pos, msg)
}

func tokenIn(t token.Token, toks ...token.Token) bool {
	for _, tok := range toks {
		if t == tok {
			return true
		}
	}
	return false
}
