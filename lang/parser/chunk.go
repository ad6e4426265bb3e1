package parser

import (
	"github.com/loxvm/lox/lang/ast"
	"github.com/loxvm/lox/lang/token"
)

func (p *parser) parseChunk() *ast.Chunk {
	var chunk ast.Chunk
	for p.tok != token.EOF {
		if stmt := p.parseDecl(); stmt != nil {
			chunk.Stmts = append(chunk.Stmts, stmt)
		}
	}
	chunk.EOF = p.val.Pos
	return &chunk
}

// parseDecl parses a single top-level-or-block declaration, recovering to
// the next statement boundary on error so that a single malformed statement
// does not abort the rest of the parse.
func (p *parser) parseDecl() (stmt ast.Stmt) {
	start := p.val.Pos

	defer func() {
		if err := recover(); err != nil {
			if err == errPanicMode {
				stmt = &ast.BadStmt{Start: start, End: p.syncAfterError()}
				return
			}
			panic(err)
		}
	}()

	switch p.tok {
	case token.SEMI:
		p.advance()
		return nil
	case token.VAR:
		return p.parseVarDecl()
	case token.FUN:
		return p.parseFunDecl()
	case token.CLASS:
		return p.parseClassDecl()
	case token.IMPORT:
		return p.parseImportStmt()
	default:
		return p.parseStmt()
	}
}

func (p *parser) parseBlockBody(endToks ...token.Token) []ast.Stmt {
	var stmts []ast.Stmt
	for !tokenIn(p.tok, append(endToks, token.EOF)...) {
		if stmt := p.parseDecl(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func (p *parser) parseVarDecl() *ast.VarStmt {
	var stmt ast.VarStmt
	stmt.Var = p.expect(token.VAR)
	stmt.Name = p.parseIdentExpr()
	if p.tok == token.EQ {
		p.advance()
		stmt.Init = p.parseExpr()
	}
	stmt.Semi = p.expect(token.SEMI)
	return &stmt
}

func (p *parser) parseFunDecl() *ast.FunctionStmt {
	fun := p.expect(token.FUN)
	return p.parseFunBody(fun)
}

// parseFunBody parses the name, parameter list and body of a function or
// method declaration; fun is the position of the "fun" keyword, or of the
// method's name when no keyword precedes it (inside a class body).
func (p *parser) parseFunBody(fun token.Pos) *ast.FunctionStmt {
	var stmt ast.FunctionStmt
	stmt.Fun = fun
	stmt.Name = p.parseIdentExpr()
	p.expect(token.LPAREN)
	if p.tok != token.RPAREN {
		stmt.Params = append(stmt.Params, p.parseIdentExpr())
		for p.tok == token.COMMA {
			p.advance()
			stmt.Params = append(stmt.Params, p.parseIdentExpr())
		}
	}
	p.expect(token.RPAREN)
	stmt.Body = p.parseBlockStmt()
	return &stmt
}

func (p *parser) parseBlockStmt() *ast.BlockStmt {
	var blk ast.BlockStmt
	blk.Lbrace = p.expect(token.LBRACE)
	blk.Stmts = p.parseBlockBody(token.RBRACE)
	blk.Rbrace = p.expect(token.RBRACE)
	return &blk
}

func (p *parser) parseClassDecl() *ast.ClassStmt {
	var stmt ast.ClassStmt
	stmt.Class = p.expect(token.CLASS)
	stmt.Name = p.parseIdentExpr()
	if p.tok == token.LT {
		p.advance()
		stmt.Superclass = p.parseIdentExpr()
	}
	p.expect(token.LBRACE)
	for p.tok != token.RBRACE && p.tok != token.EOF {
		namePos := p.val.Pos
		stmt.Methods = append(stmt.Methods, p.parseFunBody(namePos))
	}
	stmt.Rbrace = p.expect(token.RBRACE)
	return &stmt
}

func (p *parser) parseImportStmt() *ast.ImportStmt {
	var stmt ast.ImportStmt
	stmt.Import = p.expect(token.IMPORT)

	strPos := p.val.Pos
	raw := p.val.Raw
	val := p.val.String
	p.expect(token.STRING)
	stmt.Path = &ast.LiteralExpr{Type: token.STRING, Start: strPos, Raw: raw, Value: val}

	if p.tok == token.FOR {
		p.advance()
		stmt.For = append(stmt.For, p.parseIdentExpr())
		for p.tok == token.COMMA {
			p.advance()
			stmt.For = append(stmt.For, p.parseIdentExpr())
		}
	}
	stmt.Semi = p.expect(token.SEMI)
	return &stmt
}

func (p *parser) parseIdentExpr() *ast.IdentExpr {
	var exp ast.IdentExpr
	exp.Lit = p.val.Raw
	exp.Start = p.expect(token.IDENT)
	return &exp
}

func (p *parser) parseStmt() ast.Stmt {
	switch p.tok {
	case token.PRINT:
		return p.parsePrintStmt()
	case token.LBRACE:
		return p.parseBlockStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *parser) parsePrintStmt() *ast.PrintStmt {
	var stmt ast.PrintStmt
	stmt.Print = p.expect(token.PRINT)
	stmt.Expr = p.parseExpr()
	stmt.Semi = p.expect(token.SEMI)
	return &stmt
}

func (p *parser) parseExprStmt() *ast.ExprStmt {
	var stmt ast.ExprStmt
	stmt.Expr = p.parseExpr()
	stmt.Semi = p.expect(token.SEMI)
	return &stmt
}

func (p *parser) parseIfStmt() *ast.IfStmt {
	var stmt ast.IfStmt
	stmt.If = p.expect(token.IF)
	p.expect(token.LPAREN)
	stmt.Cond = p.parseExpr()
	p.expect(token.RPAREN)
	stmt.Then = p.parseStmt()
	if p.tok == token.ELSE {
		stmt.Else = p.expect(token.ELSE)
		stmt.Alt = p.parseStmt()
	}
	return &stmt
}

func (p *parser) parseWhileStmt() *ast.WhileStmt {
	var stmt ast.WhileStmt
	stmt.While = p.expect(token.WHILE)
	p.expect(token.LPAREN)
	stmt.Cond = p.parseExpr()
	p.expect(token.RPAREN)
	stmt.Body = p.parseStmt()
	return &stmt
}

// parseForStmt desugars "for (init; cond; step) body" into the equivalent
// while-loop AST: { init; while (cond) { body; step; } }.
func (p *parser) parseForStmt() ast.Stmt {
	forPos := p.expect(token.FOR)
	p.expect(token.LPAREN)

	var init ast.Stmt
	switch p.tok {
	case token.SEMI:
		p.advance()
	case token.VAR:
		init = p.parseVarDecl()
	default:
		init = p.parseExprStmt()
	}

	var cond ast.Expr
	if p.tok != token.SEMI {
		cond = p.parseExpr()
	} else {
		cond = &ast.LiteralExpr{Type: token.TRUE, Start: p.val.Pos, Raw: "true", Value: true}
	}
	p.expect(token.SEMI)

	var step ast.Expr
	if p.tok != token.RPAREN {
		step = p.parseExpr()
	}
	p.expect(token.RPAREN)

	body := p.parseStmt()
	if step != nil {
		_, end := step.Span()
		body = &ast.BlockStmt{
			Lbrace: forPos,
			Stmts:  []ast.Stmt{body, &ast.ExprStmt{Expr: step, Semi: end}},
			Rbrace: end,
		}
	}

	loop := ast.Stmt(&ast.WhileStmt{While: forPos, Cond: cond, Body: body})
	if init != nil {
		_, end := loop.Span()
		loop = &ast.BlockStmt{Lbrace: forPos, Stmts: []ast.Stmt{init, loop}, Rbrace: end}
	}
	return loop
}

func (p *parser) parseReturnStmt() *ast.ReturnStmt {
	var stmt ast.ReturnStmt
	stmt.Return = p.expect(token.RETURN)
	if p.tok != token.SEMI {
		stmt.Value = p.parseExpr()
	}
	stmt.Semi = p.expect(token.SEMI)
	return &stmt
}

type syncMode int

const (
	syncAfter syncMode = iota
	syncAt
)

var syncToks = map[token.Token]syncMode{
	token.SEMI:   syncAfter,
	token.RBRACE: syncAfter,
	token.IF:     syncAt,
	token.FOR:    syncAt,
	token.WHILE:  syncAt,
	token.RETURN: syncAt,
	token.VAR:    syncAt,
	token.FUN:    syncAt,
	token.CLASS:  syncAt,
	token.IMPORT: syncAt,
	token.PRINT:  syncAt,
}

func (p *parser) syncAfterError() token.Pos {
	for p.tok != token.EOF {
		if mode, ok := syncToks[p.tok]; ok {
			if mode == syncAfter {
				p.advance()
				if p.tok == token.EOF {
					return p.val.Pos - 1
				}
			}
			return p.val.Pos
		}
		p.advance()
	}
	return p.val.Pos - 1
}
