package parser

import (
	"github.com/loxvm/lox/lang/ast"
	"github.com/loxvm/lox/lang/token"
)

// parseExpr parses a full expression, starting at the lowest-precedence
// assignment level.
func (p *parser) parseExpr() ast.Expr {
	return p.parseAssignment()
}

// parseAssignment parses "target = value" expressions, where target must be
// a variable, property access or list index (ast.IsAssignable). Any other
// left-hand side is reported as "Invalid left value".
func (p *parser) parseAssignment() ast.Expr {
	left := p.parseOr()

	if p.tok != token.EQ {
		return left
	}
	eq := p.expect(token.EQ)
	value := p.parseAssignment()

	switch l := left.(type) {
	case *ast.IdentExpr:
		return &ast.AssignExpr{Name: l, Equals: eq, Value: value}
	case *ast.GetExpr:
		return &ast.SetExpr{Object: l.Object, Dot: l.Dot, Name: l.Name, Equals: eq, Value: value}
	case *ast.ListGetExpr:
		return &ast.ListSetExpr{List: l.List, Lbrack: l.Lbrack, Index: l.Index, Rbrack: l.Rbrack, Equals: eq, Value: value}
	default:
		p.error(eq, "Invalid left value")
		start, _ := left.Span()
		return &ast.BadExpr{Start: start, End: eq}
	}
}

func (p *parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.tok == token.OR {
		op := p.expect(token.OR)
		right := p.parseAnd()
		left = &ast.LogicalExpr{Left: left, Type: token.OR, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.tok == token.AND {
		op := p.expect(token.AND)
		right := p.parseEquality()
		left = &ast.LogicalExpr{Left: left, Type: token.AND, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for p.tok == token.EQEQ || p.tok == token.BANGEQ {
		tok := p.tok
		op := p.expect(tok)
		right := p.parseComparison()
		left = &ast.BinaryExpr{Left: left, Type: tok, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseComparison() ast.Expr {
	left := p.parseTerm()
	for tokenIn(p.tok, token.GT, token.GE, token.LT, token.LE) {
		tok := p.tok
		op := p.expect(tok)
		right := p.parseTerm()
		left = &ast.BinaryExpr{Left: left, Type: tok, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseTerm() ast.Expr {
	left := p.parseFactor()
	for p.tok == token.PLUS || p.tok == token.MINUS {
		tok := p.tok
		op := p.expect(tok)
		right := p.parseFactor()
		left = &ast.BinaryExpr{Left: left, Type: tok, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseFactor() ast.Expr {
	left := p.parseUnary()
	for p.tok == token.STAR || p.tok == token.SLASH {
		tok := p.tok
		op := p.expect(tok)
		right := p.parseUnary()
		left = &ast.BinaryExpr{Left: left, Type: tok, Op: op, Right: right}
	}
	return left
}

func (p *parser) parseUnary() ast.Expr {
	if p.tok == token.BANG || p.tok == token.MINUS {
		tok := p.tok
		op := p.expect(tok)
		right := p.parseUnary()
		return &ast.UnaryExpr{Type: tok, Op: op, Right: right}
	}
	return p.parseCall()
}

func (p *parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.tok {
		case token.LPAREN:
			lparen := p.expect(token.LPAREN)
			var args []ast.Expr
			if p.tok != token.RPAREN {
				args = append(args, p.parseExpr())
				for p.tok == token.COMMA {
					p.advance()
					args = append(args, p.parseExpr())
				}
			}
			rparen := p.expect(token.RPAREN)
			expr = &ast.CallExpr{Callee: expr, Lparen: lparen, Args: args, Rparen: rparen}

		case token.DOT:
			dot := p.expect(token.DOT)
			name := p.parseIdentExpr()
			expr = &ast.GetExpr{Object: expr, Dot: dot, Name: name}

		case token.LBRACK:
			lbrack := p.expect(token.LBRACK)
			index := p.parseExpr()
			rbrack := p.expect(token.RBRACK)
			expr = &ast.ListGetExpr{List: expr, Lbrack: lbrack, Index: index, Rbrack: rbrack}

		default:
			return expr
		}
	}
}

func (p *parser) parsePrimary() ast.Expr {
	pos := p.val.Pos
	switch p.tok {
	case token.FALSE:
		raw := p.val.Raw
		p.advance()
		return &ast.LiteralExpr{Type: token.FALSE, Start: pos, Raw: raw, Value: false}
	case token.TRUE:
		raw := p.val.Raw
		p.advance()
		return &ast.LiteralExpr{Type: token.TRUE, Start: pos, Raw: raw, Value: true}
	case token.NIL:
		raw := p.val.Raw
		p.advance()
		return &ast.LiteralExpr{Type: token.NIL, Start: pos, Raw: raw, Value: nil}
	case token.NUMBER:
		raw, num := p.val.Raw, p.val.Number
		p.advance()
		return &ast.LiteralExpr{Type: token.NUMBER, Start: pos, Raw: raw, Value: num}
	case token.STRING:
		raw, str := p.val.Raw, p.val.String
		p.advance()
		return &ast.LiteralExpr{Type: token.STRING, Start: pos, Raw: raw, Value: str}
	case token.THIS:
		p.advance()
		return &ast.ThisExpr{Start: pos}
	case token.SUPER:
		p.advance()
		dot := p.expect(token.DOT)
		method := p.parseIdentExpr()
		return &ast.SuperExpr{Start: pos, Dot: dot, Method: method}
	case token.IDENT:
		return p.parseIdentExpr()
	case token.LPAREN:
		lparen := p.expect(token.LPAREN)
		inner := p.parseExpr()
		rparen := p.expect(token.RPAREN)
		return &ast.GroupingExpr{Lparen: lparen, Expr: inner, Rparen: rparen}
	case token.LBRACK:
		lbrack := p.expect(token.LBRACK)
		var items []ast.Expr
		if p.tok != token.RBRACK {
			items = append(items, p.parseExpr())
			for p.tok == token.COMMA {
				p.advance()
				items = append(items, p.parseExpr())
			}
		}
		rbrack := p.expect(token.RBRACK)
		return &ast.ListExpr{Lbrack: lbrack, Items: items, Rbrack: rbrack}
	default:
		p.errorExpected(pos, "expression")
		panic(errPanicMode)
	}
}
