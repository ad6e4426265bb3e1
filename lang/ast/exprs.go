package ast

import (
	"fmt"

	"github.com/loxvm/lox/lang/token"
)

type (
	// BadExpr represents an expression that failed to parse.
	BadExpr struct {
		Start token.Pos
		End   token.Pos
	}

	// BinaryExpr represents a binary expression, e.g. x + y.
	BinaryExpr struct {
		Left  Expr
		Type  token.Token // PLUS, MINUS, STAR, SLASH, EQEQ, BANGEQ, LT, LE, GT, GE
		Op    token.Pos
		Right Expr
	}

	// GroupingExpr represents an expression wrapped in parentheses.
	GroupingExpr struct {
		Lparen token.Pos
		Expr   Expr
		Rparen token.Pos
	}

	// LiteralExpr represents a nil, boolean, number or string literal.
	LiteralExpr struct {
		Type  token.Token // NIL, TRUE, FALSE, NUMBER or STRING
		Start token.Pos
		Raw   string // uninterpreted source text
		Value any     // = nil | bool | float64 | string
	}

	// UnaryExpr represents a unary operator expression (e.g. -x, !x).
	UnaryExpr struct {
		Type  token.Token // MINUS or BANG
		Op    token.Pos
		Right Expr
	}

	// IdentExpr represents an identifier used as an expression (a variable
	// reference), and is also reused as the Name field of other nodes that
	// need to name something (parameters, declarations, property accesses).
	IdentExpr struct {
		Start token.Pos
		Lit   string
	}

	// ThisExpr represents a "this" reference inside a method body.
	ThisExpr struct {
		Start token.Pos
	}

	// SuperExpr represents a "super.method" reference inside a method body.
	SuperExpr struct {
		Start  token.Pos
		Dot    token.Pos
		Method *IdentExpr
	}

	// AssignExpr represents a variable assignment, e.g. x = y.
	AssignExpr struct {
		Name   *IdentExpr
		Equals token.Pos
		Value  Expr
	}

	// LogicalExpr represents a short-circuiting "and"/"or" expression.
	LogicalExpr struct {
		Left  Expr
		Type  token.Token // AND or OR
		Op    token.Pos
		Right Expr
	}

	// CallExpr represents a function or method call, e.g. f(a, b).
	CallExpr struct {
		Callee Expr
		Lparen token.Pos
		Args   []Expr
		Rparen token.Pos
	}

	// GetExpr represents a property access, e.g. x.y.
	GetExpr struct {
		Object Expr
		Dot    token.Pos
		Name   *IdentExpr
	}

	// SetExpr represents a property assignment, e.g. x.y = z.
	SetExpr struct {
		Object Expr
		Dot    token.Pos
		Name   *IdentExpr
		Equals token.Pos
		Value  Expr
	}

	// ListExpr represents a list literal, e.g. [a, b, c].
	ListExpr struct {
		Lbrack token.Pos
		Items  []Expr
		Rbrack token.Pos
	}

	// ListGetExpr represents a list index read, e.g. x[i].
	ListGetExpr struct {
		List   Expr
		Lbrack token.Pos
		Index  Expr
		Rbrack token.Pos
	}

	// ListSetExpr represents a list index assignment, e.g. x[i] = v.
	ListSetExpr struct {
		List   Expr
		Lbrack token.Pos
		Index  Expr
		Rbrack token.Pos
		Equals token.Pos
		Value  Expr
	}
)

func (n *BadExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad expr!", nil) }
func (n *BadExpr) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BadExpr) Walk(v Visitor)                {}
func (n *BadExpr) expr()                         {}

func (n *BinaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binary "+n.Type.String(), nil)
}
func (n *BinaryExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *BinaryExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *BinaryExpr) expr() {}

func (n *GroupingExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "(expr)", nil) }
func (n *GroupingExpr) Span() (start, end token.Pos) {
	return n.Lparen, n.Rparen + token.Pos(len(token.RPAREN.String()))
}
func (n *GroupingExpr) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *GroupingExpr) expr()          {}

func (n *LiteralExpr) Format(f fmt.State, verb rune) {
	lbl := n.Type.String()
	if n.Raw != "" {
		lbl += " " + n.Raw
	}
	format(f, verb, n, lbl, nil)
}
func (n *LiteralExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Raw))
}
func (n *LiteralExpr) Walk(v Visitor) {}
func (n *LiteralExpr) expr()          {}

func (n *UnaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "unary "+n.Type.String(), nil)
}
func (n *UnaryExpr) Span() (start, end token.Pos) {
	_, end = n.Right.Span()
	return n.Op, end
}
func (n *UnaryExpr) Walk(v Visitor) { Walk(v, n.Right) }
func (n *UnaryExpr) expr()          {}

func (n *IdentExpr) Format(f fmt.State, verb rune) { format(f, verb, n, n.Lit, nil) }
func (n *IdentExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Lit))
}
func (n *IdentExpr) Walk(v Visitor) {}
func (n *IdentExpr) expr()          {}

func (n *ThisExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "this", nil) }
func (n *ThisExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len("this"))
}
func (n *ThisExpr) Walk(v Visitor) {}
func (n *ThisExpr) expr()          {}

func (n *SuperExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "super."+n.Method.Lit, nil) }
func (n *SuperExpr) Span() (start, end token.Pos) {
	_, end = n.Method.Span()
	return n.Start, end
}
func (n *SuperExpr) Walk(v Visitor) { Walk(v, n.Method) }
func (n *SuperExpr) expr()          {}

func (n *AssignExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "assign", nil) }
func (n *AssignExpr) Span() (start, end token.Pos) {
	start, _ = n.Name.Span()
	_, end = n.Value.Span()
	return start, end
}
func (n *AssignExpr) Walk(v Visitor) {
	Walk(v, n.Name)
	Walk(v, n.Value)
}
func (n *AssignExpr) expr() {}

func (n *LogicalExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "logical "+n.Type.String(), nil)
}
func (n *LogicalExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *LogicalExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *LogicalExpr) expr() {}

func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call", map[string]int{"args": len(n.Args)})
}
func (n *CallExpr) Span() (start, end token.Pos) {
	start, _ = n.Callee.Span()
	return start, n.Rparen + token.Pos(len(token.RPAREN.String()))
}
func (n *CallExpr) Walk(v Visitor) {
	Walk(v, n.Callee)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *CallExpr) expr() {}

func (n *GetExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "expr."+n.Name.Lit, nil) }
func (n *GetExpr) Span() (start, end token.Pos) {
	start, _ = n.Object.Span()
	_, end = n.Name.Span()
	return start, end
}
func (n *GetExpr) Walk(v Visitor) {
	Walk(v, n.Object)
	Walk(v, n.Name)
}
func (n *GetExpr) expr() {}

func (n *SetExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "expr."+n.Name.Lit+"=", nil) }
func (n *SetExpr) Span() (start, end token.Pos) {
	start, _ = n.Object.Span()
	_, end = n.Value.Span()
	return start, end
}
func (n *SetExpr) Walk(v Visitor) {
	Walk(v, n.Object)
	Walk(v, n.Name)
	Walk(v, n.Value)
}
func (n *SetExpr) expr() {}

func (n *ListExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "list", map[string]int{"items": len(n.Items)})
}
func (n *ListExpr) Span() (start, end token.Pos) {
	return n.Lbrack, n.Rbrack + token.Pos(len(token.RBRACK.String()))
}
func (n *ListExpr) Walk(v Visitor) {
	for _, e := range n.Items {
		Walk(v, e)
	}
}
func (n *ListExpr) expr() {}

func (n *ListGetExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "list[index]", nil) }
func (n *ListGetExpr) Span() (start, end token.Pos) {
	start, _ = n.List.Span()
	return start, n.Rbrack + token.Pos(len(token.RBRACK.String()))
}
func (n *ListGetExpr) Walk(v Visitor) {
	Walk(v, n.List)
	Walk(v, n.Index)
}
func (n *ListGetExpr) expr() {}

func (n *ListSetExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "list[index]=", nil) }
func (n *ListSetExpr) Span() (start, end token.Pos) {
	start, _ = n.List.Span()
	_, end = n.Value.Span()
	return start, end
}
func (n *ListSetExpr) Walk(v Visitor) {
	Walk(v, n.List)
	Walk(v, n.Index)
	Walk(v, n.Value)
}
func (n *ListSetExpr) expr() {}
