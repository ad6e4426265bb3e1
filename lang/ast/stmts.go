package ast

import (
	"fmt"

	"github.com/loxvm/lox/lang/token"
)

type (
	// BadStmt represents a statement that failed to parse. It is produced
	// during error recovery so that parsing can continue past the error and
	// surface more than one diagnostic per run.
	BadStmt struct {
		Start token.Pos
		End   token.Pos
	}

	// ExprStmt represents an expression used as a statement.
	ExprStmt struct {
		Expr Expr
		Semi token.Pos
	}

	// PrintStmt represents a "print expr;" statement.
	PrintStmt struct {
		Print token.Pos
		Expr  Expr
		Semi  token.Pos
	}

	// VarStmt represents a variable declaration, e.g. var x = 1;.
	VarStmt struct {
		Var  token.Pos
		Name *IdentExpr
		Init Expr // may be nil
		Semi token.Pos
	}

	// BlockStmt represents a brace-delimited block of statements.
	BlockStmt struct {
		Lbrace token.Pos
		Stmts  []Stmt
		Rbrace token.Pos
	}

	// IfStmt represents an if/else statement.
	IfStmt struct {
		If   token.Pos
		Cond Expr
		Then Stmt
		Else token.Pos // zero if no else clause
		Alt  Stmt      // nil if no else clause
	}

	// WhileStmt represents a while loop. For-loops are desugared into
	// WhileStmt by the parser, wrapped in a BlockStmt when they declare an
	// init clause, so the compiler only ever lowers one looping construct.
	WhileStmt struct {
		While token.Pos
		Cond  Expr
		Body  Stmt
	}

	// ReturnStmt represents a return statement, with an optional value.
	ReturnStmt struct {
		Return token.Pos
		Value  Expr // may be nil
		Semi   token.Pos
	}

	// FunctionStmt represents a function (or method) declaration.
	FunctionStmt struct {
		Fun    token.Pos
		Name   *IdentExpr
		Params []*IdentExpr
		Body   *BlockStmt
	}

	// ClassStmt represents a class declaration, with an optional superclass
	// and zero or more method declarations.
	ClassStmt struct {
		Class      token.Pos
		Name       *IdentExpr
		Superclass *IdentExpr // nil if no "< Superclass" clause
		Methods    []*FunctionStmt
		Rbrace     token.Pos
	}

	// ImportStmt represents an "import "path";" or "import "path" for a, b;"
	// statement.
	ImportStmt struct {
		Import token.Pos
		Path   *LiteralExpr // string literal
		For    []*IdentExpr // empty if no "for" clause
		Semi   token.Pos
	}
)

func (n *BadStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad stmt!", nil) }
func (n *BadStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BadStmt) Walk(v Visitor)                {}
func (n *BadStmt) BlockEnding() bool             { return false }

func (n *ExprStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "expr stmt", nil) }
func (n *ExprStmt) Span() (start, end token.Pos)  { return n.Expr.Span() }
func (n *ExprStmt) Walk(v Visitor)                { Walk(v, n.Expr) }
func (n *ExprStmt) BlockEnding() bool             { return false }

func (n *PrintStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "print", nil) }
func (n *PrintStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Print, end
}
func (n *PrintStmt) Walk(v Visitor)    { Walk(v, n.Expr) }
func (n *PrintStmt) BlockEnding() bool { return false }

func (n *VarStmt) Format(f fmt.State, verb rune) {
	var inits int
	if n.Init != nil {
		inits = 1
	}
	format(f, verb, n, "var decl "+n.Name.Lit, map[string]int{"init": inits})
}
func (n *VarStmt) Span() (start, end token.Pos) {
	end = n.Semi
	if n.Init != nil {
		_, end = n.Init.Span()
	} else {
		_, end = n.Name.Span()
	}
	return n.Var, end
}
func (n *VarStmt) Walk(v Visitor) {
	Walk(v, n.Name)
	if n.Init != nil {
		Walk(v, n.Init)
	}
}
func (n *VarStmt) BlockEnding() bool { return false }

func (n *BlockStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "block", map[string]int{"stmts": len(n.Stmts)})
}
func (n *BlockStmt) Span() (start, end token.Pos) {
	return n.Lbrace, n.Rbrace + token.Pos(len(token.RBRACE.String()))
}
func (n *BlockStmt) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}
func (n *BlockStmt) BlockEnding() bool { return false }

func (n *IfStmt) Format(f fmt.State, verb rune) {
	lbl := "if"
	if n.Alt != nil {
		lbl += " else"
	}
	format(f, verb, n, lbl, nil)
}
func (n *IfStmt) Span() (start, end token.Pos) {
	if n.Alt != nil {
		_, end = n.Alt.Span()
	} else {
		_, end = n.Then.Span()
	}
	return n.If, end
}
func (n *IfStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Then)
	if n.Alt != nil {
		Walk(v, n.Alt)
	}
}
func (n *IfStmt) BlockEnding() bool { return false }

func (n *WhileStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "while", nil) }
func (n *WhileStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.While, end
}
func (n *WhileStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Body)
}
func (n *WhileStmt) BlockEnding() bool { return false }

func (n *ReturnStmt) Format(f fmt.State, verb rune) {
	var vals int
	if n.Value != nil {
		vals = 1
	}
	format(f, verb, n, "return", map[string]int{"value": vals})
}
func (n *ReturnStmt) Span() (start, end token.Pos) {
	end = n.Return + token.Pos(len(token.RETURN.String()))
	if n.Value != nil {
		_, end = n.Value.Span()
	}
	return n.Return, end
}
func (n *ReturnStmt) Walk(v Visitor) {
	if n.Value != nil {
		Walk(v, n.Value)
	}
}
func (n *ReturnStmt) BlockEnding() bool { return true }

func (n *FunctionStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "fn decl "+n.Name.Lit, map[string]int{"params": len(n.Params)})
}
func (n *FunctionStmt) Span() (start, end token.Pos) {
	_, end = n.Body.Span()
	return n.Fun, end
}
func (n *FunctionStmt) Walk(v Visitor) {
	Walk(v, n.Name)
	for _, p := range n.Params {
		Walk(v, p)
	}
	Walk(v, n.Body)
}
func (n *FunctionStmt) BlockEnding() bool { return false }

func (n *ClassStmt) Format(f fmt.State, verb rune) {
	var inherits int
	if n.Superclass != nil {
		inherits = 1
	}
	format(f, verb, n, "class decl "+n.Name.Lit, map[string]int{
		"inherits": inherits,
		"methods":  len(n.Methods),
	})
}
func (n *ClassStmt) Span() (start, end token.Pos) {
	return n.Class, n.Rbrace + token.Pos(len(token.RBRACE.String()))
}
func (n *ClassStmt) Walk(v Visitor) {
	Walk(v, n.Name)
	if n.Superclass != nil {
		Walk(v, n.Superclass)
	}
	for _, m := range n.Methods {
		Walk(v, m)
	}
}
func (n *ClassStmt) BlockEnding() bool { return false }

func (n *ImportStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "import "+n.Path.Raw, map[string]int{"for": len(n.For)})
}
func (n *ImportStmt) Span() (start, end token.Pos) {
	end = n.Semi
	if end == token.NoPos {
		_, end = n.Path.Span()
	}
	return n.Import, end
}
func (n *ImportStmt) Walk(v Visitor) {
	Walk(v, n.Path)
	for _, id := range n.For {
		Walk(v, id)
	}
}
func (n *ImportStmt) BlockEnding() bool { return false }
