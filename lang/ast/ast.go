// Package ast defines the types used to represent the abstract syntax tree
// of a Lox program, as produced by the parser and consumed by the compiler.
// Positions are byte offsets into the source, reported through the same
// token.FileSet/token.Pos machinery used by the scanner.
package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loxvm/lox/lang/token"
)

// Node represents any node in the AST.
type Node interface {
	// Every Node implements fmt.Formatter so it can print a description of
	// itself. Only the 'v' and 's' verbs are supported. The '#' flag prints
	// count information about children nodes. A width can be set to define
	// the number of runes to print for the node description: it is padded on
	// the left by default, on the right with the '-' flag, or not at all with
	// the '+' flag (only truncation applies in that case).
	fmt.Formatter

	// Span reports the start and end position of the node.
	Span() (start, end token.Pos)

	// Walk enters each child node to implement the Visitor pattern.
	Walk(v Visitor)
}

// Expr represents an expression in the AST.
type Expr interface {
	Node
	expr()
}

// Stmt represents a statement in the AST.
type Stmt interface {
	Node

	// BlockEnding reports whether the statement may only appear as the last
	// statement of a block (return).
	BlockEnding() bool
}

// Chunk represents a whole parsed source file: an ordered list of top-level
// statements plus the position of the EOF marker, used to report a valid
// span for otherwise-empty files.
type Chunk struct {
	Name  string // filename, may be empty if the chunk is not backed by a file
	Stmts []Stmt
	EOF   token.Pos
}

func (n *Chunk) Format(f fmt.State, verb rune) {
	lbl := "chunk"
	if n.Name != "" {
		lbl += " " + n.Name
	}
	format(f, verb, n, lbl, map[string]int{"stmts": len(n.Stmts)})
}

func (n *Chunk) Span() (start, end token.Pos) {
	if len(n.Stmts) > 0 {
		start, _ = n.Stmts[0].Span()
		_, end = n.Stmts[len(n.Stmts)-1].Span()
		return start, end
	}
	return n.EOF, n.EOF
}

func (n *Chunk) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}

func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		if len(runes) >= w {
			runes = runes[:w]
		} else if minus {
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		} else if !plus {
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}

// IsAssignable reports whether e is a valid assignment target: a variable, a
// property access or a list index.
func IsAssignable(e Expr) bool {
	switch e.(type) {
	case *IdentExpr, *GetExpr, *ListGetExpr:
		return true
	default:
		return false
	}
}
