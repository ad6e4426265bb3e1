package compiler

import (
	"fmt"

	"github.com/loxvm/lox/lang/ast"
	"github.com/loxvm/lox/lang/token"
)

// ctxKind identifies what kind of code body a compilation context is
// emitting, which changes how "this"/"super" resolve and what a bare
// "return;" produces.
type ctxKind int

const (
	ctxTopLevel ctxKind = iota
	ctxFunction
	ctxMethod
	ctxInitializer
)

// localVar is a compile-time record of one declared local; slot mirrors the
// runtime stack position the value will occupy within the owning function's
// frame.
type localVar struct {
	name        string
	depth       int
	slot        int
	initialized bool
	captured    bool
}

// funcCtx is one compilation context: the synthetic top-level, or one
// function/method/initializer body. Contexts nest via enclosing, mirroring
// Lox's lexical function nesting.
type funcCtx struct {
	kind       ctxKind
	enclosing  *funcCtx
	chunkIdx   int
	locals     []localVar
	scopeDepth int
	upvalues   []UpvalueDesc

	className     string
	hasSuperclass bool
}

func (c *funcCtx) chunk(mod *Module) *Chunk { return mod.Chunks[c.chunkIdx] }

// Compiler walks an AST chunk and emits a Module. It never backtracks:
// diagnostics accumulate and compilation continues on most errors so a
// single run can surface more than one problem.
type Compiler struct {
	mod   *Module
	cur   *funcCtx
	diags Diagnostics
	file  *token.File
}

// Compile compiles chunk (as parsed from the source recorded in file) into a
// Module. On error, the returned Diagnostics is non-empty and the partial
// Module is discarded by the caller.
func Compile(file *token.File, chunk *ast.Chunk) (*Module, error) {
	c := &Compiler{mod: NewModule(), file: file}
	c.pushContext(ctxTopLevel, "", false)

	for _, s := range chunk.Stmts {
		c.compileStmt(s)
	}
	c.emit(OpReturnTop)
	c.popContext()

	if err := c.diags.Err(); err != nil {
		return nil, err
	}
	if err := c.mod.Validate(); err != nil {
		return nil, err
	}
	return c.mod, nil
}

func (c *Compiler) chunk() *Chunk { return c.cur.chunk(c.mod) }

func (c *Compiler) emit(op Op) int { return c.chunk().Emit(op) }

func (c *Compiler) errorAt(pos token.Pos, msg string) {
	c.diags = append(c.diags, Diagnostic{Start: pos, End: pos, Message: fmt.Sprintf("%s: %s", c.file.Position(pos), msg)})
}

// pushContext opens a new compilation context and reserves local slot 0 per
// its kind: the empty string for a plain function (unused call-target
// reserve), "this" for a method or initializer, an empty reserve at
// top-level.
func (c *Compiler) pushContext(kind ctxKind, className string, hasSuper bool) {
	fc := &funcCtx{kind: kind, enclosing: c.cur, className: className, hasSuperclass: hasSuper}
	fc.chunkIdx = c.mod.AddChunk()

	reserved := ""
	if kind == ctxMethod || kind == ctxInitializer {
		reserved = "this"
	}
	fc.locals = append(fc.locals, localVar{name: reserved, depth: 0, slot: 0, initialized: true})

	c.cur = fc
}

func (c *Compiler) popContext() { c.cur = c.cur.enclosing }

func (c *Compiler) beginScope() { c.cur.scopeDepth++ }

// endScope pops every local declared in the scope being closed, emitting
// CLOSE_UPVALUE for locals captured by a nested closure and POP for the
// rest, in reverse declaration order.
func (c *Compiler) endScope() {
	c.cur.scopeDepth--
	for len(c.cur.locals) > 0 && c.cur.locals[len(c.cur.locals)-1].depth > c.cur.scopeDepth {
		last := c.cur.locals[len(c.cur.locals)-1]
		if last.captured {
			c.emit(OpCloseUpvalue)
		} else {
			c.emit(OpPop)
		}
		c.cur.locals = c.cur.locals[:len(c.cur.locals)-1]
	}
}

// addLocal declares name in the current scope, reporting a diagnostic if it
// shadows another local already declared at the same depth.
func (c *Compiler) addLocal(name string, pos token.Pos) {
	for i := len(c.cur.locals) - 1; i >= 0; i-- {
		l := c.cur.locals[i]
		if l.depth != -1 && l.depth < c.cur.scopeDepth {
			break
		}
		if l.depth == c.cur.scopeDepth && l.name == name {
			c.errorAt(pos, "Duplicate name in scope")
			break
		}
	}
	slot := len(c.cur.locals)
	c.cur.locals = append(c.cur.locals, localVar{name: name, depth: c.cur.scopeDepth, slot: slot})
}

// declareVariable records name as either a global (top-level, depth 0) or a
// new (uninitialized) local, returning which and, for a global, its
// identifier pool index.
func (c *Compiler) declareVariable(name string, pos token.Pos) (global bool, identIdx uint32) {
	if c.cur.kind == ctxTopLevel && c.cur.scopeDepth == 0 {
		return true, c.mod.Ident(name)
	}
	c.addLocal(name, pos)
	return false, 0
}

func (c *Compiler) markLastLocalInitialized() {
	if len(c.cur.locals) > 0 {
		c.cur.locals[len(c.cur.locals)-1].initialized = true
	}
}

// defineVariable finishes a declaration begun by declareVariable: a global
// is bound via DEFINE_GLOBAL (consuming the value left on the stack by the
// initializer); a local's value is already sitting in its slot, so only the
// bookkeeping needs to catch up.
func (c *Compiler) defineVariable(global bool, identIdx uint32) {
	if global {
		c.emit(OpDefineGlobal)
		c.chunk().EmitU32(identIdx)
		return
	}
	c.markLastLocalInitialized()
}

// resolveLocal searches fc's locals in reverse declaration order.
func (c *Compiler) resolveLocal(fc *funcCtx, name string, pos token.Pos) (slot int, ok bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		l := fc.locals[i]
		if l.name != name {
			continue
		}
		if !l.initialized {
			c.errorAt(pos, "Local not initialized")
		}
		return l.slot, true
	}
	return 0, false
}

// resolveUpvalue recursively searches enclosing contexts, capturing a local
// found in context k as Upvalue::Local in context k+1, then threading
// Upvalue::Upvalue through contexts k+2..current, deduplicating against each
// context's existing descriptors.
func (c *Compiler) resolveUpvalue(fc *funcCtx, name string, pos token.Pos) (index int, ok bool) {
	if fc.enclosing == nil {
		return 0, false
	}
	if slot, ok := c.resolveLocal(fc.enclosing, name, pos); ok {
		for i := range fc.enclosing.locals {
			if fc.enclosing.locals[i].slot == slot && fc.enclosing.locals[i].name == name {
				fc.enclosing.locals[i].captured = true
				break
			}
		}
		return c.addUpvalue(fc, UpvalueDesc{Source: UpvalueLocal, Index: uint32(slot)}), true
	}
	if idx, ok := c.resolveUpvalue(fc.enclosing, name, pos); ok {
		return c.addUpvalue(fc, UpvalueDesc{Source: UpvalueUpvalue, Index: uint32(idx)}), true
	}
	return 0, false
}

func (c *Compiler) addUpvalue(fc *funcCtx, desc UpvalueDesc) int {
	for i, uv := range fc.upvalues {
		if uv == desc {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, desc)
	return len(fc.upvalues) - 1
}

// resolveVariable returns the get/set opcode pair and operand for name,
// checking locals, then upvalues, then falling back to a global.
func (c *Compiler) resolveVariable(name string, pos token.Pos) (getOp, setOp Op, operand uint32) {
	if slot, ok := c.resolveLocal(c.cur, name, pos); ok {
		return OpGetLocal, OpSetLocal, uint32(slot)
	}
	if idx, ok := c.resolveUpvalue(c.cur, name, pos); ok {
		return OpGetUpvalue, OpSetUpvalue, uint32(idx)
	}
	return OpGetGlobal, OpSetGlobal, c.mod.Ident(name)
}

// --- statements ---

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		c.compileExpr(s.Expr)
		c.emit(OpPop)
	case *ast.PrintStmt:
		c.compileExpr(s.Expr)
		c.emit(OpPrint)
	case *ast.VarStmt:
		c.compileVarStmt(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, st := range s.Stmts {
			c.compileStmt(st)
		}
		c.endScope()
	case *ast.IfStmt:
		c.compileIfStmt(s)
	case *ast.WhileStmt:
		c.compileWhileStmt(s)
	case *ast.ReturnStmt:
		c.compileReturnStmt(s)
	case *ast.FunctionStmt:
		c.compileFunctionStmt(s)
	case *ast.ClassStmt:
		c.compileClassStmt(s)
	case *ast.ImportStmt:
		c.compileImportStmt(s)
	case *ast.BadStmt:
		// parser already reported this; nothing to emit.
	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", s))
	}
}

func (c *Compiler) compileVarStmt(s *ast.VarStmt) {
	global, identIdx := c.declareVariable(s.Name.Lit, s.Name.Start)
	if s.Init != nil {
		c.compileExpr(s.Init)
	} else {
		c.emit(OpNil)
	}
	c.defineVariable(global, identIdx)
}

func (c *Compiler) compileIfStmt(s *ast.IfStmt) {
	c.compileExpr(s.Cond)
	thenJump := c.chunk().EmitJump(OpJumpIfFalse)
	c.emit(OpPop)
	c.compileStmt(s.Then)

	if s.Alt != nil {
		elseJump := c.chunk().EmitJump(OpJump)
		c.chunk().PatchJump(thenJump)
		c.emit(OpPop)
		c.compileStmt(s.Alt)
		c.chunk().PatchJump(elseJump)
	} else {
		c.chunk().PatchJump(thenJump)
		c.emit(OpPop)
	}
}

func (c *Compiler) compileWhileStmt(s *ast.WhileStmt) {
	loopStart := c.chunk().Len()
	c.compileExpr(s.Cond)
	exitJump := c.chunk().EmitJump(OpJumpIfFalse)
	c.emit(OpPop)
	c.compileStmt(s.Body)
	c.chunk().EmitLoop(loopStart)
	c.chunk().PatchJump(exitJump)
	c.emit(OpPop)
}

func (c *Compiler) compileReturnStmt(s *ast.ReturnStmt) {
	if c.cur.kind == ctxTopLevel {
		c.errorAt(s.Return, "Can't return from top-level code")
		return
	}
	if s.Value != nil {
		if c.cur.kind == ctxInitializer {
			c.errorAt(s.Return, "Can't return a value from an initializer")
		}
		c.compileExpr(s.Value)
	} else if c.cur.kind == ctxInitializer {
		c.emit(OpGetLocal)
		c.chunk().EmitU32(0)
	} else {
		c.emit(OpNil)
	}
	c.emit(OpReturn)
}

// emitReturn appends the trailing "NIL; RETURN" (or, inside an initializer,
// "GET_LOCAL 0; RETURN") guaranteeing every function body terminates with a
// return even if its source never wrote one.
func (c *Compiler) emitReturn() {
	if c.cur.kind == ctxInitializer {
		c.emit(OpGetLocal)
		c.chunk().EmitU32(0)
	} else {
		c.emit(OpNil)
	}
	c.emit(OpReturn)
}

func (c *Compiler) compileFunctionStmt(s *ast.FunctionStmt) {
	global, identIdx := c.declareVariable(s.Name.Lit, s.Name.Start)
	if !global {
		c.markLastLocalInitialized()
	}
	c.compileFunction(s, ctxFunction, "", false)
	if global {
		c.emit(OpDefineGlobal)
		c.chunk().EmitU32(identIdx)
	}
}

// compileFunction compiles s's parameters and body in a new context, then
// emits CLOSURE (plus its upvalue descriptor table) into the enclosing
// chunk, leaving the new closure Value on the stack.
func (c *Compiler) compileFunction(s *ast.FunctionStmt, kind ctxKind, className string, hasSuper bool) {
	c.pushContext(kind, className, hasSuper)
	chunkIdx := c.cur.chunkIdx

	for _, p := range s.Params {
		c.addLocal(p.Lit, p.Start)
		c.markLastLocalInitialized()
	}
	for _, st := range s.Body.Stmts {
		c.compileStmt(st)
	}
	c.emitReturn()

	upvalues := c.cur.upvalues
	c.popContext()

	closureIdx := c.mod.AddClosure(ClosureInfo{
		Name:     s.Name.Lit,
		Chunk:    chunkIdx,
		Arity:    len(s.Params),
		Upvalues: upvalues,
	})

	c.emit(OpClosure)
	c.chunk().EmitU32(uint32(closureIdx))
	for _, uv := range upvalues {
		c.chunk().EmitByte(byte(uv.Source))
		c.chunk().EmitU24(uv.Index)
	}
}

func (c *Compiler) compileClassStmt(s *ast.ClassStmt) {
	name := s.Name.Lit
	classIdx := c.mod.AddClass(ClassInfo{Name: name})
	c.emit(OpClass)
	c.chunk().EmitU32(uint32(classIdx))

	global, identIdx := c.declareVariable(name, s.Name.Start)
	if !global {
		c.markLastLocalInitialized()
	} else {
		c.emit(OpDefineGlobal)
		c.chunk().EmitU32(identIdx)
	}

	hasSuper := s.Superclass != nil
	if hasSuper {
		if s.Superclass.Lit == name {
			c.errorAt(s.Superclass.Start, "A class can't inherit from itself")
		}
		supGet, _, supOperand := c.resolveVariable(s.Superclass.Lit, s.Superclass.Start)
		c.emit(supGet)
		c.chunk().EmitU32(supOperand)

		c.beginScope()
		c.addLocal("super", s.Superclass.Start)
		c.markLastLocalInitialized()

		classGet, _, classOperand := c.resolveVariable(name, s.Name.Start)
		c.emit(classGet)
		c.chunk().EmitU32(classOperand)
		c.emit(OpInherit)
	}

	classGet, _, classOperand := c.resolveVariable(name, s.Name.Start)
	c.emit(classGet)
	c.chunk().EmitU32(classOperand)
	for _, m := range s.Methods {
		kind := ctxMethod
		if m.Name.Lit == "init" {
			kind = ctxInitializer
		}
		c.compileFunction(m, kind, name, hasSuper)
		c.emit(OpMethod)
		c.chunk().EmitU32(c.mod.Ident(m.Name.Lit))
	}
	c.emit(OpPop)

	if hasSuper {
		c.endScope()
	}
}

func (c *Compiler) compileImportStmt(s *ast.ImportStmt) {
	path, _ := s.Path.Value.(string)
	pathIdx := c.mod.String(path)
	c.emit(OpImport)
	c.chunk().EmitU32(pathIdx)

	for _, id := range s.For {
		identIdx := c.mod.Ident(id.Lit)
		c.emit(OpImportGlobal)
		c.chunk().EmitU32(identIdx)
		global, gIdx := c.declareVariable(id.Lit, id.Start)
		c.defineVariable(global, gIdx)
	}
	c.emit(OpPop)
}

// --- expressions ---

func (c *Compiler) compileExpr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.LiteralExpr:
		c.compileLiteral(e)
	case *ast.GroupingExpr:
		c.compileExpr(e.Expr)
	case *ast.UnaryExpr:
		c.compileExpr(e.Right)
		switch e.Type {
		case token.MINUS:
			c.emit(OpNegate)
		case token.BANG:
			c.emit(OpNot)
		}
	case *ast.BinaryExpr:
		c.compileBinary(e)
	case *ast.LogicalExpr:
		c.compileLogical(e)
	case *ast.IdentExpr:
		getOp, _, operand := c.resolveVariable(e.Lit, e.Start)
		c.emit(getOp)
		c.chunk().EmitU32(operand)
	case *ast.ThisExpr:
		if c.cur.kind != ctxMethod && c.cur.kind != ctxInitializer {
			c.errorAt(e.Start, "Can't use 'this' outside of a method")
		}
		getOp, _, operand := c.resolveVariable("this", e.Start)
		c.emit(getOp)
		c.chunk().EmitU32(operand)
	case *ast.SuperExpr:
		c.compileSuperExpr(e)
	case *ast.AssignExpr:
		c.compileExpr(e.Value)
		_, setOp, operand := c.resolveVariable(e.Name.Lit, e.Name.Start)
		c.emit(setOp)
		c.chunk().EmitU32(operand)
	case *ast.CallExpr:
		c.compileCall(e)
	case *ast.GetExpr:
		c.compileExpr(e.Object)
		c.emit(OpGetProperty)
		c.chunk().EmitU32(c.mod.Ident(e.Name.Lit))
	case *ast.SetExpr:
		c.compileExpr(e.Object)
		c.compileExpr(e.Value)
		c.emit(OpSetProperty)
		c.chunk().EmitU32(c.mod.Ident(e.Name.Lit))
	case *ast.ListExpr:
		for _, it := range e.Items {
			c.compileExpr(it)
		}
		c.emit(OpNewList)
		c.chunk().EmitU16(uint16(len(e.Items)))
	case *ast.ListGetExpr:
		c.compileExpr(e.List)
		c.compileExpr(e.Index)
		c.emit(OpIndexGet)
	case *ast.ListSetExpr:
		c.compileExpr(e.List)
		c.compileExpr(e.Index)
		c.compileExpr(e.Value)
		c.emit(OpIndexSet)
	case *ast.BadExpr:
		c.emit(OpNil)
	default:
		panic(fmt.Sprintf("compiler: unhandled expression %T", e))
	}
}

func (c *Compiler) compileLiteral(e *ast.LiteralExpr) {
	switch e.Type {
	case token.NIL:
		c.emit(OpNil)
	case token.TRUE:
		c.emit(OpTrue)
	case token.FALSE:
		c.emit(OpFalse)
	case token.NUMBER:
		idx := c.mod.Number(e.Value.(float64))
		c.emit(OpNumber)
		c.chunk().EmitU16(uint16(idx))
	case token.STRING:
		idx := c.mod.String(e.Value.(string))
		c.emit(OpString)
		c.chunk().EmitU32(idx)
	default:
		panic(fmt.Sprintf("compiler: unhandled literal type %v", e.Type))
	}
}

func (c *Compiler) compileBinary(e *ast.BinaryExpr) {
	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	switch e.Type {
	case token.PLUS:
		c.emit(OpAdd)
	case token.MINUS:
		c.emit(OpSubtract)
	case token.STAR:
		c.emit(OpMultiply)
	case token.SLASH:
		c.emit(OpDivide)
	case token.EQEQ:
		c.emit(OpEqual)
	case token.BANGEQ:
		c.emit(OpEqual)
		c.emit(OpNot)
	case token.LT:
		c.emit(OpLess)
	case token.LE:
		c.emit(OpGreater)
		c.emit(OpNot)
	case token.GT:
		c.emit(OpGreater)
	case token.GE:
		c.emit(OpLess)
		c.emit(OpNot)
	default:
		panic(fmt.Sprintf("compiler: unhandled binary operator %v", e.Type))
	}
}

// compileLogical lowers short-circuiting and/or exactly per the control-flow
// lowering rules: "a and b" leaves a's falsy value on the stack without
// evaluating b; "a or b" leaves a's truthy value on the stack the same way.
func (c *Compiler) compileLogical(e *ast.LogicalExpr) {
	c.compileExpr(e.Left)
	switch e.Type {
	case token.AND:
		end := c.chunk().EmitJump(OpJumpIfFalse)
		c.emit(OpPop)
		c.compileExpr(e.Right)
		c.chunk().PatchJump(end)
	case token.OR:
		elseJump := c.chunk().EmitJump(OpJumpIfFalse)
		end := c.chunk().EmitJump(OpJump)
		c.chunk().PatchJump(elseJump)
		c.emit(OpPop)
		c.compileExpr(e.Right)
		c.chunk().PatchJump(end)
	default:
		panic(fmt.Sprintf("compiler: unhandled logical operator %v", e.Type))
	}
}

func (c *Compiler) compileSuperExpr(e *ast.SuperExpr) {
	if c.cur.className == "" {
		c.errorAt(e.Start, "Can't use 'super' outside of a class")
	} else if !c.cur.hasSuperclass {
		c.errorAt(e.Start, "Can't use 'super' in a class with no superclass")
	}
	thisGet, _, thisOperand := c.resolveVariable("this", e.Start)
	c.emit(thisGet)
	c.chunk().EmitU32(thisOperand)
	superGet, _, superOperand := c.resolveVariable("super", e.Start)
	c.emit(superGet)
	c.chunk().EmitU32(superOperand)
	c.emit(OpGetSuper)
	c.chunk().EmitU32(c.mod.Ident(e.Method.Lit))
}

func (c *Compiler) compileCall(e *ast.CallExpr) {
	if se, ok := e.Callee.(*ast.SuperExpr); ok {
		if c.cur.className == "" {
			c.errorAt(se.Start, "Can't use 'super' outside of a class")
		} else if !c.cur.hasSuperclass {
			c.errorAt(se.Start, "Can't use 'super' in a class with no superclass")
		}
		thisGet, _, thisOperand := c.resolveVariable("this", se.Start)
		c.emit(thisGet)
		c.chunk().EmitU32(thisOperand)
		for _, a := range e.Args {
			c.compileExpr(a)
		}
		superGet, _, superOperand := c.resolveVariable("super", se.Start)
		c.emit(superGet)
		c.chunk().EmitU32(superOperand)
		c.emit(OpSuperInvoke)
		c.chunk().EmitByte(byte(len(e.Args)))
		c.chunk().EmitU32(c.mod.Ident(se.Method.Lit))
		return
	}

	if ge, ok := e.Callee.(*ast.GetExpr); ok {
		c.compileExpr(ge.Object)
		for _, a := range e.Args {
			c.compileExpr(a)
		}
		c.emit(OpInvoke)
		c.chunk().EmitByte(byte(len(e.Args)))
		c.chunk().EmitU32(c.mod.Ident(ge.Name.Lit))
		return
	}

	c.compileExpr(e.Callee)
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.emit(OpCall)
	c.chunk().EmitByte(byte(len(e.Args)))
}
