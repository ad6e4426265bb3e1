package machine

import (
	"fmt"

	"github.com/loxvm/lox/lang/compiler"
)

// ObjType is the opaque-but-comparable type tag every heap allocation
// carries in its header.
type ObjType uint8

const (
	ObjString ObjType = iota
	ObjArray
	ObjImport
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case ObjString:
		return "string"
	case ObjArray:
		return "array"
	case ObjImport:
		return "import"
	case ObjFunction:
		return "function"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	default:
		return "unknown"
	}
}

// Obj is satisfied by every heap-allocated runtime object. The trace method
// is the vtable half of the allocation header described in §4.3: Go
// interface dispatch stands in for the hand-rolled function-pointer vtable,
// since the concrete type is already known by the interface's method table.
type Obj interface {
	fmt.Stringer
	Type() ObjType
	TypeName() string
	Trace(mark func(Value))
	objHeader() *header
}

// header is the out-of-line-markable allocation header every managed object
// carries. arena/offset/length are only meaningful when arena >= 0, marking
// this object as the owner of a span of arena-backed bytes that must be
// returned to the arena's free list (or, at heap teardown, whose arena must
// be unmapped) once the object is no longer reachable.
type header struct {
	slot  int
	arena int
	start int
	n     int
}

func (h *header) objHeader() *header { return h }

func newHeader() header { return header{slot: -1, arena: -1} }

// LoxString is a growable UTF-8 byte buffer allocated on the managed heap.
type LoxString struct {
	header
	b []byte
}

func (s *LoxString) String() string    { return string(s.b) }
func (s *LoxString) Type() ObjType     { return ObjString }
func (s *LoxString) TypeName() string  { return "string" }
func (s *LoxString) Trace(func(Value)) {}
func (s *LoxString) Bytes() []byte     { return s.b }
func (s *LoxString) Len() int          { return len(s.b) }

// LoxArray is a growable array of Values allocated on the managed heap,
// backing Lox's list literals and indexed get/set (supplementing the
// runtime object kinds named in the data model; see DESIGN.md).
type LoxArray struct {
	header
	items []Value
}

func (a *LoxArray) String() string {
	s := "["
	for i, v := range a.items {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + "]"
}
func (a *LoxArray) Type() ObjType    { return ObjArray }
func (a *LoxArray) TypeName() string { return "list" }
func (a *LoxArray) Trace(mark func(Value)) {
	for _, v := range a.items {
		mark(v)
	}
}
func (a *LoxArray) Len() int           { return len(a.items) }
func (a *LoxArray) Get(i int) Value    { return a.items[i] }
func (a *LoxArray) Set(i int, v Value) { a.items[i] = v }

// Function is a compiled function body: its chunk index, arity, and the
// Import it was defined in (needed to resolve its globals and constant
// pools at call time).
type Function struct {
	header
	Name   string
	Chunk  int
	Import *Import
	Arity  int
}

func (f *Function) String() string   { return fmt.Sprintf("<fn %s>", f.Name) }
func (f *Function) Type() ObjType    { return ObjFunction }
func (f *Function) TypeName() string { return "function" }
func (f *Function) Trace(mark func(Value)) {
	if f.Import != nil {
		mark(FromObj(f.Import))
	}
}

// Upvalue is Open(stack_index) while its captured local is live on the
// stack, or Closed(value) after that local has left scope.
type Upvalue struct {
	header
	Open     bool
	StackIdx int
	Closed   Value
	stack    *[]Value
}

func (u *Upvalue) String() string   { return "<upvalue>" }
func (u *Upvalue) Type() ObjType    { return ObjUpvalue }
func (u *Upvalue) TypeName() string { return "upvalue" }
func (u *Upvalue) Trace(mark func(Value)) {
	if u.Open {
		mark((*u.stack)[u.StackIdx])
	} else {
		mark(u.Closed)
	}
}

// Get reads the upvalue's current value, from the stack if still open.
func (u *Upvalue) Get() Value {
	if u.Open {
		return (*u.stack)[u.StackIdx]
	}
	return u.Closed
}

// Set writes the upvalue's current value, to the stack if still open.
func (u *Upvalue) Set(v Value) {
	if u.Open {
		(*u.stack)[u.StackIdx] = v
		return
	}
	u.Closed = v
}

// Close converts an open upvalue into a closed one, copying the current
// stack value into the upvalue's own storage.
func (u *Upvalue) Close() {
	if u.Open {
		u.Closed = (*u.stack)[u.StackIdx]
		u.Open = false
		u.stack = nil
	}
}

// Closure is a Function plus its captured upvalues.
type Closure struct {
	header
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string   { return c.Fn.String() }
func (c *Closure) Type() ObjType    { return ObjClosure }
func (c *Closure) TypeName() string { return "function" }
func (c *Closure) Trace(mark func(Value)) {
	mark(FromObj(c.Fn))
	for _, uv := range c.Upvalues {
		mark(FromObj(uv))
	}
}

// Class is a declared class: its method table and an optional superclass
// reference, so GET_SUPER/SUPER_INVOKE resolve against the superclass's own
// method table rather than a copy living on every subclass.
type Class struct {
	header
	Name    string
	Methods *Table
	Super   *Class
}

func (c *Class) String() string   { return fmt.Sprintf("<class %s>", c.Name) }
func (c *Class) Type() ObjType    { return ObjClass }
func (c *Class) TypeName() string { return "class" }
func (c *Class) Trace(mark func(Value)) {
	if c.Methods != nil {
		c.Methods.Each(func(_ Symbol, v Value) { mark(v) })
	}
	if c.Super != nil {
		mark(FromObj(c.Super))
	}
}

// Instance is an object created by calling a Class: a class reference plus
// its own fields table.
type Instance struct {
	header
	Class  *Class
	Fields *Table
}

func (i *Instance) String() string   { return fmt.Sprintf("<%s instance>", i.Class.Name) }
func (i *Instance) Type() ObjType    { return ObjInstance }
func (i *Instance) TypeName() string { return "instance" }
func (i *Instance) Trace(mark func(Value)) {
	mark(FromObj(i.Class))
	if i.Fields != nil {
		i.Fields.Each(func(_ Symbol, v Value) { mark(v) })
	}
}

// BoundMethod pairs a receiver instance with the closure Value found on its
// class's method table, produced by a bare (non-call) GET_SUPER or a
// property read that resolves to a method outside the fused INVOKE path.
type BoundMethod struct {
	header
	Receiver Value
	Method   Value
}

func (b *BoundMethod) String() string   { return b.Method.String() }
func (b *BoundMethod) Type() ObjType    { return ObjBoundMethod }
func (b *BoundMethod) TypeName() string { return "function" }
func (b *BoundMethod) Trace(mark func(Value)) {
	mark(b.Receiver)
	mark(b.Method)
}

// Import is the runtime instance of a compiled Module: its globals table,
// and the per-module interned symbols and GC strings parallel to the
// Module's identifier and string constant pools.
type Import struct {
	header
	Name    string
	Dir     string
	Module  *compiler.Module
	Globals *Table
	Symbols []Symbol
	Strings []*LoxString
}

func (im *Import) String() string   { return fmt.Sprintf("<import %s>", im.Name) }
func (im *Import) Type() ObjType    { return ObjImport }
func (im *Import) TypeName() string { return "import" }
func (im *Import) Trace(mark func(Value)) {
	if im.Globals != nil {
		im.Globals.Each(func(_ Symbol, v Value) { mark(v) })
	}
	for _, s := range im.Strings {
		mark(FromObj(s))
	}
}
