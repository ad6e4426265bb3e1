package machine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loxvm/lox/lang/compiler"
	"github.com/loxvm/lox/lang/parser"
	"github.com/loxvm/lox/lang/token"
)

// VM executes compiled Modules against a managed Heap. A VM owns exactly one
// Fiber; concurrent scripts are out of scope (see DESIGN.md).
type VM struct {
	heap     *Heap
	interner *Interner
	fiber    *Fiber

	initSym Symbol

	Stdout io.Writer
	Logger *slog.Logger
}

// NewVM returns a VM with a fresh heap, interner and fiber.
func NewVM() *VM {
	heap := NewHeap()
	interner := NewInterner()
	vm := &VM{
		heap:     heap,
		interner: interner,
		fiber:    NewFiber(heap),
		Stdout:   os.Stdout,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	vm.initSym = interner.Intern("init")
	return vm
}

// Close releases every resource the VM's heap owns (mmap'd arenas, the
// per-fiber stack block). It must be called exactly once, when the VM will
// no longer be used.
func (vm *VM) Close() error { return vm.heap.Close() }

// bindModule (re)binds a compiled Module onto imp: interning every
// identifier in the module's pool into the VM's shared Interner (so the
// same name always maps to the same Symbol across every loaded module or
// REPL line) and allocating a managed LoxString for every entry of the
// string pool. imp's own Globals table is left untouched, so rebinding a
// session's Import across REPL lines preserves previously defined globals.
func (vm *VM) bindModule(imp *Import, mod *compiler.Module) {
	imp.Module = mod
	imp.Symbols = make([]Symbol, len(mod.Idents))
	for i, s := range mod.Idents {
		imp.Symbols[i] = vm.interner.Intern(s)
	}
	imp.Strings = make([]*LoxString, len(mod.Strings))
	for i, s := range mod.Strings {
		imp.Strings[i] = vm.heap.NewString(s)
	}
}

// loadImport wraps a compiled Module in a fresh runtime Import.
func (vm *VM) loadImport(name string, mod *compiler.Module) *Import {
	imp := vm.heap.NewImport(name)
	vm.bindModule(imp, mod)
	return imp
}

// Interpret runs mod as the program's entry module, named name, resolving
// any of its imports relative to dir (the directory the source file lives
// in). It returns the script's result: always Nil, since RETURN_TOP's
// implicit return value is nil (see DESIGN.md); a failed statement instead
// reports a non-nil error.
func (vm *VM) Interpret(ctx context.Context, mod *compiler.Module, name, dir string) (Value, error) {
	imp := vm.loadImport(name, mod)
	imp.Dir = dir
	return vm.run1(ctx, imp)
}

// NewSession returns a persistent Import for a REPL session: its Globals
// table (and the Symbols it accumulates via InterpretSession) live for the
// whole session, so a variable declared on one line is visible on the next.
func (vm *VM) NewSession(name, dir string) *Import {
	imp := vm.heap.NewImport(name)
	imp.Dir = dir
	return imp
}

// InterpretSession runs mod as one line of a REPL session owning sess,
// rebinding sess's Module/Symbols/Strings to mod but reusing its Globals
// table, so variables persist across lines the way a real REPL requires.
func (vm *VM) InterpretSession(ctx context.Context, sess *Import, mod *compiler.Module) (Value, error) {
	vm.bindModule(sess, mod)
	return vm.run1(ctx, sess)
}

// run1 pushes a top-level closure over imp's chunk 0 and drives the
// dispatch loop to completion. On error, the frames, stack slots and open
// upvalues it pushed are unwound.
func (vm *VM) run1(ctx context.Context, imp *Import) (Value, error) {
	frames, top := len(vm.fiber.frames), len(vm.fiber.stack)
	fn := vm.heap.NewFunction(imp.Name, 0, imp, 0)
	cl := vm.heap.NewClosure(fn, nil)
	vm.fiber.push(FromObj(cl))
	vm.fiber.frames = append(vm.fiber.frames, CallFrame{closure: cl, ip: 0, base: len(vm.fiber.stack) - 1})
	v, err := vm.run(ctx)
	if err != nil {
		vm.fiber.closeUpvaluesFrom(top)
		vm.fiber.truncate(top)
		vm.fiber.frames = vm.fiber.frames[:frames]
	}
	return v, err
}

func findMethod(class *Class, sym Symbol) (Value, bool) {
	for c := class; c != nil; c = c.Super {
		if v, ok := c.Methods.Get(sym); ok {
			return v, true
		}
	}
	return Value{}, false
}

func chunkOf(frame *CallFrame) *compiler.Chunk {
	return frame.closure.Fn.Import.Module.Chunks[frame.closure.Fn.Chunk]
}

// run is a flat trampoline over the fiber's frame stack: it executes
// instructions starting at the top frame until that exact frame (the one
// live when run was entered, "floor") and everything it calls have
// returned. Nested invocations (e.g. a freshly loaded module's top-level
// body, bootstrapped by OpImport) call run re-entrantly with a deeper
// floor, so a return that only unwinds back to floor stops this call
// without disturbing whatever frame is paused below it.
func (vm *VM) run(ctx context.Context) (Value, error) {
	floor := len(vm.fiber.frames) - 1
	frame, err := vm.fiber.currentFrame()
	if err != nil {
		return Value{}, err
	}
	chunk := chunkOf(frame)

	markRoots := func(mark func(Value)) {
		for _, v := range vm.fiber.stack {
			mark(v)
		}
		for _, fr := range vm.fiber.frames {
			mark(FromObj(fr.closure))
		}
		for _, uv := range vm.fiber.openUpvalues {
			mark(FromObj(uv))
		}
		for _, imp := range vm.fiber.imports {
			mark(FromObj(imp))
		}
	}

	for {
		if vm.heap.ShouldCollect() {
			before := vm.heap.BytesUsed()
			vm.heap.Collect(markRoots)
			vm.Logger.Debug("gc collect", "bytes_before", before, "bytes_after", vm.heap.BytesUsed())
		}

		op := compiler.Op(chunk.Code[frame.ip])
		offset := frame.ip
		frame.ip++

		switch op {
		case compiler.OpNil:
			vm.fiber.push(Nil())
		case compiler.OpTrue:
			vm.fiber.push(Bool(true))
		case compiler.OpFalse:
			vm.fiber.push(Bool(false))
		case compiler.OpPop:
			if _, err := vm.fiber.pop(); err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}

		case compiler.OpNumber:
			idx := chunk.ReadU16(frame.ip)
			frame.ip += 2
			if int(idx) >= len(frame.closure.Fn.Import.Module.Numbers) {
				return Value{}, runtimeErr(offset, ErrUnexpectedConstant, "number index %d", idx)
			}
			vm.fiber.push(Number(frame.closure.Fn.Import.Module.Numbers[idx]))

		case compiler.OpString:
			idx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			if int(idx) >= len(frame.closure.Fn.Import.Strings) {
				return Value{}, runtimeErr(offset, ErrUnexpectedConstant, "string index %d", idx)
			}
			vm.fiber.push(FromObj(frame.closure.Fn.Import.Strings[idx]))

		case compiler.OpAdd:
			b, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			a, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			if a.IsNumber() && b.IsNumber() {
				vm.fiber.push(Number(a.Num + b.Num))
				break
			}
			as, aok := a.Obj.(*LoxString)
			bs, bok := b.Obj.(*LoxString)
			if aok && bok {
				vm.fiber.push(FromObj(vm.heap.ConcatStrings(as.String(), bs.String())))
				break
			}
			return Value{}, runtimeErr(offset, ErrUnexpectedValue, "operands to '+' must both be numbers or both be strings")

		case compiler.OpSubtract, compiler.OpMultiply, compiler.OpDivide, compiler.OpLess, compiler.OpGreater:
			b, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			a, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			if !a.IsNumber() || !b.IsNumber() {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "operands must be numbers")
			}
			switch op {
			case compiler.OpSubtract:
				vm.fiber.push(Number(a.Num - b.Num))
			case compiler.OpMultiply:
				vm.fiber.push(Number(a.Num * b.Num))
			case compiler.OpDivide:
				vm.fiber.push(Number(a.Num / b.Num))
			case compiler.OpLess:
				vm.fiber.push(Bool(a.Num < b.Num))
			case compiler.OpGreater:
				vm.fiber.push(Bool(a.Num > b.Num))
			}

		case compiler.OpNegate:
			a, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			if !a.IsNumber() {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "operand to unary '-' must be a number")
			}
			vm.fiber.push(Number(-a.Num))

		case compiler.OpNot:
			a, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			vm.fiber.push(Bool(!a.Truthy()))

		case compiler.OpEqual:
			b, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			a, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			vm.fiber.push(Bool(Equal(a, b)))

		case compiler.OpGetLocal:
			slot := chunk.ReadU32(frame.ip)
			frame.ip += 4
			vm.fiber.push(vm.fiber.stack[frame.base+int(slot)])

		case compiler.OpSetLocal:
			slot := chunk.ReadU32(frame.ip)
			frame.ip += 4
			v, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			vm.fiber.stack[frame.base+int(slot)] = v

		case compiler.OpDefineGlobal:
			idx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			v, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			sym := frame.closure.Fn.Import.Symbols[idx]
			frame.closure.Fn.Import.Globals.Set(sym, v)

		case compiler.OpGetGlobal:
			idx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			sym := frame.closure.Fn.Import.Symbols[idx]
			v, ok := frame.closure.Fn.Import.Globals.Get(sym)
			if !ok {
				return Value{}, runtimeErr(offset, ErrGlobalNotDefined, "%s", vm.interner.Name(sym))
			}
			vm.fiber.push(v)

		case compiler.OpSetGlobal:
			idx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			sym := frame.closure.Fn.Import.Symbols[idx]
			v, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			if _, ok := frame.closure.Fn.Import.Globals.Get(sym); !ok {
				return Value{}, runtimeErr(offset, ErrGlobalNotDefined, "%s", vm.interner.Name(sym))
			}
			frame.closure.Fn.Import.Globals.Set(sym, v)

		case compiler.OpGetUpvalue:
			idx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			vm.fiber.push(frame.closure.Upvalues[idx].Get())

		case compiler.OpSetUpvalue:
			idx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			v, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			frame.closure.Upvalues[idx].Set(v)

		case compiler.OpCloseUpvalue:
			vm.fiber.closeUpvaluesFrom(len(vm.fiber.stack) - 1)
			if _, err := vm.fiber.pop(); err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}

		case compiler.OpJump:
			off := chunk.ReadI16(frame.ip)
			frame.ip += 2
			frame.ip += int(off)

		case compiler.OpJumpIfFalse:
			off := chunk.ReadI16(frame.ip)
			frame.ip += 2
			cond, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			if !cond.Truthy() {
				frame.ip += int(off)
			}

		case compiler.OpCall:
			argCount := int(chunk.Code[frame.ip])
			frame.ip++
			if err := ctx.Err(); err != nil {
				return Value{}, err
			}
			callee, err := vm.fiber.peek(argCount)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			if err := vm.callValue(offset, callee, argCount); err != nil {
				return Value{}, err
			}
			frame, chunk = vm.refresh()

		case compiler.OpInvoke:
			argCount := int(chunk.Code[frame.ip])
			frame.ip++
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			if err := ctx.Err(); err != nil {
				return Value{}, err
			}
			if err := vm.invoke(offset, frame, identIdx, argCount); err != nil {
				return Value{}, err
			}
			frame, chunk = vm.refresh()

		case compiler.OpSuperInvoke:
			argCount := int(chunk.Code[frame.ip])
			frame.ip++
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			if err := ctx.Err(); err != nil {
				return Value{}, err
			}
			if err := vm.superInvoke(offset, frame, identIdx, argCount); err != nil {
				return Value{}, err
			}
			frame, chunk = vm.refresh()

		case compiler.OpClosure:
			closureIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			info := frame.closure.Fn.Import.Module.Closures[closureIdx]
			frame.ip += 4 * len(info.Upvalues)

			fn := vm.heap.NewFunction(info.Name, info.Chunk, frame.closure.Fn.Import, info.Arity)
			upvalues := make([]*Upvalue, len(info.Upvalues))
			for i, d := range info.Upvalues {
				if d.Source == compiler.UpvalueLocal {
					upvalues[i] = vm.fiber.findOrCreateUpvalue(vm.heap, frame.base+int(d.Index))
				} else {
					upvalues[i] = frame.closure.Upvalues[d.Index]
				}
			}
			vm.fiber.push(FromObj(vm.heap.NewClosure(fn, upvalues)))

		case compiler.OpReturn, compiler.OpReturnTop:
			var result Value
			if op == compiler.OpReturn {
				v, err := vm.fiber.pop()
				if err != nil {
					return Value{}, runtimeErr(offset, err, "")
				}
				result = v
			} else {
				result = Nil()
			}
			vm.fiber.closeUpvaluesFrom(frame.base)
			vm.fiber.truncate(frame.base)
			vm.fiber.frames = vm.fiber.frames[:len(vm.fiber.frames)-1]
			if len(vm.fiber.frames) <= floor {
				return result, nil
			}
			vm.fiber.push(result)
			frame, chunk = vm.refresh()

		case compiler.OpClass:
			classIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			info := frame.closure.Fn.Import.Module.Classes[classIdx]
			vm.fiber.push(FromObj(vm.heap.NewClass(info.Name)))

		case compiler.OpInherit:
			subVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			supVal, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			sub, ok := subVal.Obj.(*Class)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "not a class")
			}
			sup, ok := supVal.Obj.(*Class)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "superclass must be a class")
			}
			sub.Super = sup

		case compiler.OpMethod:
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			closureVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			classVal, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			class, ok := classVal.Obj.(*Class)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "not a class")
			}
			sym := frame.closure.Fn.Import.Symbols[identIdx]
			class.Methods.Set(sym, closureVal)

		case compiler.OpGetProperty:
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			objVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			inst, ok := objVal.Obj.(*Instance)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "only instances have properties")
			}
			sym := frame.closure.Fn.Import.Symbols[identIdx]
			if v, ok := inst.Fields.Get(sym); ok {
				vm.fiber.push(v)
				break
			}
			method, ok := findMethod(inst.Class, sym)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUndefinedProperty, "%s", vm.interner.Name(sym))
			}
			vm.fiber.push(FromObj(vm.heap.NewBoundMethod(objVal, method)))

		case compiler.OpSetProperty:
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			val, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			objVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			inst, ok := objVal.Obj.(*Instance)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "only instances have properties")
			}
			sym := frame.closure.Fn.Import.Symbols[identIdx]
			inst.Fields.Set(sym, val)
			vm.fiber.push(val)

		case compiler.OpGetSuper:
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			supVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			thisVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			sup, ok := supVal.Obj.(*Class)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "superclass must be a class")
			}
			sym := frame.closure.Fn.Import.Symbols[identIdx]
			method, ok := findMethod(sup, sym)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUndefinedProperty, "%s", vm.interner.Name(sym))
			}
			vm.fiber.push(FromObj(vm.heap.NewBoundMethod(thisVal, method)))

		case compiler.OpPrint:
			v, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			fmt.Fprintln(vm.Stdout, v.String())

		case compiler.OpImport:
			strIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			path := frame.closure.Fn.Import.Module.Strings[strIdx]
			imp, err := vm.resolveImport(ctx, frame.closure.Fn.Import, path)
			if err != nil {
				return Value{}, err
			}
			vm.fiber.push(FromObj(imp))
			frame, chunk = vm.refresh()

		case compiler.OpImportGlobal:
			identIdx := chunk.ReadU32(frame.ip)
			frame.ip += 4
			impVal, err := vm.fiber.peek(0)
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			imp, ok := impVal.Obj.(*Import)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "not an import")
			}
			sym := frame.closure.Fn.Import.Symbols[identIdx]
			v, ok := imp.Globals.Get(sym)
			if !ok {
				return Value{}, runtimeErr(offset, ErrGlobalNotDefined, "%s in %s", vm.interner.Name(sym), imp.Name)
			}
			vm.fiber.push(v)

		case compiler.OpNewList:
			count := int(chunk.ReadU16(frame.ip))
			frame.ip += 2
			items := make([]Value, count)
			for i := count - 1; i >= 0; i-- {
				v, err := vm.fiber.pop()
				if err != nil {
					return Value{}, runtimeErr(offset, err, "")
				}
				items[i] = v
			}
			vm.fiber.push(FromObj(vm.heap.NewArray(items)))

		case compiler.OpIndexGet:
			idxVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			listVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			arr, ok := listVal.Obj.(*LoxArray)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "only lists can be indexed")
			}
			i, err := indexOf(idxVal, arr.Len())
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			vm.fiber.push(arr.Get(i))

		case compiler.OpIndexSet:
			val, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			idxVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			listVal, err := vm.fiber.pop()
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			arr, ok := listVal.Obj.(*LoxArray)
			if !ok {
				return Value{}, runtimeErr(offset, ErrUnexpectedValue, "only lists can be indexed")
			}
			i, err := indexOf(idxVal, arr.Len())
			if err != nil {
				return Value{}, runtimeErr(offset, err, "")
			}
			arr.Set(i, val)
			vm.fiber.push(val)

		default:
			return Value{}, runtimeErr(offset, ErrUnimplemented, "opcode %s", op)
		}
	}
}

// refresh re-reads the current frame and its chunk after an operation that
// may have pushed or popped a call frame.
func (vm *VM) refresh() (*CallFrame, *compiler.Chunk) {
	frame := &vm.fiber.frames[len(vm.fiber.frames)-1]
	return frame, chunkOf(frame)
}

func indexOf(v Value, length int) (int, error) {
	if !v.IsNumber() {
		return 0, ErrUnexpectedValue
	}
	i := int(v.Num)
	if i < 0 || i >= length {
		return 0, ErrIndexOutOfRange
	}
	return i, nil
}

// callValue dispatches a CALL instruction's callee, which may be a
// closure, a class (instantiation, invoking "init" if one is defined) or a
// bound method.
func (vm *VM) callValue(offset int, callee Value, argCount int) error {
	if !callee.IsObject() {
		return runtimeErr(offset, ErrInvalidCallee, "%s is not callable", callee.TypeName())
	}
	switch obj := callee.Obj.(type) {
	case *Closure:
		return vm.callClosure(offset, obj, argCount)
	case *Class:
		inst := vm.heap.NewInstance(obj)
		vm.fiber.stack[len(vm.fiber.stack)-argCount-1] = FromObj(inst)
		if initV, ok := findMethod(obj, vm.initSym); ok {
			cl, ok := initV.Obj.(*Closure)
			if !ok {
				return runtimeErr(offset, ErrClosureConstExpected, "init")
			}
			return vm.callClosure(offset, cl, argCount)
		}
		if argCount != 0 {
			return runtimeErr(offset, ErrIncorrectArity, "%s has no initializer, expected 0 arguments, got %d", obj.Name, argCount)
		}
		return nil
	case *BoundMethod:
		vm.fiber.stack[len(vm.fiber.stack)-argCount-1] = obj.Receiver
		cl, ok := obj.Method.Obj.(*Closure)
		if !ok {
			return runtimeErr(offset, ErrClosureConstExpected, "bound method")
		}
		return vm.callClosure(offset, cl, argCount)
	default:
		return runtimeErr(offset, ErrInvalidCallee, "%s is not callable", callee.TypeName())
	}
}

func (vm *VM) callClosure(offset int, cl *Closure, argCount int) error {
	if argCount != cl.Fn.Arity {
		return runtimeErr(offset, ErrIncorrectArity, "%s expects %d arguments, got %d", cl.Fn.Name, cl.Fn.Arity, argCount)
	}
	base := len(vm.fiber.stack) - argCount - 1
	vm.fiber.frames = append(vm.fiber.frames, CallFrame{closure: cl, ip: 0, base: base})
	return nil
}

func (vm *VM) invoke(offset int, frame *CallFrame, identIdx uint32, argCount int) error {
	receiver, err := vm.fiber.peek(argCount)
	if err != nil {
		return runtimeErr(offset, err, "")
	}
	inst, ok := receiver.Obj.(*Instance)
	if !ok {
		return runtimeErr(offset, ErrUnexpectedValue, "only instances have methods")
	}
	sym := frame.closure.Fn.Import.Symbols[identIdx]
	if v, ok := inst.Fields.Get(sym); ok {
		vm.fiber.stack[len(vm.fiber.stack)-argCount-1] = v
		return vm.callValue(offset, v, argCount)
	}
	method, ok := findMethod(inst.Class, sym)
	if !ok {
		return runtimeErr(offset, ErrUndefinedProperty, "%s", vm.interner.Name(sym))
	}
	cl, ok := method.Obj.(*Closure)
	if !ok {
		return runtimeErr(offset, ErrClosureConstExpected, "method %s", vm.interner.Name(sym))
	}
	return vm.callClosure(offset, cl, argCount)
}

func (vm *VM) superInvoke(offset int, frame *CallFrame, identIdx uint32, argCount int) error {
	supVal, err := vm.fiber.pop()
	if err != nil {
		return runtimeErr(offset, err, "")
	}
	sup, ok := supVal.Obj.(*Class)
	if !ok {
		return runtimeErr(offset, ErrUnexpectedValue, "superclass must be a class")
	}
	sym := frame.closure.Fn.Import.Symbols[identIdx]
	method, ok := findMethod(sup, sym)
	if !ok {
		return runtimeErr(offset, ErrUndefinedProperty, "%s", vm.interner.Name(sym))
	}
	cl, ok := method.Obj.(*Closure)
	if !ok {
		return runtimeErr(offset, ErrClosureConstExpected, "method %s", vm.interner.Name(sym))
	}
	return vm.callClosure(offset, cl, argCount)
}

// resolveImport resolves path relative to the importing module's directory,
// returning the cached Import if it was already loaded, and otherwise
// parsing, compiling and running the target file's top-level body to
// populate its globals before caching and returning it.
func (vm *VM) resolveImport(ctx context.Context, from *Import, path string) (*Import, error) {
	absPath := resolveImportPath(from.Dir, path)
	if cached, ok := vm.fiber.imports[absPath]; ok {
		return cached, nil
	}

	src, err := os.ReadFile(absPath)
	if err != nil {
		return nil, runtimeErr(0, ErrUnknownImport, "%s: %v", path, err)
	}

	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, absPath, src)
	if err != nil {
		return nil, err
	}
	mod, err := compiler.Compile(fset.File(chunk.EOF), chunk)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(absPath), ".lox")
	imp := vm.loadImport(name, mod)
	imp.Dir = filepath.Dir(absPath)
	vm.fiber.imports[absPath] = imp
	vm.Logger.Debug("loaded import", "name", name, "path", absPath)

	if _, err := vm.run1(ctx, imp); err != nil {
		return nil, err
	}
	return imp, nil
}

func resolveImportPath(dir, path string) string {
	p := path
	if filepath.Ext(p) == "" {
		p += ".lox"
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
