package machine

import (
	"fmt"

	mmap "github.com/edsrzf/mmap-go"
)

const defaultArenaSize = 64 * 1024

// span is a free byte range inside an arena, recycled by a prior sweep.
type span struct{ start, n int }

// arena is a memory-mapped byte region used as a bump allocator for
// pointer-free payloads (LoxString backing bytes). Acquiring it through an
// OS memory-mapping library, rather than plain make([]byte, ...), keeps the
// "page allocator" described in the data model a real, observable resource
// with its own lifetime instead of ordinary Go-GC'd memory.
type arena struct {
	mem  mmap.MMap
	used int
	free []span
}

func newArena(size int) (*arena, error) {
	mem, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("machine: map arena: %w", err)
	}
	return &arena{mem: mem}, nil
}

// alloc first-fits n bytes out of the free list, falling back to a bump
// allocation from the arena's unused tail.
func (a *arena) alloc(n int) (start int, ok bool) {
	for i, s := range a.free {
		if s.n >= n {
			start = s.start
			if s.n > n {
				a.free[i] = span{start: s.start + n, n: s.n - n}
			} else {
				a.free = append(a.free[:i], a.free[i+1:]...)
			}
			return start, true
		}
	}
	if a.used+n > len(a.mem) {
		return 0, false
	}
	start = a.used
	a.used += n
	return start, true
}

func (a *arena) bytes(start, n int) []byte { return a.mem[start : start+n : start+n] }

func (a *arena) release(start, n int) { a.free = append(a.free, span{start, n}) }

// Heap owns every mmap'd arena and every live, pointer-bearing heap object
// (closures, classes, instances, upvalues, imports, bound methods,
// functions, arrays). LoxArray holds Values, which may themselves carry Go
// object pointers, so its backing slice is deliberately plain Go-managed
// memory rather than arena bytes: storing a Go pointer inside mmap'd memory
// would hide it from the garbage collector, exactly the hazard the
// tagged-union Value representation was chosen to avoid (see DESIGN.md).
// Only LoxString's raw byte buffer is arena-backed.
type Heap struct {
	arenas []*arena

	registry   []Obj
	marks      []bool
	freeSlots  []int
	finalizers []Obj

	bytesUsed int
	threshold int

	stackBlock []Value
}

// NewHeap returns an empty heap with its initial collection threshold and
// its per-fiber stack block reserved.
func NewHeap() *Heap {
	return &Heap{threshold: 1024, stackBlock: make([]Value, 0, 256)}
}

// Stack returns the heap-owned backing storage for the VM's operand stack.
func (h *Heap) Stack() []Value { return h.stackBlock }

func (h *Heap) allocBytes(n int) (arenaIdx, start int, buf []byte) {
	for i, a := range h.arenas {
		if start, ok := a.alloc(n); ok {
			h.bytesUsed += n
			return i, start, a.bytes(start, n)
		}
	}
	size := defaultArenaSize
	if n > size {
		size = n
	}
	a, err := newArena(size)
	if err != nil {
		panic(err)
	}
	h.arenas = append(h.arenas, a)
	start, _ = a.alloc(n)
	h.bytesUsed += n
	return len(h.arenas) - 1, start, a.bytes(start, n)
}

// manage registers o in the live-object registry, assigning it an
// out-of-line mark-bit slot, and adds it to the finalizer list if its
// header claims ownership of an arena span.
func (h *Heap) manage(o Obj) {
	hdr := o.objHeader()
	var slot int
	if n := len(h.freeSlots); n > 0 {
		slot = h.freeSlots[n-1]
		h.freeSlots = h.freeSlots[:n-1]
		h.registry[slot] = o
		h.marks[slot] = false
	} else {
		slot = len(h.registry)
		h.registry = append(h.registry, o)
		h.marks = append(h.marks, false)
	}
	hdr.slot = slot
	if hdr.arena >= 0 {
		h.finalizers = append(h.finalizers, o)
	}
}

// NewString allocates a LoxString whose bytes are bump-allocated from an
// arena.
func (h *Heap) NewString(s string) *LoxString {
	arenaIdx, start, buf := h.allocBytes(len(s))
	copy(buf, s)
	ls := &LoxString{header: header{slot: -1, arena: arenaIdx, start: start, n: len(s)}, b: buf}
	h.manage(ls)
	return ls
}

// ConcatStrings allocates a new LoxString whose length is the sum of a and
// b's lengths, per the ADD opcode's string-concatenation behavior.
func (h *Heap) ConcatStrings(a, b string) *LoxString {
	arenaIdx, start, buf := h.allocBytes(len(a) + len(b))
	copy(buf, a)
	copy(buf[len(a):], b)
	ls := &LoxString{header: header{slot: -1, arena: arenaIdx, start: start, n: len(buf)}, b: buf}
	h.manage(ls)
	return ls
}

// NewArray allocates a LoxArray wrapping items.
func (h *Heap) NewArray(items []Value) *LoxArray {
	arr := &LoxArray{header: newHeader(), items: items}
	h.manage(arr)
	return arr
}

// NewFunction allocates a Function object.
func (h *Heap) NewFunction(name string, chunk int, imp *Import, arity int) *Function {
	f := &Function{header: newHeader(), Name: name, Chunk: chunk, Import: imp, Arity: arity}
	h.manage(f)
	return f
}

// NewClosure allocates a Closure wrapping fn and its resolved upvalues.
func (h *Heap) NewClosure(fn *Function, upvalues []*Upvalue) *Closure {
	c := &Closure{header: newHeader(), Fn: fn, Upvalues: upvalues}
	h.manage(c)
	return c
}

// NewUpvalue allocates an open Upvalue pointing at stackIdx within stack.
func (h *Heap) NewUpvalue(stack *[]Value, stackIdx int) *Upvalue {
	u := &Upvalue{header: newHeader(), Open: true, StackIdx: stackIdx, stack: stack}
	h.manage(u)
	return u
}

// NewClass allocates an empty Class named name.
func (h *Heap) NewClass(name string) *Class {
	c := &Class{header: newHeader(), Name: name, Methods: NewTable()}
	h.manage(c)
	return c
}

// NewInstance allocates an Instance of cls.
func (h *Heap) NewInstance(cls *Class) *Instance {
	i := &Instance{header: newHeader(), Class: cls, Fields: NewTable()}
	h.manage(i)
	return i
}

// NewBoundMethod allocates a BoundMethod pairing receiver with method.
func (h *Heap) NewBoundMethod(receiver, method Value) *BoundMethod {
	b := &BoundMethod{header: newHeader(), Receiver: receiver, Method: method}
	h.manage(b)
	return b
}

// NewImport allocates a runtime Import instance for a loaded Module.
func (h *Heap) NewImport(name string) *Import {
	im := &Import{header: newHeader(), Name: name, Globals: NewTable()}
	h.manage(im)
	return im
}

// ShouldCollect reports whether the heap has crossed its next-collection
// threshold and a GC-safe point (see §5) should trigger Collect.
func (h *Heap) ShouldCollect() bool { return h.bytesUsed > h.threshold }

// BytesUsed reports the number of arena bytes currently allocated (not
// counting ordinary Go-managed pointer-bearing objects).
func (h *Heap) BytesUsed() int { return h.bytesUsed }

// Collect runs one mark-sweep cycle: clear mark bits, mark everything
// reachable from roots, finalize unmarked arena-owning objects, then sweep
// the registry.
func (h *Heap) Collect(roots func(mark func(Value))) {
	for i := range h.marks {
		h.marks[i] = false
	}

	var markValue func(v Value)
	markValue = func(v Value) {
		if v.Kind != KindObject || v.Obj == nil {
			return
		}
		hdr := v.Obj.objHeader()
		if hdr.slot < 0 || hdr.slot >= len(h.marks) || h.marks[hdr.slot] {
			return
		}
		h.marks[hdr.slot] = true
		v.Obj.Trace(markValue)
	}
	roots(markValue)

	live := h.finalizers[:0]
	for _, o := range h.finalizers {
		hdr := o.objHeader()
		if hdr.slot >= 0 && hdr.slot < len(h.marks) && h.marks[hdr.slot] {
			live = append(live, o)
			continue
		}
		h.releaseArena(hdr)
	}
	h.finalizers = live

	for slot, o := range h.registry {
		if o != nil && !h.marks[slot] {
			h.registry[slot] = nil
			h.freeSlots = append(h.freeSlots, slot)
		}
	}

	h.threshold = h.bytesUsed*2 + 100
}

func (h *Heap) releaseArena(hdr *header) {
	if hdr.arena < 0 || hdr.arena >= len(h.arenas) {
		return
	}
	h.arenas[hdr.arena].release(hdr.start, hdr.n)
	h.bytesUsed -= hdr.n
}

// Close is the heap's force_finalize: it runs every remaining finalizer
// regardless of reachability, unmaps every arena, and releases the per-fiber
// stack block. It must be called exactly once, from the VM's own teardown
// path, since no further collection will run afterward to reclaim these
// resources.
func (h *Heap) Close() error {
	for _, o := range h.finalizers {
		h.releaseArena(o.objHeader())
	}
	h.finalizers = nil

	var firstErr error
	for _, a := range h.arenas {
		if err := a.mem.Unmap(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("machine: unmap arena: %w", err)
		}
	}
	h.arenas = nil
	h.stackBlock = nil
	return firstErr
}
