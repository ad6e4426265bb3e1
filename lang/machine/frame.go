package machine

// CallFrame is one activation record: the closure being executed, its
// instruction offset within that closure's chunk, and the stack index of
// its local slot 0. ip is a byte-slice-relative index into the chunk's
// code, the safe substitute for a raw instruction pointer sanctioned for
// this representation (see DESIGN.md).
type CallFrame struct {
	closure *Closure
	ip      int
	base    int
}

// Fiber is a single thread of Lox execution: its operand stack, call-frame
// stack, open-upvalue list, and the cache of already-loaded Imports keyed
// by resolved absolute path.
type Fiber struct {
	stack  []Value
	frames []CallFrame

	// openUpvalues is kept sorted by descending StackIdx, so CLOSE_UPVALUE
	// can stop at the first entry below the target index.
	openUpvalues []*Upvalue

	imports map[string]*Import
}

// NewFiber returns a Fiber with stack storage drawn from heap.
func NewFiber(heap *Heap) *Fiber {
	return &Fiber{
		stack:   heap.Stack(),
		imports: make(map[string]*Import),
	}
}

func (f *Fiber) push(v Value) { f.stack = append(f.stack, v) }

func (f *Fiber) pop() (Value, error) {
	n := len(f.stack)
	if n == 0 {
		return Value{}, ErrStackEmpty
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v, nil
}

func (f *Fiber) peek(distance int) (Value, error) {
	idx := len(f.stack) - 1 - distance
	if idx < 0 {
		return Value{}, ErrStackEmpty
	}
	return f.stack[idx], nil
}

func (f *Fiber) truncate(to int) { f.stack = f.stack[:to] }

func (f *Fiber) currentFrame() (*CallFrame, error) {
	if len(f.frames) == 0 {
		return nil, ErrFrameEmpty
	}
	return &f.frames[len(f.frames)-1], nil
}

// findOrCreateUpvalue returns the (possibly new) open upvalue capturing the
// local at stackIdx, sharing an existing entry if one already captures it.
func (f *Fiber) findOrCreateUpvalue(heap *Heap, stackIdx int) *Upvalue {
	for _, uv := range f.openUpvalues {
		if uv.StackIdx == stackIdx {
			return uv
		}
	}
	uv := heap.NewUpvalue(&f.stack, stackIdx)
	f.openUpvalues = append(f.openUpvalues, uv)
	for i := len(f.openUpvalues) - 1; i > 0 && f.openUpvalues[i].StackIdx > f.openUpvalues[i-1].StackIdx; i-- {
		f.openUpvalues[i], f.openUpvalues[i-1] = f.openUpvalues[i-1], f.openUpvalues[i]
	}
	return uv
}

// closeUpvaluesFrom closes every open upvalue at or above stackIdx and
// drops it from the open list.
func (f *Fiber) closeUpvaluesFrom(stackIdx int) {
	i := 0
	for i < len(f.openUpvalues) && f.openUpvalues[i].StackIdx >= stackIdx {
		f.openUpvalues[i].Close()
		i++
	}
	f.openUpvalues = f.openUpvalues[i:]
}
