package machine

import "github.com/dolthub/swiss"

// Symbol is a dense identity for an interned string, used as the key of
// every Symbol->Value table in the VM (globals, fields, methods). Zero is
// reserved as the invalid/empty-bucket sentinel.
type Symbol uint32

// invalidSymbol is the empty-bucket marker used by Table.
const invalidSymbol Symbol = 0

// Interner assigns a monotonically increasing Symbol >= 1 to each distinct
// string on first insertion. Lookup is O(1) amortized via a generic
// open-addressing hash map rather than a bare map[string]uint32, matching
// how this codebase already sources its generic containers (see
// DESIGN.md).
type Interner struct {
	strings *swiss.Map[string, Symbol]
	names   []string // names[sym-1] == the string for Symbol(sym)
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{strings: swiss.NewMap[string, Symbol](64)}
}

// Intern returns the Symbol for s, assigning a new one if s has not been
// seen before.
func (in *Interner) Intern(s string) Symbol {
	if sym, ok := in.strings.Get(s); ok {
		return sym
	}
	in.names = append(in.names, s)
	sym := Symbol(len(in.names))
	in.strings.Put(s, sym)
	return sym
}

// Name returns the string a Symbol was interned from. Panics if sym is
// invalid or was never produced by this Interner.
func (in *Interner) Name(sym Symbol) string {
	return in.names[sym-1]
}
