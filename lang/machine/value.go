// Package machine implements the Lox virtual machine: the tagged value
// representation, the managed heap and its mark-sweep collector, the
// interned symbol table, runtime object kinds, and the bytecode dispatch
// loop that executes a compiler.Module.
package machine

import "fmt"

// Kind discriminates a Value's payload. This is the Go-idiomatic substitute
// for NaN-boxing: Go's collector must be able to see every heap pointer, so
// packing one into the low bits of a float64 is unsafe, not merely
// unidiomatic. See DESIGN.md for the full rationale.
type Kind uint8

const (
	KindNil Kind = iota
	KindFalse
	KindTrue
	KindNumber
	KindObject
)

// Value is a compact tagged scalar: a kind discriminant, a float64 payload
// for numbers, and an object pointer for heap values. It is trivially
// duplicable — a plain struct copy, no allocation.
type Value struct {
	Kind Kind
	Num  float64
	Obj  Obj
}

func Nil() Value { return Value{Kind: KindNil} }

func Bool(b bool) Value {
	if b {
		return Value{Kind: KindTrue}
	}
	return Value{Kind: KindFalse}
}

func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func FromObj(o Obj) Value    { return Value{Kind: KindObject, Obj: o} }

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindFalse || v.Kind == KindTrue }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObject() bool { return v.Kind == KindObject }

func (v Value) AsBool() bool { return v.Kind == KindTrue }

// Truthy implements Lox's truthiness rule: nil and false are falsy,
// everything else (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil, KindFalse:
		return false
	default:
		return true
	}
}

// Equal implements Value equality: numeric equality for numbers, byte
// content for strings, identity for every other object kind, and false
// across disjoint kinds.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil, KindFalse, KindTrue:
		return true
	case KindNumber:
		return a.Num == b.Num
	case KindObject:
		as, aok := a.Obj.(*LoxString)
		bs, bok := b.Obj.(*LoxString)
		if aok && bok {
			return as.String() == bs.String()
		}
		return a.Obj == b.Obj
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindFalse:
		return "false"
	case KindTrue:
		return "true"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObject:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.String()
	default:
		return fmt.Sprintf("<invalid value kind %d>", v.Kind)
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// TypeName reports a short, user-facing name for v's dynamic type, used in
// runtime error messages.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindFalse, KindTrue:
		return "bool"
	case KindNumber:
		return "number"
	case KindObject:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.TypeName()
	default:
		return "invalid"
	}
}
