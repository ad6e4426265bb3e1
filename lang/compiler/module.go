// Package compiler turns a parsed Lox AST into a Module: chunks of bytecode
// plus the constant pools and side tables the virtual machine needs to run
// them.
package compiler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dolthub/swiss"
)

// ClosureInfo binds a compiled function to its chunk and describes the
// upvalues its CLOSURE instruction must capture.
type ClosureInfo struct {
	Name     string
	Chunk    int
	Arity    int
	Upvalues []UpvalueDesc
}

// ClassInfo records a declared class's name. Method bodies live in their own
// chunks and closures; the class pool only needs the name for CLASS/runtime
// class creation.
type ClassInfo struct {
	Name string
}

// Module is the compiler's output: an ordered set of chunks plus the
// constant pools and side tables referenced by their instructions. It is
// self-contained and serializable with encoding/gob.
type Module struct {
	Chunks     []*Chunk
	Closures   []ClosureInfo
	Classes    []ClassInfo
	Idents     []string
	Numbers    []float64
	Strings    []string

	identIndex  *swiss.Map[string, uint32]
	numberIndex *swiss.Map[uint64, uint32]
	stringIndex *swiss.Map[string, uint32]
}

// NewModule returns an empty Module ready to receive chunks emitted by the
// compiler.
func NewModule() *Module {
	return &Module{
		identIndex:  swiss.NewMap[string, uint32](16),
		numberIndex: swiss.NewMap[uint64, uint32](16),
		stringIndex: swiss.NewMap[string, uint32](16),
	}
}

// AddChunk appends a new empty chunk and returns its index.
func (m *Module) AddChunk() int {
	m.Chunks = append(m.Chunks, new(Chunk))
	return len(m.Chunks) - 1
}

// AddClosure appends a closure pool entry and returns its index.
func (m *Module) AddClosure(info ClosureInfo) int {
	m.Closures = append(m.Closures, info)
	return len(m.Closures) - 1
}

// AddClass appends a class pool entry and returns its index.
func (m *Module) AddClass(info ClassInfo) int {
	m.Classes = append(m.Classes, info)
	return len(m.Classes) - 1
}

// Ident interns name in the identifier pool, returning its stable index.
func (m *Module) Ident(name string) uint32 {
	if m.identIndex == nil {
		m.identIndex = swiss.NewMap[string, uint32](16)
	}
	if idx, ok := m.identIndex.Get(name); ok {
		return idx
	}
	idx := uint32(len(m.Idents))
	m.Idents = append(m.Idents, name)
	m.identIndex.Put(name, idx)
	return idx
}

// Number interns n in the number pool, returning its stable index.
func (m *Module) Number(n float64) uint32 {
	if m.numberIndex == nil {
		m.numberIndex = swiss.NewMap[uint64, uint32](16)
	}
	bits := math.Float64bits(n)
	if idx, ok := m.numberIndex.Get(bits); ok {
		return idx
	}
	idx := uint32(len(m.Numbers))
	m.Numbers = append(m.Numbers, n)
	m.numberIndex.Put(bits, idx)
	return idx
}

// String interns s in the string pool, returning its stable index.
func (m *Module) String(s string) uint32 {
	if m.stringIndex == nil {
		m.stringIndex = swiss.NewMap[string, uint32](16)
	}
	if idx, ok := m.stringIndex.Get(s); ok {
		return idx
	}
	idx := uint32(len(m.Strings))
	m.Strings = append(m.Strings, s)
	m.stringIndex.Put(s, idx)
	return idx
}

// Validate checks that every index referenced by a closure or class is in
// range. It does not decode instructions, so it cannot detect an
// out-of-range operand embedded inside a chunk. At run time the VM rejects
// an out-of-range number or string operand with machine.ErrUnexpectedConstant
// when it executes the instruction; other operand indices are not checked.
func (m *Module) Validate() error {
	for i, cl := range m.Closures {
		if cl.Chunk < 0 || cl.Chunk >= len(m.Chunks) {
			return fmt.Errorf("compiler: closure %d references out-of-range chunk %d", i, cl.Chunk)
		}
		for _, uv := range cl.Upvalues {
			if uv.Source != UpvalueLocal && uv.Source != UpvalueUpvalue {
				return fmt.Errorf("compiler: closure %d has invalid upvalue source %d", i, uv.Source)
			}
		}
	}
	return nil
}

// Chunk is an append-only buffer of instruction bytes for one function body,
// plus the patch helpers the compiler uses to back-fill jump targets and
// pool indices reserved before their final value is known.
type Chunk struct {
	Code []byte
}

// Emit appends a single opcode byte and returns its offset.
func (c *Chunk) Emit(op Op) int {
	c.Code = append(c.Code, byte(op))
	return len(c.Code) - 1
}

// EmitByte appends a raw byte (used for u8 operands such as CALL's arity).
func (c *Chunk) EmitByte(b byte) {
	c.Code = append(c.Code, b)
}

// EmitU16 appends a little-endian u16 operand.
func (c *Chunk) EmitU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
}

// EmitU32 appends a little-endian u32 operand.
func (c *Chunk) EmitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
}

// EmitU24 appends a little-endian 3-byte operand, used for the index half of
// an upvalue descriptor (discriminant byte + 3-byte index = 4 bytes total).
func (c *Chunk) EmitU24(v uint32) {
	c.Code = append(c.Code, byte(v), byte(v>>8), byte(v>>16))
}

// ReadU24 reads a little-endian 3-byte operand starting at ip.
func (c *Chunk) ReadU24(ip int) uint32 {
	b := c.Code[ip : ip+3]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// EmitJump emits op followed by a placeholder 2-byte signed offset and
// returns the offset of the first placeholder byte, to be passed to
// PatchJump once the target is known.
func (c *Chunk) EmitJump(op Op) int {
	c.Emit(op)
	pos := len(c.Code)
	c.Code = append(c.Code, 0, 0)
	return pos
}

// PatchJump back-fills the 2-byte signed offset reserved at pos (as returned
// by EmitJump) so that it jumps to the current end of the chunk. The offset
// is measured from the byte immediately following the offset slot.
func (c *Chunk) PatchJump(pos int) {
	offset := len(c.Code) - (pos + 2)
	binary.LittleEndian.PutUint16(c.Code[pos:pos+2], uint16(int16(offset)))
}

// EmitLoop emits a backward JUMP whose offset is computed eagerly to land at
// loopStart (the chunk offset recorded before the loop body was compiled).
func (c *Chunk) EmitLoop(loopStart int) {
	pos := c.EmitJump(OpJump)
	offset := loopStart - (pos + 2)
	binary.LittleEndian.PutUint16(c.Code[pos:pos+2], uint16(int16(offset)))
}

// Len returns the current length of the chunk's code buffer, i.e. the offset
// the next emitted byte will occupy.
func (c *Chunk) Len() int { return len(c.Code) }

// ReadU16 reads a little-endian u16 operand starting at ip.
func (c *Chunk) ReadU16(ip int) uint16 { return binary.LittleEndian.Uint16(c.Code[ip : ip+2]) }

// ReadU32 reads a little-endian u32 operand starting at ip.
func (c *Chunk) ReadU32(ip int) uint32 { return binary.LittleEndian.Uint32(c.Code[ip : ip+4]) }

// ReadI16 reads a little-endian signed i16 jump offset starting at ip.
func (c *Chunk) ReadI16(ip int) int16 { return int16(binary.LittleEndian.Uint16(c.Code[ip : ip+2])) }
