package compiler

import (
	"fmt"
	"io"
)

// Dasm renders chunk's instructions to w, one line per instruction: byte
// offset, mnemonic, resolved operand and, for constant-bearing opcodes, the
// resolved constant. It is the one disassembler in this codebase; the CLI's
// -dasm mode renders through it.
func Dasm(w io.Writer, mod *Module, chunkIdx int, name string) {
	chunk := mod.Chunks[chunkIdx]
	fmt.Fprintf(w, "== %s (chunk %d) ==\n", name, chunkIdx)
	for ip := 0; ip < len(chunk.Code); {
		ip = dasmInstruction(w, mod, chunk, ip)
	}
}

func dasmInstruction(w io.Writer, mod *Module, chunk *Chunk, ip int) int {
	op := Op(chunk.Code[ip])
	fmt.Fprintf(w, "%04d %-14s", ip, op)

	switch op {
	case OpNil, OpTrue, OpFalse, OpPop, OpAdd, OpSubtract, OpMultiply, OpDivide,
		OpNegate, OpNot, OpEqual, OpLess, OpGreater, OpCloseUpvalue, OpReturn,
		OpReturnTop, OpInherit, OpPrint, OpIndexGet, OpIndexSet:
		fmt.Fprintln(w)
		return ip + 1

	case OpNumber:
		idx := chunk.ReadU16(ip + 1)
		fmt.Fprintf(w, "%5d '%v'\n", idx, mod.Numbers[idx])
		return ip + 3

	case OpNewList:
		n := chunk.ReadU16(ip + 1)
		fmt.Fprintf(w, "%5d\n", n)
		return ip + 3

	case OpString, OpImport:
		idx := chunk.ReadU32(ip + 1)
		fmt.Fprintf(w, "%5d %q\n", idx, mod.Strings[idx])
		return ip + 5

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue:
		idx := chunk.ReadU32(ip + 1)
		fmt.Fprintf(w, "%5d\n", idx)
		return ip + 5

	case OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpMethod, OpGetProperty,
		OpSetProperty, OpGetSuper, OpImportGlobal:
		idx := chunk.ReadU32(ip + 1)
		fmt.Fprintf(w, "%5d %q\n", idx, mod.Idents[idx])
		return ip + 5

	case OpClass:
		idx := chunk.ReadU32(ip + 1)
		fmt.Fprintf(w, "%5d %q\n", idx, mod.Classes[idx].Name)
		return ip + 5

	case OpJump, OpJumpIfFalse:
		offset := chunk.ReadI16(ip + 1)
		fmt.Fprintf(w, "%5d -> %d\n", offset, ip+3+int(offset))
		return ip + 3

	case OpCall:
		fmt.Fprintf(w, "%5d\n", chunk.Code[ip+1])
		return ip + 2

	case OpInvoke, OpSuperInvoke:
		n := chunk.Code[ip+1]
		idx := chunk.ReadU32(ip + 2)
		fmt.Fprintf(w, "(%d args) %5d %q\n", n, idx, mod.Idents[idx])
		return ip + 6

	case OpClosure:
		idx := chunk.ReadU32(ip + 1)
		info := mod.Closures[idx]
		fmt.Fprintf(w, "%5d %q\n", idx, info.Name)
		next := ip + 5
		for _, uv := range info.Upvalues {
			src := "upvalue"
			if uv.Source == UpvalueLocal {
				src = "local"
			}
			fmt.Fprintf(w, "%04d      |                     %s %d\n", next, src, uv.Index)
			next += 4
		}
		return next

	default:
		fmt.Fprintf(w, "unknown opcode %d\n", byte(op))
		return ip + 1
	}
}
