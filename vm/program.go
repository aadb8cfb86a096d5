package vm

import (
	"iter"
)

// Opcode represents one line of assembled source with its emitted bytes.
type Opcode struct {
	LineNo    int      // Source line number.
	Addr      int      // Absolute address of the first emitted byte.
	Words     []string // Parsed source words.
	Bytes     []byte   // Emitted bytes (2 per instruction, any count for data).
	Data      bool     // Set for .byte lines.
	LinkLabel string   // Label patched into the emitted word at link time.
}

// Program is an assembled ROM image with its source mapping.
type Program struct {
	Origin  int // Load address of the first byte.
	Opcodes []Opcode
}

// Debug locates the source line covering an address.
type Debug struct {
	*Opcode
	Index int
}

func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(addr) >= op.Addr && int(addr) < op.Addr+len(op.Bytes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr) - op.Addr,
			}
			break
		}
	}

	return
}

// Binary returns the ROM image, suitable for Machine.Load.
func (prog *Program) Binary() (bin []byte) {
	for _, op := range prog.Opcodes {
		bin = append(bin, op.Bytes...)
	}

	return
}

// Codes iterates the assembled instruction words by address. Data lines
// are not yielded.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, op := range prog.Opcodes {
			if op.Data {
				continue
			}
			for n := 0; n+1 < len(op.Bytes); n += CODE_SIZE {
				code := Code(uint16(op.Bytes[n])<<8 | uint16(op.Bytes[n+1]))
				if !yield(uint16(op.Addr+n), code) {
					return
				}
			}
		}
	}
}
