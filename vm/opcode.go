package vm

import (
	"fmt"
)

// Op identifies one of the recognized machine operations.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_UNKNOWN = Op(0)  // ???
	OP_CLS     = Op(1)  // cls
	OP_RET     = Op(2)  // ret
	OP_JP      = Op(3)  // jp
	OP_CALL    = Op(4)  // call
	OP_SE      = Op(5)  // se
	OP_SNE     = Op(6)  // sne
	OP_SE_REG  = Op(7)  // se
	OP_LD      = Op(8)  // ld
	OP_ADD     = Op(9)  // add
	OP_LD_REG  = Op(10) // ld
	OP_OR      = Op(11) // or
	OP_AND     = Op(12) // and
	OP_XOR     = Op(13) // xor
	OP_ADD_REG = Op(14) // add
	OP_SUB     = Op(15) // sub
	OP_SHR     = Op(16) // shr
	OP_SUBN    = Op(17) // subn
	OP_SHL     = Op(18) // shl
	OP_SNE_REG = Op(19) // sne
	OP_LD_I    = Op(20) // ld
	OP_JP_V0   = Op(21) // jp
	OP_RND     = Op(22) // rnd
	OP_DRW     = Op(23) // drw
	OP_SKP     = Op(24) // skp
	OP_SKNP    = Op(25) // sknp
	OP_LD_DT   = Op(26) // ld
	OP_LD_KEY  = Op(27) // ld
	OP_ST_DT   = Op(28) // ld
	OP_ST_ST   = Op(29) // ld
	OP_ADD_I   = Op(30) // add
	OP_LD_FONT = Op(31) // ld
	OP_LD_BCD  = Op(32) // ld
	OP_ST_REGS = Op(33) // ld
	OP_LD_REGS = Op(34) // ld
)

// Code is a single big-endian 16-bit instruction word.
type Code uint16

// Nibbles returns the four 4-bit fields of the word, high to low.
func (code Code) Nibbles() (a, x, y, n uint8) {
	word := uint16(code)
	a = uint8((word >> 12) & 0xf)
	x = uint8((word >> 8) & 0xf)
	y = uint8((word >> 4) & 0xf)
	n = uint8(word & 0xf)
	return
}

// X returns the first register operand field.
func (code Code) X() uint8 {
	return uint8((uint16(code) >> 8) & 0xf)
}

// Y returns the second register operand field.
func (code Code) Y() uint8 {
	return uint8((uint16(code) >> 4) & 0xf)
}

// N returns the low 4-bit immediate (sprite height).
func (code Code) N() uint8 {
	return uint8(uint16(code) & 0xf)
}

// Addr returns the low 12-bit address operand.
func (code Code) Addr() uint16 {
	return uint16(code) & 0x0fff
}

// Byte returns the low 8-bit immediate operand.
func (code Code) Byte() uint8 {
	return uint8(uint16(code) & 0xff)
}

// Op classifies the instruction word against the recognized nibble
// patterns. Words matching no pattern classify as OP_UNKNOWN.
func (code Code) Op() (op Op) {
	a, _, _, n := code.Nibbles()

	switch a {
	case 0x0:
		switch uint16(code) {
		case 0x00E0:
			op = OP_CLS
		case 0x00EE:
			op = OP_RET
		}
	case 0x1:
		op = OP_JP
	case 0x2:
		op = OP_CALL
	case 0x3:
		op = OP_SE
	case 0x4:
		op = OP_SNE
	case 0x5:
		if n == 0x0 {
			op = OP_SE_REG
		}
	case 0x6:
		op = OP_LD
	case 0x7:
		op = OP_ADD
	case 0x8:
		switch n {
		case 0x0:
			op = OP_LD_REG
		case 0x1:
			op = OP_OR
		case 0x2:
			op = OP_AND
		case 0x3:
			op = OP_XOR
		case 0x4:
			op = OP_ADD_REG
		case 0x5:
			op = OP_SUB
		case 0x6:
			op = OP_SHR
		case 0x7:
			op = OP_SUBN
		case 0xE:
			op = OP_SHL
		}
	case 0x9:
		if n == 0x0 {
			op = OP_SNE_REG
		}
	case 0xA:
		op = OP_LD_I
	case 0xB:
		op = OP_JP_V0
	case 0xC:
		op = OP_RND
	case 0xD:
		op = OP_DRW
	case 0xE:
		switch code.Byte() {
		case 0x9E:
			op = OP_SKP
		case 0xA1:
			op = OP_SKNP
		}
	case 0xF:
		switch code.Byte() {
		case 0x07:
			op = OP_LD_DT
		case 0x0A:
			op = OP_LD_KEY
		case 0x15:
			op = OP_ST_DT
		case 0x18:
			op = OP_ST_ST
		case 0x1E:
			op = OP_ADD_I
		case 0x29:
			op = OP_LD_FONT
		case 0x33:
			op = OP_LD_BCD
		case 0x55:
			op = OP_ST_REGS
		case 0x65:
			op = OP_LD_REGS
		}
	}

	return
}

// MakeCode assembles an instruction word from its nibble fields.
func MakeCode(a, x, y, n uint8) Code {
	return Code(uint16(a&0xf)<<12 | uint16(x&0xf)<<8 | uint16(y&0xf)<<4 | uint16(n&0xf))
}

// MakeCodeAddr assembles an instruction word from a leading nibble and a
// 12-bit address.
func MakeCodeAddr(a uint8, addr uint16) Code {
	return Code(uint16(a&0xf)<<12 | addr&0x0fff)
}

// MakeCodeByte assembles an instruction word from a leading nibble, a
// register field, and an 8-bit immediate.
func MakeCodeByte(a, x, kk uint8) Code {
	return Code(uint16(a&0xf)<<12 | uint16(x&0xf)<<8 | uint16(kk))
}

// String returns the assembly language representation of this instruction.
func (code Code) String() (out string) {
	op := code.Op()
	x, y := code.X(), code.Y()

	switch op {
	case OP_UNKNOWN:
		out = op.String()
	case OP_CLS, OP_RET:
		out = op.String()
	case OP_JP, OP_CALL:
		out = fmt.Sprintf("%v 0x%03x", op, code.Addr())
	case OP_JP_V0:
		out = fmt.Sprintf("%v v0 0x%03x", op, code.Addr())
	case OP_SE, OP_SNE, OP_LD, OP_ADD, OP_RND:
		out = fmt.Sprintf("%v v%x 0x%02x", op, x, code.Byte())
	case OP_SE_REG, OP_SNE_REG, OP_LD_REG, OP_OR, OP_AND, OP_XOR,
		OP_ADD_REG, OP_SUB, OP_SUBN:
		out = fmt.Sprintf("%v v%x v%x", op, x, y)
	case OP_SHR, OP_SHL, OP_SKP, OP_SKNP:
		out = fmt.Sprintf("%v v%x", op, x)
	case OP_LD_I:
		out = fmt.Sprintf("%v i 0x%03x", op, code.Addr())
	case OP_DRW:
		out = fmt.Sprintf("%v v%x v%x %d", op, x, y, code.N())
	case OP_LD_DT:
		out = fmt.Sprintf("%v v%x dt", op, x)
	case OP_LD_KEY:
		out = fmt.Sprintf("%v v%x k", op, x)
	case OP_ST_DT:
		out = fmt.Sprintf("%v dt v%x", op, x)
	case OP_ST_ST:
		out = fmt.Sprintf("%v st v%x", op, x)
	case OP_ADD_I:
		out = fmt.Sprintf("%v i v%x", op, x)
	case OP_LD_FONT:
		out = fmt.Sprintf("%v f v%x", op, x)
	case OP_LD_BCD:
		out = fmt.Sprintf("%v b v%x", op, x)
	case OP_ST_REGS:
		out = fmt.Sprintf("%v [i] v%x", op, x)
	case OP_LD_REGS:
		out = fmt.Sprintf("%v v%x [i]", op, x)
	}

	return
}
