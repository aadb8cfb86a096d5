package vm

import (
	"errors"
	"log"
)

// Execute runs a single decoded instruction against the machine state.
//
// Every handler advances PC by one instruction width unless it is a
// control-flow operation that sets PC directly, or a conditional skip
// whose condition holds, which advances by two widths. A word matching
// no recognized pattern still advances PC by one width and reports
// ErrOpcodeUnknown; all other errors leave PC at the faulting
// instruction and are fatal to the run.
func (m *Machine) Execute(code Code) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()
	if m.Verbose {
		log.Printf("vm: %03x: %v", m.PC, code)
	}

	next := m.PC + CODE_SIZE

	x, y := code.X(), code.Y()
	kk := code.Byte()

	switch code.Op() {
	case OP_CLS:
		m.Display.Clear()
	case OP_RET:
		addr, ok := m.Stack.Pop()
		if !ok {
			err = ErrStackEmpty
			return
		}
		next = addr
	case OP_JP:
		next = code.Addr()
	case OP_CALL:
		if m.Stack.Full() {
			err = ErrStackFull
			return
		}
		m.Stack.Push(m.PC + CODE_SIZE)
		next = code.Addr()
	case OP_SE:
		if m.V[x] == kk {
			next += CODE_SIZE
		}
	case OP_SNE:
		if m.V[x] != kk {
			next += CODE_SIZE
		}
	case OP_SE_REG:
		if m.V[x] == m.V[y] {
			next += CODE_SIZE
		}
	case OP_SNE_REG:
		if m.V[x] != m.V[y] {
			next += CODE_SIZE
		}
	case OP_LD:
		m.V[x] = kk
	case OP_ADD:
		// 8-bit wraparound, no flag effect.
		m.V[x] += kk
	case OP_LD_REG:
		m.V[x] = m.V[y]
	case OP_OR:
		m.V[x] |= m.V[y]
	case OP_AND:
		m.V[x] &= m.V[y]
	case OP_XOR:
		m.V[x] ^= m.V[y]
	case OP_ADD_REG:
		sum := uint16(m.V[x]) + uint16(m.V[y])
		m.V[x] = uint8(sum)
		m.setFlag(sum > 0xff)
	case OP_SUB:
		borrow := m.V[x] >= m.V[y]
		m.V[x] -= m.V[y]
		m.setFlag(borrow)
	case OP_SUBN:
		borrow := m.V[y] >= m.V[x]
		m.V[x] = m.V[y] - m.V[x]
		m.setFlag(borrow)
	case OP_SHR:
		low := m.V[x] & 0x01
		m.V[x] >>= 1
		m.setFlag(low != 0)
	case OP_SHL:
		high := m.V[x] & 0x80
		m.V[x] <<= 1
		m.setFlag(high != 0)
	case OP_LD_I:
		m.I = code.Addr()
	case OP_JP_V0:
		// Target wraps modulo the 12-bit address space.
		next = (uint16(m.V[0]) + code.Addr()) & (MEMORY_SIZE - 1)
	case OP_RND:
		m.V[x] = m.rand8() & kk
	case OP_DRW:
		n := uint16(code.N())
		if int(m.I)+int(n) > MEMORY_SIZE {
			err = ErrAddressRange
			return
		}
		sprite := m.Memory[m.I : m.I+n]
		collision := m.Display.Draw(int(m.V[x]), int(m.V[y]), sprite)
		m.setFlag(collision)
	case OP_SKP:
		if m.Keys[m.V[x]&0xf] {
			next += CODE_SIZE
		}
	case OP_SKNP:
		if !m.Keys[m.V[x]&0xf] {
			next += CODE_SIZE
		}
	case OP_LD_DT:
		m.V[x] = m.DT
	case OP_LD_KEY:
		// Suspend until the cycle driver observes a key-down and calls
		// FeedKey. PC stays at the wait instruction.
		m.waitReg = x
		m.waiting = true
		return
	case OP_ST_DT:
		m.DT = m.V[x]
	case OP_ST_ST:
		m.ST = m.V[x]
	case OP_ADD_I:
		// Same wrap policy as jp v0.
		m.I = (m.I + uint16(m.V[x])) & (MEMORY_SIZE - 1)
	case OP_LD_FONT:
		m.I = FONT_BASE + uint16(m.V[x]&0xf)*FONT_GLYPH_SIZE
	case OP_LD_BCD:
		if int(m.I)+3 > MEMORY_SIZE {
			err = ErrAddressRange
			return
		}
		m.Memory[m.I] = m.V[x] / 100
		m.Memory[m.I+1] = (m.V[x] / 10) % 10
		m.Memory[m.I+2] = m.V[x] % 10
	case OP_ST_REGS:
		count := uint16(x) + 1
		if int(m.I)+int(count) > MEMORY_SIZE {
			err = ErrAddressRange
			return
		}
		copy(m.Memory[m.I:m.I+count], m.V[:count])
	case OP_LD_REGS:
		count := uint16(x) + 1
		if int(m.I)+int(count) > MEMORY_SIZE {
			err = ErrAddressRange
			return
		}
		copy(m.V[:count], m.Memory[m.I:m.I+count])
	case OP_UNKNOWN:
		// Recoverable: skip the word so a malformed ROM cannot wedge the
		// machine in place.
		m.PC = next
		err = ErrOpcodeUnknown
		return
	}

	m.PC = next

	return
}

// setFlag writes the VF flag register as an operation side effect.
func (m *Machine) setFlag(set bool) {
	if set {
		m.V[0xF] = 1
	} else {
		m.V[0xF] = 0
	}
}
