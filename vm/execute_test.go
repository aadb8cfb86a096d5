package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute_Cls(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.Display.Pixel[0][0] = true
	m.Display.Pixel[31][63] = true

	assert.NoError(m.Execute(0x00e0))
	assert.Equal(Frame{}, m.Display.Pixel)
	assert.Equal(uint16(0x202), m.PC)
}

func TestExecute_Ret(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.Stack.Push(0x123)
	m.Stack.Push(0x003)

	assert.NoError(m.Execute(0x00ee))
	assert.Equal(uint16(0x003), m.PC)
	assert.Equal(1, m.Stack.Depth())
}

func TestExecute_Ret_Underflow(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	err := m.Execute(0x00ee)
	assert.ErrorIs(err, ErrStackEmpty)
	assert.Equal(uint16(0x200), m.PC)
}

func TestExecute_Jp(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	assert.NoError(m.Execute(0x1444))
	assert.Equal(uint16(0x444), m.PC)
}

func TestExecute_Call(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	assert.NoError(m.Execute(0x2456))
	assert.Equal(uint16(0x456), m.PC)

	// The pushed address is the word after the call site, so a bare ret
	// resumes there.
	addr, ok := m.Stack.Peek()
	assert.True(ok)
	assert.Equal(uint16(0x202), addr)

	assert.NoError(m.Execute(0x00ee))
	assert.Equal(uint16(0x202), m.PC)
	assert.True(m.Stack.Empty())
}

func TestExecute_Call_Overflow(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	for i := 0; i < STACK_LIMIT; i++ {
		m.Stack.Push(0x300)
	}

	err := m.Execute(0x2456)
	assert.ErrorIs(err, ErrStackFull)
	assert.Equal(uint16(0x200), m.PC)
	assert.Equal(STACK_LIMIT, m.Stack.Depth())
}

func TestExecute_Se(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x42

	assert.NoError(m.Execute(0x3142)) // equal: skip
	assert.Equal(uint16(0x204), m.PC)

	assert.NoError(m.Execute(0x3143)) // unequal: no skip
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_Sne(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x42

	assert.NoError(m.Execute(0x4142)) // equal: no skip
	assert.Equal(uint16(0x202), m.PC)

	assert.NoError(m.Execute(0x4143)) // unequal: skip
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_SeReg(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x42
	m.V[2] = 0x42
	m.V[3] = 0x99

	assert.NoError(m.Execute(0x5120))
	assert.Equal(uint16(0x204), m.PC)

	assert.NoError(m.Execute(0x5130))
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_SneReg(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x42
	m.V[2] = 0x42
	m.V[3] = 0x99

	assert.NoError(m.Execute(0x9120))
	assert.Equal(uint16(0x202), m.PC)

	assert.NoError(m.Execute(0x9130))
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_Ld(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	assert.NoError(m.Execute(0x6123))
	assert.Equal(uint8(0x23), m.V[1])
	assert.Equal(uint16(0x202), m.PC)
}

func TestExecute_Add(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x10
	assert.NoError(m.Execute(0x7105))
	assert.Equal(uint8(0x15), m.V[1])

	// Wraps modulo 256 without touching the flag register.
	m.V[1] = 0xff
	m.V[0xf] = 0x42
	assert.NoError(m.Execute(0x7102))
	assert.Equal(uint8(0x01), m.V[1])
	assert.Equal(uint8(0x42), m.V[0xf])
}

func TestExecute_LdReg(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[2] = 0x77
	assert.NoError(m.Execute(0x8120))
	assert.Equal(uint8(0x77), m.V[1])
}

func TestExecute_Bitwise(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	m.V[1], m.V[2] = 0x0f, 0xf0
	assert.NoError(m.Execute(0x8121)) // or
	assert.Equal(uint8(0xff), m.V[1])

	m.V[1], m.V[2] = 0x0f, 0x3c
	assert.NoError(m.Execute(0x8122)) // and
	assert.Equal(uint8(0x0c), m.V[1])

	m.V[1], m.V[2] = 0x0f, 0x3c
	assert.NoError(m.Execute(0x8123)) // xor
	assert.Equal(uint8(0x33), m.V[1])
}

func TestExecute_AddReg(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x11
	m.V[2] = 0x22
	assert.NoError(m.Execute(0x8124))
	assert.Equal(uint8(0x33), m.V[1])
	assert.Equal(uint8(0), m.V[0xf])

	m.V[1] = 0xaa
	m.V[2] = 0xaa
	assert.NoError(m.Execute(0x8124))
	assert.Equal(uint8(0x54), m.V[1])
	assert.Equal(uint8(1), m.V[0xf])
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_Sub(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	// No borrow: flag set.
	m.V[1] = 0x30
	m.V[2] = 0x10
	assert.NoError(m.Execute(0x8125))
	assert.Equal(uint8(0x20), m.V[1])
	assert.Equal(uint8(1), m.V[0xf])

	// Borrow: flag clear, result wraps.
	m.V[1] = 0x10
	m.V[2] = 0x30
	assert.NoError(m.Execute(0x8125))
	assert.Equal(uint8(0xe0), m.V[1])
	assert.Equal(uint8(0), m.V[0xf])

	// Equal operands count as no borrow.
	m.V[1] = 0x10
	m.V[2] = 0x10
	assert.NoError(m.Execute(0x8125))
	assert.Equal(uint8(0x00), m.V[1])
	assert.Equal(uint8(1), m.V[0xf])
}

func TestExecute_Subn(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	m.V[1] = 0x10
	m.V[2] = 0x30
	assert.NoError(m.Execute(0x8127))
	assert.Equal(uint8(0x20), m.V[1])
	assert.Equal(uint8(1), m.V[0xf])

	m.V[1] = 0x30
	m.V[2] = 0x10
	assert.NoError(m.Execute(0x8127))
	assert.Equal(uint8(0xe0), m.V[1])
	assert.Equal(uint8(0), m.V[0xf])
}

func TestExecute_Shr(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	m.V[1] = 0x0e
	assert.NoError(m.Execute(0x8106))
	assert.Equal(uint8(0x07), m.V[1])
	assert.Equal(uint8(0), m.V[0xf])

	m.V[1] = 0x0f
	assert.NoError(m.Execute(0x8106))
	assert.Equal(uint8(0x07), m.V[1])
	assert.Equal(uint8(1), m.V[0xf])
}

func TestExecute_Shl(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	m.V[1] = 0xaa
	assert.NoError(m.Execute(0x810e))
	assert.Equal(uint8(0x54), m.V[1])
	assert.Equal(uint8(1), m.V[0xf])

	m.V[1] = 0x2a
	assert.NoError(m.Execute(0x810e))
	assert.Equal(uint8(0x54), m.V[1])
	assert.Equal(uint8(0), m.V[0xf])
}

func TestExecute_FlagIsResult(t *testing.T) {
	assert := assert.New(t)

	// When VF is the destination, the flag write lands last.
	m := NewMachine()
	m.V[0xf] = 0xaa
	m.V[2] = 0xaa
	assert.NoError(m.Execute(0x8f24))
	assert.Equal(uint8(1), m.V[0xf])
}

func TestExecute_LdI(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	assert.NoError(m.Execute(0xa123))
	assert.Equal(uint16(0x123), m.I)
	assert.Equal(uint16(0x202), m.PC)
}

func TestExecute_JpV0(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[0] = 0x02
	assert.NoError(m.Execute(0xb123))
	assert.Equal(uint16(0x125), m.PC)

	// Sum wraps modulo the address space.
	m.V[0] = 0xff
	assert.NoError(m.Execute(0xbfff))
	assert.Equal(uint16(0x0fe), m.PC)
}

func TestExecute_Rnd(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.Rand = func() uint8 { return 0xde }

	assert.NoError(m.Execute(0xc10f))
	assert.Equal(uint8(0x0e), m.V[1])
	assert.Equal(uint16(0x202), m.PC)

	assert.NoError(m.Execute(0xc2ff))
	assert.Equal(uint8(0xde), m.V[2])
}

func TestExecute_Drw(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	copy(m.Memory[0x400:], []byte{0b11101010, 0b10101100, 0b10101010, 0b11101001})
	m.I = 0x400
	m.V[1] = 2
	m.V[2] = 1

	assert.NoError(m.Execute(0xd124))
	assert.Equal(uint8(0), m.V[0xf])
	assert.Equal(uint16(0x202), m.PC)

	want := []bool{true, true, true, false, true, false, true, false}
	for n, set := range want {
		assert.Equal(set, m.Display.Pixel[1][2+n], "row 1 col %v", 2+n)
	}

	// Redrawing the same sprite erases it and reports the collision.
	assert.NoError(m.Execute(0xd124))
	assert.Equal(uint8(1), m.V[0xf])
	assert.Equal(Frame{}, m.Display.Pixel)
}

func TestExecute_Drw_Wrap(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.Memory[0x400] = 0b11110000
	m.I = 0x400
	m.V[1] = 62
	m.V[2] = 31

	assert.NoError(m.Execute(0xd121))
	assert.True(m.Display.Pixel[31][62])
	assert.True(m.Display.Pixel[31][63])
	assert.True(m.Display.Pixel[31][0])
	assert.True(m.Display.Pixel[31][1])
	assert.Equal(uint8(0), m.V[0xf])
}

func TestExecute_Drw_OutOfRange(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.I = 0xffe

	err := m.Execute(0xd124)
	assert.ErrorIs(err, ErrAddressRange)
	assert.Equal(uint16(0x200), m.PC)
}

func TestExecute_Skp(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x7
	m.Keys[0x7] = true

	assert.NoError(m.Execute(0xe19e))
	assert.Equal(uint16(0x204), m.PC)

	m.Keys[0x7] = false
	assert.NoError(m.Execute(0xe19e))
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_Sknp(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.V[1] = 0x7

	assert.NoError(m.Execute(0xe1a1))
	assert.Equal(uint16(0x204), m.PC)

	m.Keys[0x7] = true
	assert.NoError(m.Execute(0xe1a1))
	assert.Equal(uint16(0x206), m.PC)
}

func TestExecute_Timers(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	m.V[1] = 0x42
	assert.NoError(m.Execute(0xf115)) // ld dt v1
	assert.Equal(uint8(0x42), m.DT)

	assert.NoError(m.Execute(0xf218)) // ld st v2
	assert.Equal(uint8(0x00), m.ST)
	m.V[2] = 0x10
	assert.NoError(m.Execute(0xf218))
	assert.Equal(uint8(0x10), m.ST)

	assert.NoError(m.Execute(0xf307)) // ld v3 dt
	assert.Equal(uint8(0x42), m.V[3])
}

func TestExecute_AddI(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.I = 0x100
	m.V[1] = 0x20
	assert.NoError(m.Execute(0xf11e))
	assert.Equal(uint16(0x120), m.I)

	// Wraps modulo the address space.
	m.I = 0xfff
	m.V[1] = 0x02
	assert.NoError(m.Execute(0xf11e))
	assert.Equal(uint16(0x001), m.I)
}

func TestExecute_LdFont(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()

	m.V[1] = 0x0
	assert.NoError(m.Execute(0xf129))
	assert.Equal(uint16(FONT_BASE), m.I)

	m.V[1] = 0xa
	assert.NoError(m.Execute(0xf129))
	assert.Equal(uint16(FONT_BASE+0xa*FONT_GLYPH_SIZE), m.I)

	// Only the low nibble selects the glyph.
	m.V[1] = 0xfa
	assert.NoError(m.Execute(0xf129))
	assert.Equal(uint16(FONT_BASE+0xa*FONT_GLYPH_SIZE), m.I)
}

func TestExecute_Bcd(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.I = 0x400
	m.V[1] = 123
	assert.NoError(m.Execute(0xf133))
	assert.Equal(byte(1), m.Memory[0x400])
	assert.Equal(byte(2), m.Memory[0x401])
	assert.Equal(byte(3), m.Memory[0x402])

	m.V[1] = 7
	assert.NoError(m.Execute(0xf133))
	assert.Equal(byte(0), m.Memory[0x400])
	assert.Equal(byte(0), m.Memory[0x401])
	assert.Equal(byte(7), m.Memory[0x402])
}

func TestExecute_Bcd_OutOfRange(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.I = 0xffe

	err := m.Execute(0xf133)
	assert.ErrorIs(err, ErrAddressRange)
	assert.Equal(uint16(0x200), m.PC)
}

func TestExecute_Regs(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	for n := range m.V {
		m.V[n] = uint8(0x10 + n)
	}
	m.I = 0x400

	// Store V0..V5 inclusive.
	assert.NoError(m.Execute(0xf555))
	for n := 0; n <= 5; n++ {
		assert.Equal(byte(0x10+n), m.Memory[0x400+n])
	}
	assert.Equal(byte(0), m.Memory[0x406])

	// Load them back into a scrubbed register file.
	clear(m.V[:])
	assert.NoError(m.Execute(0xf565))
	for n := 0; n <= 5; n++ {
		assert.Equal(uint8(0x10+n), m.V[n])
	}
	assert.Equal(uint8(0), m.V[6])

	// I is not modified by either transfer.
	assert.Equal(uint16(0x400), m.I)
}

func TestExecute_Regs_OutOfRange(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	m.I = 0xffe

	err := m.Execute(0xf555)
	assert.ErrorIs(err, ErrAddressRange)

	err = m.Execute(0xf565)
	assert.ErrorIs(err, ErrAddressRange)
	assert.Equal(uint16(0x200), m.PC)
}

func TestExecute_LdKey(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	assert.NoError(m.Execute(0xf10a))
	assert.True(m.WaitingKey())
	assert.Equal(uint16(0x200), m.PC)

	m.FeedKey(0x5)
	assert.False(m.WaitingKey())
	assert.Equal(uint8(0x5), m.V[1])
	assert.Equal(uint16(0x202), m.PC)

	// FeedKey without a pending wait is a no-op.
	m.FeedKey(0x9)
	assert.Equal(uint8(0x5), m.V[1])
	assert.Equal(uint16(0x202), m.PC)
}

func TestExecute_Unknown(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	err := m.Execute(0x0123)
	assert.ErrorIs(err, ErrOpcodeUnknown)

	// Recoverable: the word is skipped.
	assert.Equal(uint16(0x202), m.PC)

	err = m.Execute(0xffff)
	assert.ErrorIs(err, ErrOpcodeUnknown)
	assert.Equal(uint16(0x204), m.PC)
}

func TestExecute_ErrorContext(t *testing.T) {
	assert := assert.New(t)

	m := NewMachine()
	err := m.Execute(0x00ee)
	assert.ErrorIs(err, ErrStackEmpty)
	assert.ErrorIs(err, ErrOpcode(0x00ee))
	assert.Contains(err.Error(), "ret")
}
