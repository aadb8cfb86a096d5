package vm

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand"
)

const (
	MEMORY_SIZE     = 4096  // Byte-addressable memory
	PROGRAM_START   = 0x200 // Load address for program images
	PROGRAM_LIMIT   = MEMORY_SIZE - PROGRAM_START
	FONT_BASE       = 0x000 // Font glyph table base address
	FONT_GLYPH_SIZE = 5     // Bytes per font glyph
	FONT_COUNT      = 16    // Glyphs 0x0-0xF
	CODE_SIZE       = 2     // Bytes per instruction word
	KEY_COUNT       = 16    // Logical keypad keys 0x0-0xF
)

var _vm_defines = map[string]string{
	"MEMORY_SIZE":    fmt.Sprintf("%v", MEMORY_SIZE),
	"PROGRAM_START":  fmt.Sprintf("0x%x", PROGRAM_START),
	"FONT_BASE":      fmt.Sprintf("0x%x", FONT_BASE),
	"DISPLAY_WIDTH":  fmt.Sprintf("%v", DISPLAY_WIDTH),
	"DISPLAY_HEIGHT": fmt.Sprintf("%v", DISPLAY_HEIGHT),
}

// Machine is the complete CHIP-8 execution state. It has exactly one
// writer: the cycle driver and the handlers it invokes.
type Machine struct {
	Verbose bool // Set to enable verbose logging.

	V  [16]uint8 // General registers V0-VF. VF is the flag register.
	I  uint16    // Index register.
	PC uint16    // Program counter.

	Stack Stack // Call stack.

	DT uint8 // Delay timer.
	ST uint8 // Sound timer. Non-zero signals that a tone should sound.

	Memory  [MEMORY_SIZE]byte
	Display Display

	// Keys is the keypad snapshot, refreshed by the cycle driver from the
	// input collaborator before each instruction. Never written by handlers.
	Keys [KEY_COUNT]bool

	// Rand supplies the random byte for the rnd opcode. Defaults to
	// math/rand; tests substitute a fixed source.
	Rand func() uint8

	waitReg uint8 // Target register of a pending key wait.
	waiting bool  // Set while an Fx0A key wait is pending.
}

// NewMachine creates a machine with the font table loaded and PC at the
// program start address.
func NewMachine() (m *Machine) {
	m = &Machine{}
	m.Reset()

	return
}

// Defines for the machine, exposed to the assembler as predeclared equates.
func (m *Machine) Defines() iter.Seq2[string, string] {
	return maps.All(_vm_defines)
}

// Reset clears the registers, stack, timers, memory, and display, reloads
// the font table, and sets PC to the program start address. Any loaded
// program image is discarded.
func (m *Machine) Reset() {
	if m.Verbose {
		log.Printf("vm: reset")
	}

	clear(m.V[:])
	clear(m.Memory[:])
	clear(m.Keys[:])
	m.Stack.Reset()
	m.Display.Clear()
	m.I = 0
	m.DT = 0
	m.ST = 0
	m.waiting = false
	m.waitReg = 0

	copy(m.Memory[FONT_BASE:], fontSet[:])
	m.PC = PROGRAM_START
}

// Load copies a program image into memory at the program start address.
// Images longer than the usable program region are rejected, never
// truncated.
func (m *Machine) Load(rom []byte) (err error) {
	if len(rom) > PROGRAM_LIMIT {
		err = ErrRomTooLarge
		return
	}

	copy(m.Memory[PROGRAM_START:], rom)

	if m.Verbose {
		log.Printf("vm: loaded %v byte image at 0x%03x", len(rom), PROGRAM_START)
	}

	return
}

// Fetch reads the big-endian instruction word at PC.
func (m *Machine) Fetch() (code Code, err error) {
	if int(m.PC)+1 >= MEMORY_SIZE {
		err = ErrAddressRange
		return
	}

	code = Code(uint16(m.Memory[m.PC])<<8 | uint16(m.Memory[m.PC+1]))
	return
}

// Step fetches and executes a single instruction.
func (m *Machine) Step() (err error) {
	code, err := m.Fetch()
	if err != nil {
		return
	}

	return m.Execute(code)
}

// TickTimers decrements the delay and sound timers if non-zero. Called by
// the cycle driver on its 60 Hz cadence, independent of instruction rate.
func (m *Machine) TickTimers() {
	if m.DT > 0 {
		m.DT--
	}
	if m.ST > 0 {
		m.ST--
	}
}

// WaitingKey reports whether the machine is suspended in a key wait.
func (m *Machine) WaitingKey() bool {
	return m.waiting
}

// FeedKey completes a pending key wait: the key value is stored in the
// target register and PC advances past the wait instruction.
func (m *Machine) FeedKey(key uint8) {
	if !m.waiting {
		return
	}

	m.V[m.waitReg] = key & 0xf
	m.PC += CODE_SIZE
	m.waiting = false
}

// String returns the current machine state as a string.
func (m *Machine) String() (text string) {
	text = fmt.Sprintf("   pc: 0x%03x    i: 0x%03x\n", m.PC, m.I)
	text += fmt.Sprintf("   dt: 0x%02x    st: 0x%02x\n", m.DT, m.ST)

	for n := range m.V {
		text += fmt.Sprintf("   v%x: 0x%02x", n, m.V[n])
		if n%4 == 3 {
			text += "\n"
		}
	}

	if addr, ok := m.Stack.Peek(); ok {
		text += fmt.Sprintf("stack: 0x%03x (depth %v)\n", addr, m.Stack.Depth())
	} else {
		text += "stack: -----\n"
	}

	return
}

func (m *Machine) rand8() uint8 {
	if m.Rand != nil {
		return m.Rand()
	}

	return uint8(rand.Uint32())
}
