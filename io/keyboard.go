package io

import (
	"io"
)

// TerminalKeyboard reads host key events from a raw-mode input stream
// and presses the matching logical keypad keys. Escape requests a quit.
//
//	Logical keypad       Host keys
//	+---+---+---+---+    +---+---+---+---+
//	| 1 | 2 | 3 | C |    | 1 | 2 | 3 | 4 |
//	+---+---+---+---+    +---+---+---+---+
//	| 4 | 5 | 6 | D |    | Q | W | E | R |
//	+---+---+---+---+    +---+---+---+---+
//	| 7 | 8 | 9 | E |    | A | S | D | F |
//	+---+---+---+---+    +---+---+---+---+
//	| A | 0 | B | F |    | Z | X | C | V |
//	+---+---+---+---+    +---+---+---+---+
type TerminalKeyboard struct {
	*Keypad
	Input io.Reader
	Quit  func() // Invoked on Escape or input close; may be nil.
}

// NewTerminalKeyboard creates a keyboard reader over an input stream.
func NewTerminalKeyboard(input io.Reader) *TerminalKeyboard {
	return &TerminalKeyboard{
		Keypad: NewKeypad(),
		Input:  input,
	}
}

// Run consumes key events until Escape or read failure. Meant to run on
// its own goroutine while the cycle driver owns the machine.
func (tk *TerminalKeyboard) Run() {
	var one [1]byte

	for {
		_, err := tk.Input.Read(one[:])
		if err != nil {
			break
		}

		if one[0] == 0x1b { // Escape
			break
		}

		if key, ok := keyValue(one[0]); ok {
			tk.Press(key)
		}
	}

	if tk.Quit != nil {
		tk.Quit()
	}
}

// keyValue maps a host key to its logical keypad value.
func keyValue(b byte) (key uint8, ok bool) {
	// Fold letters to lower case.
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}

	ok = true
	switch b {
	case '1':
		key = 0x1
	case '2':
		key = 0x2
	case '3':
		key = 0x3
	case '4':
		key = 0xC
	case 'q':
		key = 0x4
	case 'w':
		key = 0x5
	case 'e':
		key = 0x6
	case 'r':
		key = 0xD
	case 'a':
		key = 0x7
	case 's':
		key = 0x8
	case 'd':
		key = 0x9
	case 'f':
		key = 0xE
	case 'z':
		key = 0xA
	case 'x':
		key = 0x0
	case 'c':
		key = 0xB
	case 'v':
		key = 0xF
	default:
		ok = false
	}

	return
}
