package io

import (
	"io"
	"strings"

	"github.com/ezrec/chip8/vm"
)

// ANSI control sequences for the terminal presenter.
const (
	termHome       = "\x1b[H"
	termClear      = "\x1b[2J"
	termAltScreen  = "\x1b[?1049h"
	termMainScreen = "\x1b[?1049l"
	termHideCursor = "\x1b[?25l"
	termShowCursor = "\x1b[?25h"
)

// TerminalDisplay renders framebuffer snapshots to an ANSI terminal,
// two character cells per pixel. Unchanged frames are not redrawn.
type TerminalDisplay struct {
	Output io.Writer

	drawn bool
	last  vm.Frame
}

// Open switches the terminal to the alternate screen and hides the
// cursor. Callers must pair it with Close.
func (td *TerminalDisplay) Open() (err error) {
	_, err = io.WriteString(td.Output, termAltScreen+termHideCursor+termClear)
	return
}

// Close restores the main screen and cursor.
func (td *TerminalDisplay) Close() (err error) {
	_, err = io.WriteString(td.Output, termShowCursor+termMainScreen)
	return
}

// Render draws a framebuffer snapshot.
func (td *TerminalDisplay) Render(frame vm.Frame) (err error) {
	if td.drawn && frame == td.last {
		return
	}

	var out strings.Builder
	out.WriteString(termHome)

	for row := range frame {
		for _, pixel := range frame[row] {
			if pixel {
				out.WriteString("██")
			} else {
				out.WriteString("  ")
			}
		}
		out.WriteString("\r\n")
	}

	_, err = io.WriteString(td.Output, out.String())
	if err != nil {
		return
	}

	td.drawn = true
	td.last = frame

	return
}
