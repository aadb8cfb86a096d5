// Package vm implements the CHIP-8 virtual machine and its assembler.
//
// The machine consists of sixteen 8-bit registers (V0-VF, with VF doubling
// as the carry/borrow/collision flag), a 16-bit index register (I), a 16-bit
// program counter, a 16-entry call stack, 4096 bytes of memory, two 8-bit
// countdown timers, and a 64x32 monochrome display composited by XOR sprite
// draws. Programs load at 0x200; the first 80 bytes of memory hold the
// hexadecimal font glyphs.
//
// The assembler provides a line-oriented assembly language for the CHIP-8
// instruction set, supporting labels, equates, data bytes, and compile-time
// expression evaluation.
package vm
