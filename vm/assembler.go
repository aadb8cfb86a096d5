// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":        "0",
	"PROGRAM_START": fmt.Sprintf("0x%x", PROGRAM_START),
	"FONT_BASE":     fmt.Sprintf("0x%x", FONT_BASE),
}

// Assembler is a single pass assembler for the CHIP-8 instruction set.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Origin  int      // Load address; PROGRAM_START if zero.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string // Predefines
	Label     map[string]int    // Map of jump labels to absolute addresses.
	Equate    map[string]string // Map of equates.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regOf decodes a vX register name.
func regOf(word string) (x uint8, ok bool) {
	if len(word) != 2 || word[0] != 'v' {
		return
	}

	n, err := strconv.ParseUint(word[1:], 16, 4)
	if err != nil {
		return
	}

	x = uint8(n)
	ok = true
	return
}

// valueOf returns the value of a simple numeric word.
func (asm *Assembler) valueOf(word string) (value uint16, err error) {
	v64, err := strconv.ParseInt(word, 0, 17)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if v64 < 0 {
		v64 = 0x10000 + v64
	}
	value = uint16(v64)

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint16, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value16 uint16
		value16, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt(int(value16))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint16(st_int64)
	return
}

// currentAddr gets the address of the next emitted byte.
func (asm *Assembler) currentAddr() int {
	origin := asm.Origin
	if origin == 0 {
		origin = PROGRAM_START
	}

	if len(asm.Opcode) == 0 {
		return origin
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + len(last.Bytes)
}

// parseLine expands equates and expressions, and strips labels, in a
// single line of source.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do $() evaluations
	re := regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words[1:] {
		// Check for equate next. The mnemonic itself is never expanded.
		equate, ok := asm.Equate[word]
		if ok {
			words[1+n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	// Final linking of jump labels into 12-bit address fields.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		addr, ok := asm.Label[op.LinkLabel]
		if !ok {
			err = ErrLabelMissing(op.LinkLabel)
			return
		}
		word := uint16(op.Bytes[0])<<8 | uint16(op.Bytes[1])
		word |= uint16(addr) & 0x0fff
		op.Bytes[0] = uint8(word >> 8)
		op.Bytes[1] = uint8(word)
	}

	origin := asm.Origin
	if origin == 0 {
		origin = PROGRAM_START
	}

	prog = &Program{
		Origin:  origin,
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// addrOperand resolves an address operand, which may be a numeric value
// or a (possibly forward) label reference.
func (asm *Assembler) addrOperand(word string) (addr uint16, label string, err error) {
	if _, ok := asm.Label[word]; ok {
		label = word
		return
	}

	addr, verr := asm.valueOf(word)
	if verr == nil {
		addr &= 0x0fff
		return
	}

	// Not a number: treat as a forward label reference.
	label = word
	return
}

// byteOperand resolves an 8-bit immediate operand.
func (asm *Assembler) byteOperand(word string) (kk uint8, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}

	kk = uint8(value)
	return
}

// emit appends an assembled instruction word.
func (asm *Assembler) emit(lineno int, words []string, code Code, label string) {
	asm.Opcode = append(asm.Opcode, Opcode{
		LineNo:    lineno,
		Addr:      asm.currentAddr(),
		Words:     slices.Clone(words),
		Bytes:     []byte{uint8(uint16(code) >> 8), uint8(uint16(code))},
		LinkLabel: label,
	})
}

// emitAddr assembles and appends an instruction carrying a 12-bit
// address operand, deferring label resolution to the link pass.
func (asm *Assembler) emitAddr(lineno int, words []string, a uint8, operand string) (err error) {
	addr, label, err := asm.addrOperand(operand)
	if err != nil {
		return
	}

	if len(label) != 0 {
		if resolved, ok := asm.Label[label]; ok {
			addr = uint16(resolved)
			label = ""
		}
	}

	asm.emit(lineno, words, MakeCodeAddr(a, addr), label)
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	mnemonic := words[0]
	args := words[1:]

	// .byte VALUE...
	if mnemonic == ".byte" {
		if len(args) == 0 {
			err = ErrByteSyntax
			return
		}
		data := make([]byte, 0, len(args))
		for _, arg := range args {
			var kk uint8
			kk, err = asm.byteOperand(arg)
			if err != nil {
				return
			}
			data = append(data, kk)
		}
		asm.Opcode = append(asm.Opcode, Opcode{
			LineNo: lineno,
			Addr:   asm.currentAddr(),
			Words:  slices.Clone(words),
			Bytes:  data,
			Data:   true,
		})
		return
	}

	switch mnemonic {
	case "cls":
		err = asm.wantArgs(args, 0)
		if err != nil {
			return
		}
		asm.emit(lineno, words, Code(0x00E0), "")
	case "ret":
		err = asm.wantArgs(args, 0)
		if err != nil {
			return
		}
		asm.emit(lineno, words, Code(0x00EE), "")
	case "jp":
		switch len(args) {
		case 1:
			err = asm.emitAddr(lineno, words, 0x1, args[0])
		case 2:
			if args[0] != "v0" {
				err = ErrTargetInvalid
				return
			}
			err = asm.emitAddr(lineno, words, 0xB, args[1])
		default:
			err = ErrOpcodeValueMissing
		}
	case "call":
		err = asm.wantArgs(args, 1)
		if err != nil {
			return
		}
		err = asm.emitAddr(lineno, words, 0x2, args[0])
	case "se", "sne":
		err = asm.parseSkip(words, lineno, mnemonic, args)
	case "ld":
		err = asm.parseLoad(words, lineno, args)
	case "add":
		err = asm.parseAdd(words, lineno, args)
	case "or", "and", "xor", "sub", "subn":
		err = asm.parseAluPair(words, lineno, mnemonic, args)
	case "shr", "shl":
		err = asm.wantArgs(args, 1)
		if err != nil {
			return
		}
		x, ok := regOf(args[0])
		if !ok {
			err = ErrRegisterInvalid
			return
		}
		n := uint8(0x6)
		if mnemonic == "shl" {
			n = 0xE
		}
		asm.emit(lineno, words, MakeCode(0x8, x, 0x0, n), "")
	case "rnd":
		err = asm.wantArgs(args, 2)
		if err != nil {
			return
		}
		x, ok := regOf(args[0])
		if !ok {
			err = ErrRegisterInvalid
			return
		}
		var kk uint8
		kk, err = asm.byteOperand(args[1])
		if err != nil {
			return
		}
		asm.emit(lineno, words, MakeCodeByte(0xC, x, kk), "")
	case "drw":
		err = asm.wantArgs(args, 3)
		if err != nil {
			return
		}
		x, xok := regOf(args[0])
		y, yok := regOf(args[1])
		if !xok || !yok {
			err = ErrRegisterInvalid
			return
		}
		var height uint16
		height, err = asm.valueOf(args[2])
		if err != nil {
			return
		}
		asm.emit(lineno, words, MakeCode(0xD, x, y, uint8(height&0xf)), "")
	case "skp", "sknp":
		err = asm.wantArgs(args, 1)
		if err != nil {
			return
		}
		x, ok := regOf(args[0])
		if !ok {
			err = ErrRegisterInvalid
			return
		}
		kk := uint8(0x9E)
		if mnemonic == "sknp" {
			kk = 0xA1
		}
		asm.emit(lineno, words, MakeCodeByte(0xE, x, kk), "")
	default:
		err = ErrOpcodeInvalid
	}

	return
}

// parseSkip assembles the se/sne conditional skip forms.
func (asm *Assembler) parseSkip(words []string, lineno int, mnemonic string, args []string) (err error) {
	err = asm.wantArgs(args, 2)
	if err != nil {
		return
	}

	x, ok := regOf(args[0])
	if !ok {
		err = ErrRegisterInvalid
		return
	}

	if y, ok := regOf(args[1]); ok {
		a := uint8(0x5)
		if mnemonic == "sne" {
			a = 0x9
		}
		asm.emit(lineno, words, MakeCode(a, x, y, 0x0), "")
		return
	}

	kk, err := asm.byteOperand(args[1])
	if err != nil {
		return
	}

	a := uint8(0x3)
	if mnemonic == "sne" {
		a = 0x4
	}
	asm.emit(lineno, words, MakeCodeByte(a, x, kk), "")
	return
}

// parseLoad assembles the many ld forms.
func (asm *Assembler) parseLoad(words []string, lineno int, args []string) (err error) {
	err = asm.wantArgs(args, 2)
	if err != nil {
		return
	}

	dst, src := args[0], args[1]

	switch dst {
	case "i":
		return asm.emitAddr(lineno, words, 0xA, src)
	case "dt", "st", "f", "b", "[i]":
		x, ok := regOf(src)
		if !ok {
			err = ErrRegisterInvalid
			return
		}
		kk := map[string]uint8{
			"dt": 0x15, "st": 0x18, "f": 0x29, "b": 0x33, "[i]": 0x55,
		}[dst]
		asm.emit(lineno, words, MakeCodeByte(0xF, x, kk), "")
		return
	}

	x, ok := regOf(dst)
	if !ok {
		err = ErrTargetInvalid
		return
	}

	switch src {
	case "dt":
		asm.emit(lineno, words, MakeCodeByte(0xF, x, 0x07), "")
	case "k":
		asm.emit(lineno, words, MakeCodeByte(0xF, x, 0x0A), "")
	case "[i]":
		asm.emit(lineno, words, MakeCodeByte(0xF, x, 0x65), "")
	default:
		if y, ok := regOf(src); ok {
			asm.emit(lineno, words, MakeCode(0x8, x, y, 0x0), "")
			return
		}
		var kk uint8
		kk, err = asm.byteOperand(src)
		if err != nil {
			return
		}
		asm.emit(lineno, words, MakeCodeByte(0x6, x, kk), "")
	}

	return
}

// parseAdd assembles the add forms.
func (asm *Assembler) parseAdd(words []string, lineno int, args []string) (err error) {
	err = asm.wantArgs(args, 2)
	if err != nil {
		return
	}

	if args[0] == "i" {
		x, ok := regOf(args[1])
		if !ok {
			err = ErrRegisterInvalid
			return
		}
		asm.emit(lineno, words, MakeCodeByte(0xF, x, 0x1E), "")
		return
	}

	x, ok := regOf(args[0])
	if !ok {
		err = ErrTargetInvalid
		return
	}

	if y, ok := regOf(args[1]); ok {
		asm.emit(lineno, words, MakeCode(0x8, x, y, 0x4), "")
		return
	}

	kk, err := asm.byteOperand(args[1])
	if err != nil {
		return
	}

	asm.emit(lineno, words, MakeCodeByte(0x7, x, kk), "")
	return
}

// parseAluPair assembles the two-register ALU forms.
func (asm *Assembler) parseAluPair(words []string, lineno int, mnemonic string, args []string) (err error) {
	err = asm.wantArgs(args, 2)
	if err != nil {
		return
	}

	x, xok := regOf(args[0])
	y, yok := regOf(args[1])
	if !xok || !yok {
		err = ErrRegisterInvalid
		return
	}

	n := map[string]uint8{
		"or": 0x1, "and": 0x2, "xor": 0x3, "sub": 0x5, "subn": 0x7,
	}[mnemonic]
	asm.emit(lineno, words, MakeCode(0x8, x, y, n), "")
	return
}

// wantArgs checks the operand count for a mnemonic.
func (asm *Assembler) wantArgs(args []string, count int) (err error) {
	if len(args) > count {
		err = ErrOpcodeExtraArgs
	} else if len(args) < count {
		err = ErrOpcodeValueMissing
	}

	return
}
