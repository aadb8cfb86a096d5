// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
	"github.com/ezrec/chip8/vm"
)

func main() {
	var compile string
	var output string
	var delay int
	var verbose bool

	flag.StringVar(&compile, "c", "", ".c8 source file to assemble")
	flag.StringVar(&output, "o", "", "assembled rom output path")
	flag.IntVar(&delay, "d", 2, "inter-cycle delay in milliseconds")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	// Assemble a new rom image.
	if len(compile) != 0 {
		assemble(compile, output, verbose)
		return
	}

	if flag.NArg() != 1 {
		log.Fatalf("usage: %v [options] rom", filepath.Base(os.Args[0]))
	}

	rom, err := io.ReadROM(flag.Arg(0))
	if err != nil {
		log.Fatalf("%v: %v", flag.Arg(0), err)
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Delay = time.Duration(delay) * time.Millisecond

	if err = emu.Load(rom); err != nil {
		log.Fatalf("%v: %v", flag.Arg(0), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restore, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	display := &io.TerminalDisplay{Output: os.Stdout}
	if err = display.Open(); err != nil {
		term.Restore(int(os.Stdin.Fd()), restore)
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	keyboard := io.NewTerminalKeyboard(os.Stdin)
	keyboard.Quit = cancel
	go keyboard.Run()

	emu.Input = keyboard
	emu.Presenter = display

	err = emu.Run(ctx)

	display.Close()
	term.Restore(int(os.Stdin.Fd()), restore)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v: %v", flag.Arg(0), err)
	}
}

// assemble compiles a source file into a rom image.
func assemble(source, output string, verbose bool) {
	inf, err := os.Open(source)
	if err != nil {
		log.Fatalf("%v: %v", source, err)
	}
	defer inf.Close()

	asm := &vm.Assembler{Verbose: verbose}

	// Expose the machine constants as predeclared equates.
	emu := emulator.NewEmulator()
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}

	prog, err := asm.Parse(inf)
	if err != nil {
		log.Fatalf("%v: %v", source, err)
	}

	if len(output) == 0 {
		ext := filepath.Ext(source)
		output = strings.TrimSuffix(source, ext) + ".ch8"
	}

	if err = os.WriteFile(output, prog.Binary(), 0o644); err != nil {
		log.Fatalf("%v: %v", output, err)
	}
}
