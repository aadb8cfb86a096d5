// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"time"

	"github.com/ezrec/chip8/internal"
	"github.com/ezrec/chip8/vm"
)

const (
	TIMER_HZ      = 60                   // Delay/sound timer decrement rate.
	DEFAULT_DELAY = 2 * time.Millisecond // Default inter-cycle delay.
)

var _emulator_defines = map[string]string{
	"TIMER_HZ": fmt.Sprintf("%v", TIMER_HZ),
}

// State is the cycle driver execution state.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_RUNNING      = State(0) // running
	STATE_AWAITING_KEY = State(1) // awaiting-key
	STATE_HALTED       = State(2) // halted
)

// Input is the keypad collaborator. It owns the key state; the driver
// only reads snapshots of it.
type Input interface {
	Snapshot() (keys [vm.KEY_COUNT]bool)
}

// Presenter renders a framebuffer snapshot. Invoked once per completed
// running cycle, never mid-draw.
type Presenter interface {
	Render(frame vm.Frame) error
}

// TraceEvent reports a single executed instruction to the trace hook.
type TraceEvent struct {
	PC   uint16  // Address the instruction was fetched from.
	Code vm.Code // The instruction word.
	Op   vm.Op   // Decoded operation.
	Next uint16  // Program counter after execution.
}

// Emulator drives the machine: it polls input, steps one instruction per
// cycle, decrements the timers on their own 60 Hz cadence, and hands each
// completed frame to the presenter.
type Emulator struct {
	Verbose bool // If set, enables verbose logging.
	*vm.Machine

	Input     Input     // Keypad collaborator; may be nil.
	Presenter Presenter // Display collaborator; may be nil.

	Delay       time.Duration // Inter-cycle delay; throttles instruction rate only.
	TimerPeriod time.Duration // Timer decrement period, independent of Delay.

	// Trace, when set, observes every executed instruction. Never
	// required for correctness.
	Trace func(TraceEvent)

	state State
}

// NewEmulator creates an emulator around a fresh machine.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Machine:     vm.NewMachine(),
		Delay:       DEFAULT_DELAY,
		TimerPeriod: time.Second / TIMER_HZ,
	}

	return
}

// Defines returns an iterator over all of the defines.
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Machine.Defines(),
	)
}

// State returns the current driver state.
func (emu *Emulator) State() State {
	return emu.state
}

// Run drives the machine until the context is cancelled or a fatal
// machine error occurs. Unknown opcodes are logged and skipped; every
// other machine error halts the run and is returned wrapped with the
// faulting program counter.
func (emu *Emulator) Run(ctx context.Context) (err error) {
	m := emu.Machine
	m.Verbose = emu.Verbose

	emu.state = STATE_RUNNING
	defer func() { emu.state = STATE_HALTED }()

	deadline := time.Now().Add(emu.TimerPeriod)

	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		default:
		}

		if emu.Input != nil {
			m.Keys = emu.Input.Snapshot()
		}

		pc := m.PC
		var code vm.Code
		code, err = m.Fetch()
		if err != nil {
			err = &ErrRuntime{PC: pc, Err: err}
			return
		}

		step_err := m.Execute(code)
		if step_err != nil {
			if !errors.Is(step_err, vm.ErrOpcodeUnknown) {
				err = &ErrRuntime{PC: pc, Err: step_err}
				return
			}
			// Recoverable: the machine has already skipped the word.
			log.Printf("emulator: %03x: %v", pc, step_err)
		}

		if m.WaitingKey() {
			err = emu.awaitKey(ctx, &deadline)
			if err != nil {
				return
			}
		}

		if emu.Trace != nil {
			emu.Trace(TraceEvent{
				PC:   pc,
				Code: code,
				Op:   code.Op(),
				Next: m.PC,
			})
		}

		if emu.Presenter != nil {
			err = emu.Presenter.Render(m.Display.Snapshot())
			if err != nil {
				return
			}
		}

		emu.tickTimers(&deadline)

		err = emu.pause(ctx)
		if err != nil {
			return
		}
	}
}

// awaitKey busy-polls the input collaborator until a key-down completes
// the pending key wait, checking for cancellation every iteration. The
// timers keep counting down while suspended.
func (emu *Emulator) awaitKey(ctx context.Context, deadline *time.Time) (err error) {
	m := emu.Machine

	emu.state = STATE_AWAITING_KEY
	defer func() {
		if err == nil {
			emu.state = STATE_RUNNING
		}
	}()

	if emu.Verbose {
		log.Printf("emulator: %03x: awaiting key", m.PC)
	}

	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		default:
		}

		if emu.Input != nil {
			m.Keys = emu.Input.Snapshot()
		}

		for key := range uint8(vm.KEY_COUNT) {
			if m.Keys[key] {
				m.FeedKey(key)
				return
			}
		}

		emu.tickTimers(deadline)

		err = emu.pause(ctx)
		if err != nil {
			return
		}
	}
}

// tickTimers decrements the machine timers for every timer period that
// has elapsed since the last call.
func (emu *Emulator) tickTimers(deadline *time.Time) {
	now := time.Now()
	for !now.Before(*deadline) {
		emu.Machine.TickTimers()
		*deadline = deadline.Add(emu.TimerPeriod)
	}
}

// pause sleeps for the inter-cycle delay, or returns early on
// cancellation.
func (emu *Emulator) pause(ctx context.Context) (err error) {
	if emu.Delay <= 0 {
		return
	}

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(emu.Delay):
	}

	return
}
