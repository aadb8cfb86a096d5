// Package io provides the external collaborators of the CHIP-8 machine:
// ROM image loading, the logical keypad, and the terminal presenter and
// key reader.
package io

import (
	"sync"
	"time"

	"github.com/ezrec/chip8/vm"
)

const (
	DEFAULT_HOLD = 120 * time.Millisecond // Hold window for terminal key events.
)

// Keypad tracks the 16-key logical keypad. A reader goroutine presses
// keys while the cycle driver takes snapshots, so access is locked.
//
// Terminal input delivers key-down events only, never releases. With a
// non-zero Hold, a pressed key reports down for that window and then
// releases automatically; with Hold zero, keys latch until Release.
type Keypad struct {
	Hold time.Duration

	mu      sync.Mutex
	down    [vm.KEY_COUNT]bool
	expires [vm.KEY_COUNT]time.Time
}

// NewKeypad creates a keypad with the default terminal hold window.
func NewKeypad() *Keypad {
	return &Keypad{Hold: DEFAULT_HOLD}
}

// Press marks a key down.
func (kp *Keypad) Press(key uint8) {
	key &= 0xf

	kp.mu.Lock()
	defer kp.mu.Unlock()

	kp.down[key] = true
	if kp.Hold > 0 {
		kp.expires[key] = time.Now().Add(kp.Hold)
	}
}

// Release marks a key up.
func (kp *Keypad) Release(key uint8) {
	key &= 0xf

	kp.mu.Lock()
	defer kp.mu.Unlock()

	kp.down[key] = false
}

// Snapshot returns the current boolean-per-key state, expiring held
// terminal keys whose window has lapsed.
func (kp *Keypad) Snapshot() (keys [vm.KEY_COUNT]bool) {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	now := time.Now()
	for key := range kp.down {
		if kp.down[key] && kp.Hold > 0 && now.After(kp.expires[key]) {
			kp.down[key] = false
		}
		keys[key] = kp.down[key]
	}

	return
}
