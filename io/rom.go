package io

import (
	"errors"
	"os"
)

// ReadROM reads a ROM image from a file. Size validation against the
// machine's program region happens at load time, not here.
func ReadROM(path string) (data []byte, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Join(ErrRomRead, err)
	}

	return
}
