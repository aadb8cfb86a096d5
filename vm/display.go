package vm

const (
	DISPLAY_WIDTH  = 64 // Framebuffer width in pixels
	DISPLAY_HEIGHT = 32 // Framebuffer height in pixels
)

// Frame is a value copy of the framebuffer contents.
type Frame [DISPLAY_HEIGHT][DISPLAY_WIDTH]bool

// Display is the 64x32 monochrome framebuffer. Only the clear and draw
// operations mutate it; the presentation collaborator reads snapshots
// between cycles.
type Display struct {
	Pixel Frame
}

// Clear zeroes every pixel.
func (d *Display) Clear() {
	d.Pixel = Frame{}
}

// Draw XOR-composites a sprite at (x, y). Each sprite byte is one row,
// most significant bit leftmost. Coordinates wrap at the framebuffer
// edges. Collision is reported if any pixel transitions from set to
// clear anywhere in the sprite.
func (d *Display) Draw(x, y int, sprite []byte) (collision bool) {
	for r, bits := range sprite {
		row := (y + r) % DISPLAY_HEIGHT
		for c := range 8 {
			if bits&(0x80>>c) == 0 {
				continue
			}
			col := (x + c) % DISPLAY_WIDTH
			if d.Pixel[row][col] {
				collision = true
			}
			d.Pixel[row][col] = !d.Pixel[row][col]
		}
	}

	return
}

// Snapshot returns a value copy of the framebuffer for presentation.
func (d *Display) Snapshot() Frame {
	return d.Pixel
}
