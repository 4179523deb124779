// Package spritesheet packs equally sized animation frames into one padded
// texture atlas and slices single frames back out of it.
//
// Pixels are RGBA8, rows top to bottom, no row padding. Every cell carries a
// one pixel gutter filled from its own edge pixels, so bilinear sampling of a
// cell never picks up a neighboring frame.
//
// Everything here is pure and safe to call from any goroutine.
package spritesheet

import (
	"errors"
	"fmt"
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// Padding is the gutter width around every cell, in pixels.
const Padding = 1

var (
	ErrNoFrames              = errors.New("spritesheet: no frames")
	ErrInconsistentFrameSize = errors.New("spritesheet: inconsistent frame size")
	ErrFrameIndex            = errors.New("spritesheet: frame index out of range")
	ErrAtlasSize             = errors.New("spritesheet: atlas buffer does not match layout")
)

// Layout describes the grid of an atlas.
type Layout struct {
	FrameWidth  int
	FrameHeight int
	Columns     int
	Rows        int
	Count       int // frames actually stored; the last row may be partial
	Padding     int
}

// NewLayout computes the near-square grid for n frames of fw×fh pixels:
// ceil(sqrt(n)) columns and as many rows as needed.
func NewLayout(fw, fh, n int) (Layout, error) {
	if n < 1 {
		return Layout{}, ErrNoFrames
	}
	if fw < 1 || fh < 1 {
		return Layout{}, fmt.Errorf("%w: %dx%d", ErrInconsistentFrameSize, fw, fh)
	}
	cols := ceilSqrt(n)
	rows := (n + cols - 1) / cols
	return Layout{
		FrameWidth:  fw,
		FrameHeight: fh,
		Columns:     cols,
		Rows:        rows,
		Count:       n,
		Padding:     Padding,
	}, nil
}

// ceilSqrt returns the smallest c with c*c >= n, for n >= 1.
func ceilSqrt(n int) int {
	c := 1
	for c*c < n {
		c++
	}
	return c
}

// CellWidth is the width of one cell including both gutters.
func (l Layout) CellWidth() int { return l.FrameWidth + 2*l.Padding }

// CellHeight is the height of one cell including both gutters.
func (l Layout) CellHeight() int { return l.FrameHeight + 2*l.Padding }

// Width is the atlas width in pixels.
func (l Layout) Width() int { return l.CellWidth() * l.Columns }

// Height is the atlas height in pixels.
func (l Layout) Height() int { return l.CellHeight() * l.Rows }

// Stride is the length of one atlas row in bytes.
func (l Layout) Stride() int { return l.Width() * BytesPerPixel }

// Size is the atlas buffer length in bytes.
func (l Layout) Size() int { return l.Stride() * l.Height() }

// FrameSize is the length of one frame buffer in bytes.
func (l Layout) FrameSize() int { return l.FrameWidth * l.FrameHeight * BytesPerPixel }

// Origin returns the pixel position of frame i's top-left interior pixel.
func (l Layout) Origin(i int) (x, y int) {
	col, row := i%l.Columns, i/l.Columns
	return col*l.CellWidth() + l.Padding, row*l.CellHeight() + l.Padding
}

func (l Layout) checkIndex(i int) error {
	if i < 0 || i >= l.Count {
		return fmt.Errorf("%w: %d of %d", ErrFrameIndex, i, l.Count)
	}
	return nil
}

func (l Layout) String() string {
	return fmt.Sprintf("%dx%d frames in %dx%d grid (%dx%d atlas)",
		l.FrameWidth, l.FrameHeight, l.Columns, l.Rows, l.Width(), l.Height())
}
