package spritesheet

import "fmt"

// Atlas is a packed spritesheet.
type Atlas struct {
	Layout Layout
	Pixels []byte
}

// Width is the atlas width in pixels.
func (a *Atlas) Width() int { return a.Layout.Width() }

// Height is the atlas height in pixels.
func (a *Atlas) Height() int { return a.Layout.Height() }

// Frame returns a copy of frame i.
func (a *Atlas) Frame(i int) ([]byte, error) {
	return Unpack(a.Pixels, a.Layout, i)
}

// Pack copies frames into a new atlas and fills every gutter from the
// adjacent cell edge. Each frame must be exactly fw*fh*4 bytes.
func Pack(fw, fh int, frames [][]byte) (*Atlas, error) {
	layout, err := NewLayout(fw, fh, len(frames))
	if err != nil {
		return nil, err
	}
	for i, f := range frames {
		if len(f) != layout.FrameSize() {
			return nil, fmt.Errorf("%w: frame %d has %d bytes, want %d (%dx%d RGBA)",
				ErrInconsistentFrameSize, i, len(f), layout.FrameSize(), fw, fh)
		}
	}

	pixels := make([]byte, layout.Size())
	stride := layout.Stride()
	rowLen := fw * BytesPerPixel

	for i, f := range frames {
		x, y := layout.Origin(i)
		for r := 0; r < fh; r++ {
			dst := (y+r)*stride + x*BytesPerPixel
			copy(pixels[dst:dst+rowLen], f[r*rowLen:(r+1)*rowLen])
		}
	}

	bleedHorizontal(pixels, layout)
	bleedVertical(pixels, layout)

	return &Atlas{Layout: layout, Pixels: pixels}, nil
}

// bleedHorizontal fills the left and right gutter column of every cell from
// the cell's own outermost interior columns, on every atlas row.
func bleedHorizontal(pixels []byte, l Layout) {
	stride := l.Stride()
	cell := l.CellWidth() * BytesPerPixel
	px := BytesPerPixel
	for row := 0; row < l.Height(); row++ {
		line := pixels[row*stride : (row+1)*stride]
		for col := 0; col < l.Columns; col++ {
			c := line[col*cell : (col+1)*cell]
			copy(c[:px], c[px:2*px])
			copy(c[cell-px:], c[cell-2*px:cell-px])
		}
	}
}

// bleedVertical fills the top and bottom gutter row of every cell row from
// the adjacent interior row. It runs after bleedHorizontal so that corners
// receive the already filled side gutters.
func bleedVertical(pixels []byte, l Layout) {
	stride := l.Stride()
	h := l.CellHeight()
	for row := 0; row < l.Rows; row++ {
		top := row * h
		bottom := top + h - 1
		copy(pixels[top*stride:(top+1)*stride], pixels[(top+1)*stride:(top+2)*stride])
		copy(pixels[bottom*stride:(bottom+1)*stride], pixels[(bottom-1)*stride:bottom*stride])
	}
}

// Unpack copies the interior of frame i out of an atlas described by layout.
// The result does not alias pixels.
func Unpack(pixels []byte, layout Layout, i int) ([]byte, error) {
	if err := layout.checkIndex(i); err != nil {
		return nil, err
	}
	if len(pixels) != layout.Size() {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrAtlasSize, len(pixels), layout)
	}

	stride := layout.Stride()
	rowLen := layout.FrameWidth * BytesPerPixel
	out := make([]byte, layout.FrameSize())
	x, y := layout.Origin(i)
	for r := 0; r < layout.FrameHeight; r++ {
		src := (y+r)*stride + x*BytesPerPixel
		copy(out[r*rowLen:(r+1)*rowLen], pixels[src:src+rowLen])
	}
	return out, nil
}
