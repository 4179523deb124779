package spritesheet

import (
	"image"
	"image/draw"
)

// Image wraps the atlas pixels as an image without copying them.
func (a *Atlas) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    a.Pixels,
		Stride: a.Layout.Stride(),
		Rect:   image.Rect(0, 0, a.Width(), a.Height()),
	}
}

// RGBA converts any image into a tightly packed RGBA8 buffer with straight
// alpha, the pixel format used on the wire.
func RGBA(img image.Image) (w, h int, pixels []byte) {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && n.Stride == b.Dx()*BytesPerPixel && b.Min == (image.Point{}) {
		return b.Dx(), b.Dy(), n.Pix[:b.Dx()*b.Dy()*BytesPerPixel]
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return b.Dx(), b.Dy(), dst.Pix
}
