package pdf

import (
	"image"
	"image/draw"
)

// Image holds raw samples ready for embedding as an image XObject.
// Data is 8-bit DeviceRGB; Alpha, when present, becomes a DeviceGray
// soft mask.
type Image struct {
	Width  int
	Height int
	Data   []byte
	Alpha  []byte
}

// FromImage converts a standard Go image to raw RGB samples, extracting a
// soft mask only when the source actually has partial transparency.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Non-premultiplied alpha keeps the raw color values intact.
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false

	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])

		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}

	img := &Image{Width: w, Height: h, Data: pixels}
	if hasAlpha {
		img.Alpha = alpha
	}
	return img
}
