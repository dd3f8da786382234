package geo

import "math"

// PointsPerInch is the PDF user-space unit density.
const PointsPerInch = 72.0

// MillimetersPerInch converts metric page sizes to points.
const MillimetersPerInch = 25.4

// Size is a page size in PDF points.
type Size struct {
	Width  float64
	Height float64
}

// A4 is the default output page size (210x297 mm).
var A4 = FromMillimeters(210, 297)

// FromMillimeters builds a Size from metric dimensions.
func FromMillimeters(w, h float64) Size {
	return Size{
		Width:  w / MillimetersPerInch * PointsPerInch,
		Height: h / MillimetersPerInch * PointsPerInch,
	}
}

// PixelsAt returns the raster dimensions of the size at the given DPI,
// rounded to the nearest whole pixel.
func (s Size) PixelsAt(dpi int) (w, h int) {
	scale := float64(dpi) / PointsPerInch
	return int(math.Round(s.Width * scale)), int(math.Round(s.Height * scale))
}

// Pixels returns the raster dimensions at one pixel per point. Full-bleed
// placements draw an image of exactly this size over the page.
func (s Size) Pixels() (w, h int) { return s.PixelsAt(int(PointsPerInch)) }

// Rect is a rectangle in PDF user space, [llx lly urx ury].
type Rect struct {
	LLX, LLY, URX, URY float64
}

// MediaBox returns the full-page rectangle for the size.
func (s Size) MediaBox() Rect { return Rect{0, 0, s.Width, s.Height} }

// Contains reports whether the point (x, y) lies within the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.LLX && x <= r.URX && y >= r.LLY && y <= r.URY
}
