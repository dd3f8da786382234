// Package quadrant crops rendered pages to their top-left quarter and
// persists the crops as PNG artifacts.
package quadrant

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"

	"quadpdf/clock"
	"quadpdf/raster"
	"quadpdf/store"
)

// ArtifactPrefix names quadrant files in the temp dir. The sweep matches
// on it.
const ArtifactPrefix = "quadrant_"

// seq disambiguates artifacts created in the same millisecond by
// concurrent ingestions.
var seq atomic.Uint64

// ErrPageTooSmall is returned when a page has no croppable quadrant
// (width or height below two pixels).
var ErrPageTooSmall = errors.New("quadrant: page too small to crop")

// Extractor writes quadrant crops into Dir.
type Extractor struct {
	Dir   string
	Clock clock.Clock
}

// NewExtractor returns an Extractor writing into dir.
func NewExtractor(dir string) *Extractor {
	return &Extractor{Dir: dir, Clock: clock.Real()}
}

// Extract crops the page to (0, 0, w/2, h/2) using integer floor, so odd
// dimensions drop the remainder row and column, and writes the crop to a
// new file. The input page is never modified.
func (e *Extractor) Extract(page raster.Page) (store.Artifact, error) {
	bounds := page.Image.Bounds()
	cw, ch := bounds.Dx()/2, bounds.Dy()/2
	if cw == 0 || ch == 0 {
		return store.Artifact{}, fmt.Errorf("%w: page %d (%dx%d)",
			ErrPageTooSmall, page.Index, bounds.Dx(), bounds.Dy())
	}

	crop := image.NewRGBA(image.Rect(0, 0, cw, ch))
	draw.Draw(crop, crop.Bounds(), page.Image, bounds.Min, draw.Src)

	c := e.Clock
	if c == nil {
		c = clock.Real()
	}
	name := fmt.Sprintf("%s%d_%d.png", ArtifactPrefix, c.Now().UnixMilli(), seq.Add(1))
	path := filepath.Join(e.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return store.Artifact{}, fmt.Errorf("quadrant: create artifact: %w", err)
	}
	if err := png.Encode(f, crop); err != nil {
		f.Close()
		os.Remove(path)
		return store.Artifact{}, fmt.Errorf("quadrant: encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return store.Artifact{}, fmt.Errorf("quadrant: close artifact: %w", err)
	}

	return store.Artifact{Path: path, Width: cw, Height: ch}, nil
}
