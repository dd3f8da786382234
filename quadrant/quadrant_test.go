package quadrant

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quadpdf/raster"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 30), B: 7, A: 255})
		}
	}
	return img
}

func TestExtractFloorsOddDimensions(t *testing.T) {
	e := NewExtractor(t.TempDir())
	a, err := e.Extract(raster.Page{Index: 0, Image: gradient(5, 7)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if a.Width != 2 || a.Height != 3 {
		t.Fatalf("crop of 5x7 = %dx%d, want 2x3", a.Width, a.Height)
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := NewExtractor(t.TempDir())
	page := raster.Page{Index: 0, Image: gradient(6, 8)}

	a1, err := e.Extract(page)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	a2, err := e.Extract(page)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if a1.Path == a2.Path {
		t.Fatal("repeated extracts must not collide on the same path")
	}
	b1, err := os.ReadFile(a1.Path)
	if err != nil {
		t.Fatalf("read first artifact: %v", err)
	}
	b2, err := os.ReadFile(a2.Path)
	if err != nil {
		t.Fatalf("read second artifact: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatal("same page must produce byte-identical artifacts")
	}
}

func TestExtractTakesTopLeft(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	// Distinct color per quadrant; only the top-left red should survive.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{A: 255}
			switch {
			case x < 2 && y < 2:
				c.R = 255
			case x >= 2 && y < 2:
				c.G = 255
			case x < 2:
				c.B = 255
			default:
				c.R, c.G = 255, 255
			}
			img.SetNRGBA(x, y, c)
		}
	}
	e := NewExtractor(t.TempDir())
	a, err := e.Extract(raster.Page{Index: 0, Image: img})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	f, err := os.Open(a.Path)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()
	crop, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if crop.Bounds().Dx() != 2 || crop.Bounds().Dy() != 2 {
		t.Fatalf("crop = %v, want 2x2", crop.Bounds())
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			r, g, b, _ := crop.At(x, y).RGBA()
			if r>>8 != 255 || g != 0 || b != 0 {
				t.Fatalf("pixel (%d,%d) = %d,%d,%d, want pure red", x, y, r>>8, g>>8, b>>8)
			}
		}
	}
}

func TestExtractDoesNotMutateInput(t *testing.T) {
	img := gradient(6, 6)
	before := append([]uint8(nil), img.Pix...)
	e := NewExtractor(t.TempDir())
	if _, err := e.Extract(raster.Page{Index: 0, Image: img}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !bytes.Equal(before, img.Pix) {
		t.Fatal("extract mutated the input page")
	}
}

func TestExtractTooSmall(t *testing.T) {
	e := NewExtractor(t.TempDir())
	_, err := e.Extract(raster.Page{Index: 3, Image: gradient(1, 1)})
	if !errors.Is(err, ErrPageTooSmall) {
		t.Fatalf("expected ErrPageTooSmall for a 1x1 page, got %v", err)
	}
}

func TestExtractNaming(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(dir)
	a, err := e.Extract(raster.Page{Index: 0, Image: gradient(4, 4)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	name := filepath.Base(a.Path)
	if !strings.HasPrefix(name, ArtifactPrefix) || !strings.HasSuffix(name, ".png") {
		t.Fatalf("unexpected artifact name: %s", name)
	}
	if filepath.Dir(a.Path) != dir {
		t.Fatalf("artifact written outside dir: %s", a.Path)
	}
}
