// Package compose lays accumulated quadrant artifacts onto a fixed-size
// output document, one full-bleed image per page.
package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // artifact decoder
	"os"
	"path/filepath"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"quadpdf/clock"
	"quadpdf/geo"
	"quadpdf/observability"
	"quadpdf/pdf"
	"quadpdf/store"
)

// ErrEmptyInput is returned when there is nothing to compose, either
// because the input was empty or because every artifact failed and was
// skipped. No output file exists in either case.
var ErrEmptyInput = errors.New("compose: no pages to compose")

// OutputPrefix names combined documents in the temp dir.
const OutputPrefix = "combined_"

var seq atomic.Uint64

// Composer builds one combined PDF from an artifact sequence.
type Composer struct {
	// PageSize of every output page. Zero value means geo.A4.
	PageSize geo.Size

	// Dir receives the output file.
	Dir string

	Clock clock.Clock
	Log   observability.Logger
}

// NewComposer returns an A4 Composer writing into dir.
func NewComposer(dir string, log observability.Logger) *Composer {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Composer{PageSize: geo.A4, Dir: dir, Clock: clock.Real(), Log: log}
}

// Compose scales each artifact to fill an entire page (non-uniform, aspect
// ratio not preserved) and emits one page per artifact, in input order. An
// artifact that cannot be read or scaled is logged and skipped; the
// remaining pages still compose. Returns the output path and page count.
func (c *Composer) Compose(ctx context.Context, artifacts []store.Artifact) (string, int, error) {
	if len(artifacts) == 0 {
		return "", 0, ErrEmptyInput
	}

	size := c.PageSize
	if size == (geo.Size{}) {
		size = geo.A4
	}
	log := c.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	pw, ph := size.Pixels()

	doc := &pdf.Document{}
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		img, err := decodeArtifact(a.Path)
		if err != nil {
			log.Warn("skipping unreadable artifact",
				observability.String("path", a.Path),
				observability.Error("error", err))
			continue
		}
		scaled := image.NewRGBA(image.Rect(0, 0, pw, ph))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
		doc.Pages = append(doc.Pages, &pdf.Page{Size: size, Image: pdf.FromImage(scaled)})
	}
	if len(doc.Pages) == 0 {
		return "", 0, ErrEmptyInput
	}

	cl := c.Clock
	if cl == nil {
		cl = clock.Real()
	}
	// Timestamp plus sequence keeps concurrent exports from colliding.
	path := filepath.Join(c.Dir, fmt.Sprintf("%squadrants_%d_%d.pdf", OutputPrefix, cl.Now().Unix(), seq.Add(1)))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("compose: create output: %w", err)
	}
	w := &pdf.Writer{}
	if err := w.Write(doc, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("compose: write output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("compose: close output: %w", err)
	}

	log.Debug("composed document",
		observability.Int("pages", len(doc.Pages)),
		observability.Int("artifacts", len(artifacts)))
	return path, len(doc.Pages), nil
}

func decodeArtifact(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
