// Package raster renders PDF pages to images by driving an external
// poppler pdftoppm binary. Deployment environments install poppler in
// different places, so rendering tries an ordered list of candidate
// binaries and the first success wins.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // pdftoppm output decoder
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"quadpdf/observability"
)

// Page is one rendered page. Index is the zero-based page number within
// the source document.
type Page struct {
	Index int
	Image image.Image
}

// Width returns the raster width in pixels.
func (p Page) Width() int { return p.Image.Bounds().Dx() }

// Height returns the raster height in pixels.
func (p Page) Height() int { return p.Image.Bounds().Dy() }

// Options configures a render call.
type Options struct {
	DPI int
}

// Renderer turns a PDF file into an ordered sequence of page images.
type Renderer interface {
	Render(ctx context.Context, pdfPath string, opts Options) ([]Page, error)
}

// CommandRunner executes a rasterizer binary. Tests substitute this to
// exercise the fallback chain without poppler installed.
type CommandRunner func(ctx context.Context, bin string, args ...string) error

// DefaultCandidates lists pdftoppm locations in the order they are tried:
// PATH first, then the homebrew and distro install prefixes.
func DefaultCandidates() []string {
	return []string{
		"pdftoppm",
		"/opt/homebrew/bin/pdftoppm",
		"/usr/bin/pdftoppm",
	}
}

// Poppler renders through pdftoppm.
type Poppler struct {
	// Candidates are the binaries tried in order. Empty means
	// DefaultCandidates.
	Candidates []string

	// Run executes a candidate. Nil means a real exec-based runner.
	Run CommandRunner

	Log observability.Logger
}

// NewPoppler returns a Poppler with default candidates and runner.
func NewPoppler(log observability.Logger) *Poppler {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Poppler{
		Candidates: DefaultCandidates(),
		Run:        ExecRunner,
		Log:        log,
	}
}

// Render rasterizes every page of the PDF at opts.DPI. Candidate failures
// are joined into the returned error only when every candidate fails.
func (p *Poppler) Render(ctx context.Context, pdfPath string, opts Options) ([]Page, error) {
	candidates := p.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	run := p.Run
	if run == nil {
		run = ExecRunner
	}
	log := p.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 150
	}

	workDir, err := os.MkdirTemp("", "quadpdf-render-")
	if err != nil {
		return nil, fmt.Errorf("raster: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, "page")
	args := []string{"-png", "-r", strconv.Itoa(dpi), pdfPath, prefix}

	var attempts []error
	rendered := false
	for _, bin := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := run(ctx, bin, args...); err != nil {
			attempts = append(attempts, fmt.Errorf("%s: %w", bin, err))
			log.Debug("rasterizer candidate failed",
				observability.String("binary", bin),
				observability.Error("error", err))
			continue
		}
		rendered = true
		break
	}
	if !rendered {
		return nil, fmt.Errorf("raster: all rasterizer candidates failed: %w", errors.Join(attempts...))
	}

	pages, err := collectPages(workDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("raster: %s: rasterizer produced no pages", filepath.Base(pdfPath))
	}
	log.Debug("rendered document",
		observability.String("source", filepath.Base(pdfPath)),
		observability.Int("pages", len(pages)),
		observability.Int("dpi", dpi))
	return pages, nil
}

// collectPages reads the page-<n>.png files pdftoppm wrote, ordered by the
// numeric page suffix. Lexical order would misplace page 10 before page 2.
func collectPages(dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("raster: read work dir: %w", err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "page-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png"))
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	pages := make([]Page, 0, len(files))
	for i, f := range files {
		img, err := decodeFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("raster: decode page %d: %w", f.n, err)
		}
		pages = append(pages, Page{Index: i, Image: img})
	}
	return pages, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
