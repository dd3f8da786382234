package compose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quadpdf/store"
)

func writeArtifact(t *testing.T, dir, name string, w, h int) store.Artifact {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode artifact: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close artifact: %v", err)
	}
	return store.Artifact{Path: path, Width: w, Height: h}
}

func combinedFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, OutputPrefix+"*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestComposeEmptyInput(t *testing.T) {
	dir := t.TempDir()
	c := NewComposer(dir, nil)
	_, _, err := c.Compose(context.Background(), nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if files := combinedFiles(t, dir); len(files) != 0 {
		t.Fatalf("no output file expected, found %v", files)
	}
}

func TestComposeThreePages(t *testing.T) {
	dir := t.TempDir()
	artifacts := []store.Artifact{
		writeArtifact(t, dir, "quadrant_a.png", 8, 6),
		writeArtifact(t, dir, "quadrant_b.png", 4, 4),
		writeArtifact(t, dir, "quadrant_c.png", 6, 10),
	}
	c := NewComposer(dir, nil)
	path, pages, err := c.Compose(context.Background(), artifacts)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if pages != 3 {
		t.Fatalf("page count = %d, want 3", pages)
	}
	if !strings.HasPrefix(filepath.Base(path), OutputPrefix) {
		t.Fatalf("unexpected output name: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7")) {
		t.Fatal("output is not a PDF")
	}
	if !bytes.Contains(data, []byte("/Count 3")) {
		t.Fatal("output should have a 3-page tree")
	}
	// Artifacts stay on disk; the store still owns them.
	for _, a := range artifacts {
		if _, err := os.Stat(a.Path); err != nil {
			t.Fatalf("artifact %s should survive compose: %v", a.Path, err)
		}
	}
}

func TestComposeSkipsBrokenArtifact(t *testing.T) {
	dir := t.TempDir()
	artifacts := []store.Artifact{
		writeArtifact(t, dir, "quadrant_a.png", 4, 4),
		{Path: filepath.Join(dir, "quadrant_missing.png"), Width: 4, Height: 4},
		writeArtifact(t, dir, "quadrant_b.png", 4, 4),
	}
	c := NewComposer(dir, nil)
	_, pages, err := c.Compose(context.Background(), artifacts)
	if err != nil {
		t.Fatalf("compose should continue past a broken artifact: %v", err)
	}
	if pages != 2 {
		t.Fatalf("page count = %d, want 2", pages)
	}
}

func TestComposeAllSkippedIsEmpty(t *testing.T) {
	dir := t.TempDir()
	artifacts := []store.Artifact{
		{Path: filepath.Join(dir, "quadrant_gone1.png")},
		{Path: filepath.Join(dir, "quadrant_gone2.png")},
	}
	c := NewComposer(dir, nil)
	_, _, err := c.Compose(context.Background(), artifacts)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput after skipping everything, got %v", err)
	}
	if files := combinedFiles(t, dir); len(files) != 0 {
		t.Fatalf("no output file expected, found %v", files)
	}
}

func TestComposeCanceledContext(t *testing.T) {
	dir := t.TempDir()
	artifacts := []store.Artifact{writeArtifact(t, dir, "quadrant_a.png", 4, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewComposer(dir, nil)
	if _, _, err := c.Compose(ctx, artifacts); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestComposeDeterministicContent(t *testing.T) {
	dir := t.TempDir()
	artifacts := []store.Artifact{
		writeArtifact(t, dir, "quadrant_a.png", 8, 6),
		writeArtifact(t, dir, "quadrant_b.png", 4, 4),
	}
	c := NewComposer(dir, nil)
	p1, _, err := c.Compose(context.Background(), artifacts)
	if err != nil {
		t.Fatalf("first compose: %v", err)
	}
	p2, _, err := c.Compose(context.Background(), artifacts)
	if err != nil {
		t.Fatalf("second compose: %v", err)
	}
	if p1 == p2 {
		t.Fatal("outputs must not collide on the same path")
	}
	b1, _ := os.ReadFile(p1)
	b2, _ := os.ReadFile(p2)
	if !bytes.Equal(b1, b2) {
		t.Fatal("same artifacts must compose to identical documents")
	}
}
