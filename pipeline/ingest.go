// Package pipeline orchestrates the two end-to-end operations: ingestion
// (validate, render, extract, append) and export (snapshot, compose,
// size-check, hand off). Both guarantee temp-file cleanup on every exit
// path and translate all lower-level errors into the Kind taxonomy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"quadpdf/clock"
	"quadpdf/observability"
	"quadpdf/quadrant"
	"quadpdf/raster"
	"quadpdf/store"
)

// SourcePrefix names inbound temp files. The sweep matches on it.
const SourcePrefix = "source_"

// Concurrent ingestions of the same filename must not share a source path;
// the sequence number disambiguates calls inside one millisecond.
var srcSeq atomic.Uint64

// IngestResult reports a completed ingestion.
type IngestResult struct {
	PagesAdded int
	TotalPages int
}

// Ingestion runs one submission end to end. Fields are set once at
// construction; Run may be called concurrently.
type Ingestion struct {
	InboundLimit int64
	DPI          int
	Dir          string
	Renderer     raster.Renderer
	Extractor    *quadrant.Extractor
	Store        *store.Store
	Clock        clock.Clock
	Log          observability.Logger
}

// Run drives the state machine: Received, SizeChecked, Rendered, Extracted,
// Appended, then Done. A failure at any state deletes every temp file this
// call created before reporting, and appends nothing. The store either
// receives the whole extracted batch or none of it.
func (in *Ingestion) Run(ctx context.Context, source []byte, declaredSize int64, filename string) (IngestResult, error) {
	log := in.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	cl := in.Clock
	if cl == nil {
		cl = clock.Real()
	}

	state := StateReceived
	abort := func(e *Error) (IngestResult, error) {
		log.Warn("ingestion failed",
			observability.String("source", sanitize(filename)),
			observability.String("state", state.String()),
			observability.Error("error", e.Err))
		state = StateFailed
		return IngestResult{}, e
	}

	// Reject before any download or render work.
	if declaredSize > in.InboundLimit || int64(len(source)) > in.InboundLimit {
		return abort(failf(KindValidation, "ingest",
			"document exceeds inbound limit (%d > %d bytes)",
			max64(declaredSize, int64(len(source))), in.InboundLimit))
	}
	if len(source) == 0 {
		return abort(failf(KindValidation, "ingest", "empty document"))
	}
	state = StateSizeChecked

	srcPath := filepath.Join(in.Dir, fmt.Sprintf("%s%d_%d_%s", SourcePrefix, cl.Now().UnixMilli(), srcSeq.Add(1), sanitize(filename)))
	if err := os.WriteFile(srcPath, source, 0o600); err != nil {
		return abort(fail(KindIO, "ingest", fmt.Errorf("write source: %w", err)))
	}
	// The source is never retained, success or failure.
	defer os.Remove(srcPath)

	pages, err := in.Renderer.Render(ctx, srcPath, raster.Options{DPI: in.DPI})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return abort(fail(KindIO, "ingest", ctxErr))
		}
		return abort(fail(KindRender, "ingest", err))
	}
	state = StateRendered

	batch := make([]store.Artifact, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			discard(batch)
			return abort(fail(KindIO, "ingest", err))
		}
		artifact, err := in.Extractor.Extract(page)
		if err != nil {
			// One bad page aborts the whole ingestion; partial
			// extracts never reach the store.
			discard(batch)
			// An uncroppable page is an input defect. Everything
			// else here is a temp-file failure.
			kind := KindIO
			if errors.Is(err, quadrant.ErrPageTooSmall) {
				kind = KindRender
			}
			return abort(fail(kind, "ingest", err))
		}
		batch = append(batch, artifact)
	}
	state = StateExtracted

	total := in.Store.Append(batch)
	state = StateAppended
	log.Debug("batch appended", observability.String("state", state.String()))

	state = StateDone
	log.Info("ingestion complete",
		observability.String("source", sanitize(filename)),
		observability.String("state", state.String()),
		observability.Int("pages_added", len(batch)),
		observability.Int("total_pages", total))
	return IngestResult{PagesAdded: len(batch), TotalPages: total}, nil
}

func discard(batch []store.Artifact) {
	for _, a := range batch {
		os.Remove(a.Path)
	}
}

// sanitize reduces an untrusted filename to a safe single path element.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "document.pdf"
	}
	return name
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
