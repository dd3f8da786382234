package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"quadpdf/compose"
	"quadpdf/observability"
	"quadpdf/store"
)

// CombinedDocument is the export output. Ownership of the underlying file
// transfers to the caller for exactly one read-then-delete: call Bytes to
// read it, Discard when done.
type CombinedDocument struct {
	Path      string
	Size      int64
	PageCount int
}

// Bytes reads the whole combined document.
func (d *CombinedDocument) Bytes() ([]byte, error) {
	return os.ReadFile(d.Path)
}

// Discard deletes the underlying file. Safe to call more than once.
func (d *CombinedDocument) Discard() error {
	err := os.Remove(d.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Export runs one retrieval end to end.
type Export struct {
	OutboundLimit int64
	Store         *store.Store
	Composer      *compose.Composer
	Log           observability.Logger
}

// Run snapshots the store, composes the combined document, and enforces the
// outbound size limit. An oversized output is deleted before returning; a
// failed export never mutates the store.
func (ex *Export) Run(ctx context.Context) (*CombinedDocument, error) {
	log := ex.Log
	if log == nil {
		log = observability.NopLogger{}
	}

	snapshot := ex.Store.Snapshot()
	if len(snapshot) == 0 {
		return nil, failf(KindValidation, "export", "no accumulated pages")
	}

	path, pageCount, err := ex.Composer.Compose(ctx, snapshot)
	if err != nil {
		if errors.Is(err, compose.ErrEmptyInput) {
			// Every artifact was skipped; surfaced the same as an
			// empty store.
			return nil, fail(KindValidation, "export", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fail(KindIO, "export", ctxErr)
		}
		return nil, fail(KindIO, "export", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return nil, fail(KindIO, "export", fmt.Errorf("stat output: %w", err))
	}
	if info.Size() > ex.OutboundLimit {
		os.Remove(path)
		return nil, failf(KindOversize, "export",
			"combined document exceeds outbound limit (%d > %d bytes)",
			info.Size(), ex.OutboundLimit)
	}

	log.Info("export complete",
		observability.Int("pages", pageCount),
		observability.Int64("bytes", info.Size()))
	return &CombinedDocument{Path: path, Size: info.Size(), PageCount: pageCount}, nil
}
