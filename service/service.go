// Package service is the core-facing surface the transport collaborator
// calls: Ingest, Export, ClearAll, Stats. It wires the pipelines together,
// owns the shared artifact store, and runs the background temp-file sweep.
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"quadpdf/clock"
	"quadpdf/compose"
	"quadpdf/config"
	"quadpdf/geo"
	"quadpdf/observability"
	"quadpdf/pipeline"
	"quadpdf/quadrant"
	"quadpdf/raster"
	"quadpdf/store"
)

// Re-exported pipeline types so transports depend on this package alone.
type (
	Error            = pipeline.Error
	Kind             = pipeline.Kind
	IngestResult     = pipeline.IngestResult
	CombinedDocument = pipeline.CombinedDocument
)

const (
	KindValidation = pipeline.KindValidation
	KindRender     = pipeline.KindRender
	KindIO         = pipeline.KindIO
	KindOversize   = pipeline.KindOversize
)

// ClearResult reports a ClearAll call.
type ClearResult struct {
	PagesCleared int
}

// Stats is a point-in-time view of the accumulation pool.
type Stats struct {
	TotalPages int
	Uptime     time.Duration
}

// Service exposes the four core operations. All methods are safe for
// concurrent use; the store serializes the only shared mutable state.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	ingestion *pipeline.Ingestion
	export    *pipeline.Export
	clock     clock.Clock
	log       observability.Logger
	started   time.Time

	sweepStop chan struct{}
	sweepOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default is NopLogger.
func WithLogger(log observability.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock sets the time source. Default is the real clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRenderer substitutes the page renderer. Default is poppler via
// the configured candidate binaries.
func WithRenderer(r raster.Renderer) Option {
	return func(s *Service) { s.ingestion.Renderer = r }
}

// New builds a Service from configuration, creating the temp directory if
// needed. Call Close to stop the background sweep.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := os.MkdirAll(cfg.Storage.TempDir, 0o700); err != nil {
		return nil, fmt.Errorf("service: create temp dir: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		clock:     clock.Real(),
		log:       observability.NopLogger{},
		sweepStop: make(chan struct{}),
		ingestion: &pipeline.Ingestion{},
		export:    &pipeline.Export{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.started = s.clock.Now()
	s.store = store.New(s.log)

	extractor := quadrant.NewExtractor(cfg.Storage.TempDir)
	extractor.Clock = s.clock

	composer := compose.NewComposer(cfg.Storage.TempDir, s.log)
	composer.PageSize = geo.FromMillimeters(cfg.Output.PageWidthMM, cfg.Output.PageHeightMM)
	composer.Clock = s.clock

	renderer := s.ingestion.Renderer
	if renderer == nil {
		poppler := raster.NewPoppler(s.log)
		if len(cfg.Render.RasterizerPaths) > 0 {
			poppler.Candidates = cfg.Render.RasterizerPaths
		}
		renderer = poppler
	}

	s.ingestion.InboundLimit = cfg.Limits.InboundMaxBytes
	s.ingestion.DPI = cfg.Render.DPI
	s.ingestion.Dir = cfg.Storage.TempDir
	s.ingestion.Renderer = renderer
	s.ingestion.Extractor = extractor
	s.ingestion.Store = s.store
	s.ingestion.Clock = s.clock
	s.ingestion.Log = s.log

	s.export.OutboundLimit = cfg.Limits.OutboundMaxBytes
	s.export.Store = s.store
	s.export.Composer = composer
	s.export.Log = s.log

	return s, nil
}

// Ingest submits one document: validate size, render, crop every page to
// its top-left quadrant, and append the batch to the pool.
func (s *Service) Ingest(ctx context.Context, source []byte, declaredSize int64, filename string) (IngestResult, error) {
	return s.ingestion.Run(ctx, source, declaredSize, filename)
}

// Export composes every accumulated artifact into one combined document.
// The caller owns the returned document's file: read it once, then Discard.
func (s *Service) Export(ctx context.Context) (*CombinedDocument, error) {
	return s.export.Run(ctx)
}

// ClearAll empties the pool and deletes the artifact files.
func (s *Service) ClearAll() ClearResult {
	cleared := s.store.ClearAll()
	s.log.Info("cleared accumulated pages", observability.Int("pages", cleared))
	return ClearResult{PagesCleared: cleared}
}

// Stats reports the current pool size and service uptime.
func (s *Service) Stats() Stats {
	return Stats{
		TotalPages: s.store.Len(),
		Uptime:     s.clock.Now().Sub(s.started),
	}
}

// StartSweep launches the background sweep that removes temp files older
// than the retention window and not referenced by the pool. Idempotent.
func (s *Service) StartSweep() {
	s.sweepOnce.Do(func() {
		go s.sweepLoop()
	})
}

func (s *Service) sweepLoop() {
	ticker := s.clock.NewTicker(s.cfg.Storage.SweepInterval.Std())
	defer ticker.Stop()
	prefixes := []string{quadrant.ArtifactPrefix, pipeline.SourcePrefix, compose.OutputPrefix}
	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.store.Sweep(s.cfg.Storage.TempDir, prefixes, s.cfg.Storage.Retention.Std(), s.clock.Now())
		}
	}
}

// Close stops the background sweep. It does not clear the pool.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.sweepStop) })
}
