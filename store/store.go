// Package store holds the accumulated quadrant artifacts. It is the only
// shared mutable state in the pipeline; every operation runs inside one
// mutex so appends are atomic, snapshots are never torn, and ClearAll is a
// strict serialization point. Call volume is low, so a single critical
// section beats anything cleverer.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quadpdf/observability"
)

// Artifact is one persisted quadrant image, owned by the Store once
// appended. Nothing else may delete its file except ClearAll or Sweep.
type Artifact struct {
	Path   string
	Width  int
	Height int
}

// Store is a thread-safe ordered collection of artifacts. Insertion order
// is the completion order of ingestions, not their submission order.
type Store struct {
	mu        sync.Mutex
	artifacts []Artifact
	log       observability.Logger
}

// New returns an empty Store.
func New(log observability.Logger) *Store {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Store{log: log}
}

// Append adds a completed ingestion's artifacts as one atomic batch and
// returns the new total. A snapshot taken concurrently sees either none or
// all of the batch.
func (s *Store) Append(batch []Artifact) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, batch...)
	return len(s.artifacts)
}

// Snapshot returns an immutable copy of the current sequence.
func (s *Store) Snapshot() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// Len returns the current artifact count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}

// ClearAll empties the store and deletes the backing files, returning the
// number of artifacts removed. Deletion failures are logged; the sequence
// is cleared regardless so a stuck file cannot wedge the store.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.artifacts)
	for _, a := range s.artifacts {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			s.log.Error("remove artifact file",
				observability.String("path", a.Path),
				observability.Error("error", err))
		}
	}
	s.artifacts = nil
	return removed
}

// Sweep deletes stale temp files under dir: files carrying one of the given
// name prefixes, modified before now-maxAge, and not referenced by the
// current sequence. Referenced files are never deleted regardless of age,
// which keeps the sweep safe against in-flight composes. Returns the number
// of files removed.
func (s *Store) Sweep(dir string, prefixes []string, maxAge time.Duration, now time.Time) int {
	referenced := make(map[string]bool)
	s.mu.Lock()
	for _, a := range s.artifacts {
		referenced[a.Path] = true
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Error("sweep temp dir", observability.Error("error", err))
		return 0
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !hasAnyPrefix(e.Name(), prefixes) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if referenced[path] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				s.log.Error("sweep remove",
					observability.String("path", path),
					observability.Error("error", err))
			}
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("swept stale temp files", observability.Int("removed", removed))
	}
	return removed
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
