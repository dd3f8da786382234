package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempArtifact(t *testing.T, dir, name string) Artifact {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))
	return Artifact{Path: path, Width: 2, Height: 3}
}

func TestAppendSnapshotClear(t *testing.T) {
	dir := t.TempDir()
	s := New(nil)

	a := tempArtifact(t, dir, "quadrant_1_1.png")
	b := tempArtifact(t, dir, "quadrant_1_2.png")
	c := tempArtifact(t, dir, "quadrant_1_3.png")

	assert.Equal(t, 2, s.Append([]Artifact{a, b}))
	assert.Equal(t, 3, s.Append([]Artifact{c}))
	assert.Equal(t, 3, s.Len())

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, a.Path, snap[0].Path)
	assert.Equal(t, c.Path, snap[2].Path)

	assert.Equal(t, 3, s.ClearAll())
	assert.Equal(t, 0, s.Len())
	for _, art := range []Artifact{a, b, c} {
		_, err := os.Stat(art.Path)
		assert.True(t, os.IsNotExist(err), "file %s should be deleted", art.Path)
	}
	assert.Equal(t, 0, s.ClearAll())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(nil)
	s.Append([]Artifact{{Path: "x"}})
	snap := s.Snapshot()
	snap[0].Path = "mutated"
	assert.Equal(t, "x", s.Snapshot()[0].Path)
}

func TestAppendIsAtomicUnderConcurrency(t *testing.T) {
	s := New(nil)
	const (
		writers   = 8
		batches   = 20
		batchSize = 5
	)

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			// A snapshot may land between batches but never inside one.
			n := len(s.Snapshot())
			assert.Zero(t, n%batchSize, "torn snapshot of %d artifacts", n)
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < batches; i++ {
				batch := make([]Artifact, batchSize)
				for j := range batch {
					batch[j] = Artifact{Path: fmt.Sprintf("w%d-b%d-%d", w, i, j)}
				}
				s.Append(batch)
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	<-readerDone

	assert.Equal(t, writers*batches*batchSize, s.Len())

	// Every batch must be contiguous in the sequence.
	snap := s.Snapshot()
	for i := 0; i < len(snap); i += batchSize {
		prefix := snap[i].Path[:len(snap[i].Path)-1]
		for j := 1; j < batchSize; j++ {
			assert.Equal(t, prefix+fmt.Sprint(j), snap[i+j].Path, "batch interleaved at %d", i+j)
		}
	}
}

func TestSweepRules(t *testing.T) {
	dir := t.TempDir()
	s := New(nil)
	now := time.Now()
	old := now.Add(-2 * time.Hour)

	oldReferenced := tempArtifact(t, dir, "quadrant_old_ref.png")
	oldStale := tempArtifact(t, dir, "quadrant_old_stale.png")
	freshStale := tempArtifact(t, dir, "quadrant_fresh.png")
	otherFile := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(otherFile, []byte("keep"), 0o600))

	for _, p := range []string{oldReferenced.Path, oldStale.Path, otherFile} {
		require.NoError(t, os.Chtimes(p, old, old))
	}

	s.Append([]Artifact{oldReferenced})

	removed := s.Sweep(dir, []string{"quadrant_"}, time.Hour, now)
	assert.Equal(t, 1, removed)

	_, err := os.Stat(oldStale.Path)
	assert.True(t, os.IsNotExist(err), "old unreferenced artifact should be swept")
	for _, p := range []string{oldReferenced.Path, freshStale.Path, otherFile} {
		_, err := os.Stat(p)
		assert.NoError(t, err, "%s should survive the sweep", p)
	}
}

func TestSweepMissingDir(t *testing.T) {
	s := New(nil)
	assert.Equal(t, 0, s.Sweep(filepath.Join(t.TempDir(), "gone"), []string{"quadrant_"}, time.Hour, time.Now()))
}
