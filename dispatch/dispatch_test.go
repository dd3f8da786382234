package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(4, 16, nil)
	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			ran.Add(1)
		})
		if err != nil {
			wg.Done()
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()
	p.Close()
	assert.Equal(t, int64(20), ran.Load())
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(1, 1, nil)
	defer p.Close()

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-gate
	}))
	<-started

	// Worker is blocked; fill the queue slot, then overflow.
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {}))
	err := p.Submit(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(gate)
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Close()
	err := p.Submit(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolSkipsExpiredTasks(t *testing.T) {
	p := NewPool(1, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan struct{}, 1)
	require.NoError(t, p.Submit(ctx, func(ctx context.Context) {
		ran <- struct{}{}
	}))
	p.Close()

	select {
	case <-ran:
		t.Fatal("expired task should not run")
	default:
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	p := NewPool(1, 4, nil)
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		panic("boom")
	}))

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool wedged after a panicking task")
	}
	p.Close()
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(2, 2, nil)
	p.Close()
	p.Close()
}
