package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DetectsNewFile(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "new-file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	select {
	case entry := <-w.Entries():
		assert.Equal(t, path, entry.Path)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher to report new file")
	}
}

func TestWatcher_DebouncesBurstOfWrites(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "growing-file.txt")

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0o600))
		time.Sleep(50 * time.Millisecond)
	}

	var count int

	timeout := time.After(3 * time.Second)

loop:
	for {
		select {
		case <-w.Entries():
			count++
		case <-timeout:
			break loop
		}
	}

	assert.Equal(t, 1, count)
}

func TestFanOut_RunsAllEntriesWithinLimit(t *testing.T) {
	entries := make(chan QueueEntry)

	var (
		mu          sync.Mutex
		inFlight    int
		maxInFlight int
		processed   []string
	)

	go func() {
		defer close(entries)

		for i := 0; i < 10; i++ {
			entries <- QueueEntry{Path: string(rune('a' + i))}
		}
	}()

	err := FanOut(context.Background(), entries, 3, func(_ context.Context, entry QueueEntry) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		processed = append(processed, entry.Path)
		mu.Unlock()

		return nil
	})

	require.NoError(t, err)
	assert.Len(t, processed, 10)
	assert.LessOrEqual(t, maxInFlight, 3)
}

func TestFanOut_PropagatesHandlerError(t *testing.T) {
	entries := make(chan QueueEntry)

	go func() {
		defer close(entries)
		entries <- QueueEntry{Path: "bad"}
	}()

	wantErr := errors.New("handler failed")

	err := FanOut(context.Background(), entries, 1, func(_ context.Context, _ QueueEntry) error {
		return wantErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestFanOut_StopsOnContextCancellation(t *testing.T) {
	entries := make(chan QueueEntry)
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int32

	go func() {
		defer close(entries)

		for i := 0; i < 5; i++ {
			entries <- QueueEntry{Path: "x"}
		}
	}()

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_ = FanOut(ctx, entries, 1, func(gctx context.Context, _ QueueEntry) error {
		started.Add(1)
		<-gctx.Done()

		return gctx.Err()
	})

	assert.GreaterOrEqual(t, started.Load(), int32(1))
}
