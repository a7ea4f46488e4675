package history

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukigw/resumeup/internal/upload"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:", slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore_RecordAndListOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Minute)

	id, err := s.RecordOutcome(ctx, "/local/file.txt", "remote/file.txt", started,
		upload.Progress{Status: upload.Completed, BytesSent: 1024})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	records, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "/local/file.txt", r.Source)
	assert.Equal(t, "remote/file.txt", r.TargetPath)
	assert.Equal(t, int64(1024), r.TotalBytes)
	assert.Equal(t, "completed", r.Status)
	assert.Empty(t, r.ErrorText)
}

func TestStore_RecordFailedOutcome_CapturesErrorText(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.RecordOutcome(ctx, "/local/a.bin", "remote/a.bin", time.Now().UTC(),
		upload.Progress{Status: upload.Failed, BytesSent: 512, Err: errors.New("boom")})
	require.NoError(t, err)

	records, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Status)
	assert.Equal(t, "boom", records[0].ErrorText)
}

func TestStore_List_OrdersNewestFirstAndRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		_, err := s.RecordOutcome(ctx, "src", "dst", base,
			upload.Progress{Status: upload.Completed, BytesSent: int64(i)})
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond) // ensure distinct finished_at ordering
	}

	records, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first: the last-inserted record (BytesSent == 2) comes first.
	assert.Equal(t, int64(2), records[0].TotalBytes)
	assert.Equal(t, int64(1), records[1].TotalBytes)
}

func TestStore_List_EmptyWhenNoRecords(t *testing.T) {
	s := openTestStore(t)

	records, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
