package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownSizeWindow_MiddleChunk(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))

	data, err := knownSizeWindow(context.Background(), src, 0, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(data))
}

func TestKnownSizeWindow_FinalShortChunk(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))

	data, err := knownSizeWindow(context.Background(), src, 8, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, "89", string(data))
}

func TestKnownSizeWindow_SourceEndsEarly(t *testing.T) {
	src := bytes.NewReader([]byte("0123"))

	_, err := knownSizeWindow(context.Background(), src, 0, 8, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestKnownSizeWindow_ContextCanceled(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := knownSizeWindow(ctx, src, 0, 4, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
}

// shortReaderAt returns exactly one byte per call while data remains,
// exercising knownSizeWindow's short-read retry loop.
type shortReaderAt struct {
	data []byte
}

func (s *shortReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, nil
	}

	n := copy(p[:1], s.data[off:]) // always read exactly one byte at a time

	return n, nil
}

func TestKnownSizeWindow_ShortReadsLoop(t *testing.T) {
	src := &shortReaderAt{data: []byte("0123456789")}

	data, err := knownSizeWindow(context.Background(), src, 2, 4, 10)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(data))
}
