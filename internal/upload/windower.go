package upload

import (
	"context"
	"fmt"
	"io"
)

// knownSizeWindow implements the known-size regime: stateless beyond the
// driver's bytesSent cursor. Every attempt seeks the source to bytesSent and
// reads exactly chunkLen bytes into a fresh buffer, tolerating short reads
// by looping, rather than keeping any cross-attempt buffer.
func knownSizeWindow(ctx context.Context, src io.ReaderAt, bytesSent, chunkSize, total int64) ([]byte, error) {
	chunkLen := chunkSize
	if bytesSent+chunkLen > total {
		chunkLen = total - bytesSent
	}

	buf := make([]byte, chunkLen)

	off := int64(0)
	for off < chunkLen {
		if err := ctx.Err(); err != nil {
			return nil, ErrCanceled
		}

		n, err := src.ReadAt(buf[off:], bytesSent+off)
		off += int64(n)

		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("upload: reading chunk at offset %d: %w", bytesSent+off, err)
		}

		if err == io.EOF && off < chunkLen {
			return nil, fmt.Errorf("%w: source ended early at offset %d, expected %d more bytes",
				ErrProtocolViolation, bytesSent+off, chunkLen-off)
		}
	}

	return buf, nil
}
